package errcode

import "errors"

// Sentinel errors shared across the data access and service layers. Callers
// branch on these with errors.Is, the REST layer maps them to status codes.
var (
	ErrNilGormDB = errors.New("nil gorm db")

	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrWalletNotFound  = errors.New("saved wallet not found")

	ErrInvalidInput      = errors.New("invalid input")
	ErrNotOwner          = errors.New("caller does not own this resource")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateOrder    = errors.New("order with this payment transaction already exists")
	ErrDuplicateWallet   = errors.New("wallet already saved")
	ErrDuplicateUser     = errors.New("user already exists")

	ErrTransferFailed      = errors.New("custodial transfer failed")
	ErrCorroborationFailed = errors.New("corroboration notification failed")

	ErrNoCustodialWallet = errors.New("user does not have a custodial wallet")
	ErrWalletExists      = errors.New("user already has a custodial wallet")
)
