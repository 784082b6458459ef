package marketjson

import "fmt"

// APIError models the error payload returned by the REST API. The code is
// an application-level error code, independent from the HTTP status the
// server maps it to.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error returns a string describing the API error.  This satisfies the
// builtin error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewAPIError constructs and returns a new API error that is suitable for
// use in a response payload.
func NewAPIError(code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

var (
	ErrInvalidRequest = &APIError{
		Code:    100,
		Message: "Invalid request",
	}
	ErrInvalidParams = &APIError{
		Code:    101,
		Message: "Invalid request params",
	}
	ErrUnauthorized = &APIError{
		Code:    102,
		Message: "Unauthorized",
	}
	ErrInvalidStatus = &APIError{
		Code:    200,
		Message: "Invalid status value",
	}
	ErrInvalidTransition = &APIError{
		Code:    201,
		Message: "Order is already in a terminal state",
	}
	ErrOrderNotFound = &APIError{
		Code:    202,
		Message: "Order not found",
	}
	ErrDuplicatePaymentHash = &APIError{
		Code:    203,
		Message: "An order with this payment transaction hash already exists",
	}
	ErrProductNotFound = &APIError{
		Code:    300,
		Message: "Product not found",
	}
	ErrNotProductOwner = &APIError{
		Code:    301,
		Message: "Product not found or you do not have permission",
	}
	ErrWalletNotFound = &APIError{
		Code:    400,
		Message: "Wallet not found",
	}
	ErrWalletAlreadySaved = &APIError{
		Code:    401,
		Message: "Wallet already saved",
	}
	ErrUserExists = &APIError{
		Code:    402,
		Message: "User already exists",
	}
	ErrUserNotFound = &APIError{
		Code:    403,
		Message: "User not found",
	}
	ErrWalletExists = &APIError{
		Code:    404,
		Message: "User already has a custodial wallet",
	}
	ErrWalletUnavailable = &APIError{
		Code:    405,
		Message: "No custody provider configured",
	}
	ErrInternal = &APIError{
		Code:    500,
		Message: "Internal error",
	}
)
