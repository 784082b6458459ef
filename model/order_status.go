package model

// OrderStatus is the lifecycle state of an order. PENDING is the initial
// state, COMPLETED and FAILED are terminal. REFUNDED is part of the stored
// enum for historical records but is never assigned by the transition
// logic; FAILED doubles as "refund dispatched".
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderFailed     OrderStatus = "FAILED"
	OrderRefunded   OrderStatus = "REFUNDED"
)

// ParseOrderStatus maps a wire string to a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderPending, OrderProcessing, OrderCompleted, OrderFailed, OrderRefunded:
		return OrderStatus(s), true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderRefunded:
		return true
	}
	return false
}

// ValidTransitionTarget reports whether target may be requested at all.
// Only PROCESSING, COMPLETED and FAILED can be requested; PENDING and
// REFUNDED are never transition targets.
func ValidTransitionTarget(target OrderStatus) bool {
	switch target {
	case OrderProcessing, OrderCompleted, OrderFailed:
		return true
	}
	return false
}

// SettlementState tracks whether the monetary side effect of a terminal
// transition actually left the custodial wallet. It is deliberately
// independent from OrderStatus: a COMPLETED order whose payout dispatch
// failed stays COMPLETED with settlement state FAILED until the
// reconciliation sweep retries it.
type SettlementState string

const (
	// SettlementNone: no transfer applies (non-terminal order).
	SettlementNone SettlementState = "NONE"
	// SettlementPending: transfer dispatch is owed but has not succeeded.
	SettlementPending SettlementState = "PENDING"
	// SettlementSettled: the gateway accepted the transfer and returned a
	// transaction hash.
	SettlementSettled SettlementState = "SETTLED"
	// SettlementFailed: the last dispatch attempt failed; eligible for
	// retry by the reconciliation sweep.
	SettlementFailed SettlementState = "FAILED"
)
