package model

import (
	"fmt"
	"time"
)

// SettlementEventType identifies what happened to an order during a status
// transition or a reconciliation retry.
type SettlementEventType int

const (
	ETStatusChanged SettlementEventType = iota
	ETTransferSettled
	ETTransferFailed
	ETCorroborationFailed
)

var settlementEventTypeStrings = map[SettlementEventType]string{
	ETStatusChanged:       "ETStatusChanged",
	ETTransferSettled:     "ETTransferSettled",
	ETTransferFailed:      "ETTransferFailed",
	ETCorroborationFailed: "ETCorroborationFailed",
}

// String returns the SettlementEventType in human-readable form.
func (t SettlementEventType) String() string {
	if s, ok := settlementEventTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Settlement Event Type (%d)", int(t))
}

// SettlementEvent is pushed to the notification sink whenever the
// coordinator records a transition or the outcome of a transfer. Operators
// monitor ETTransferFailed separately from the request/response cycle: a
// transfer failure does not fail the request that triggered it.
type SettlementEvent struct {
	Type           SettlementEventType `json:"type"`
	OrderID        uint64              `json:"orderId"`
	Status         OrderStatus         `json:"status"`
	SettlementHash string              `json:"settlementHash,omitempty"`
	Warning        string              `json:"warning,omitempty"`
	Time           time.Time           `json:"time"`
}

// MarshalText makes the event type render as its name in JSON payloads.
func (t SettlementEventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
