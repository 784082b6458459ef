package settlemgr

import (
	"context"

	"github.com/plutus-market/plutus-server/model"

	"github.com/shopspring/decimal"
)

// TransferGateway dispatches value out of a custodial wallet. The owner is
// the platform identity whose wallet funds the transfer; idempotencyKey
// deduplicates retries of the same logical transfer at the provider.
type TransferGateway interface {
	Transfer(ctx context.Context, owner string, to string, amount decimal.Decimal, idempotencyKey string) (txHash string, err error)
}

// CorroborationEmitter reports committed status changes to an external
// attestation service. All calls are advisory: a failure is logged and
// never reverts the transition that triggered it.
type CorroborationEmitter interface {
	NotifyShipped(ctx context.Context, orderID uint64) error
	NotifyDelivered(ctx context.Context, orderID uint64) error
}

// EventSink receives settlement events for operator-facing feeds. Notify
// must not block.
type EventSink interface {
	Notify(event *model.SettlementEvent)
}
