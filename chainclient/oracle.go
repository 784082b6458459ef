// Package chainclient notifies an external attestation oracle about order
// status changes. Corroboration is advisory: the oracle's acknowledgement
// is wanted but never required for a transition to stand.
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/model"
)

const defaultRequestTimeout = 5 * time.Second

// ConnConfig describes how to reach the attestation oracle.
type ConnConfig struct {
	BaseURL        string
	AuthToken      string
	RequestTimeout time.Duration
}

// Oracle is an HTTP client for the attestation service. Safe for
// concurrent use.
type Oracle struct {
	cfg        *ConnConfig
	httpClient *http.Client
}

func New(cfg *ConnConfig) (*Oracle, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("missing oracle config")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Oracle{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type corroborationRequest struct {
	OrderID       uint64 `json:"orderId"`
	Status        string `json:"status"`
	PaymentTxHash string `json:"transactionHash"`
	ObservedAt    int64  `json:"observedAt"`
}

// Corroborate reports a committed status change to the oracle. Errors are
// returned so the caller can log and count them, but callers must not roll
// back the transition on failure.
func (o *Oracle) Corroborate(ctx context.Context, orderID uint64, status model.OrderStatus, paymentTxHash string) error {
	payload, err := json.Marshal(&corroborationRequest{
		OrderID:       orderID,
		Status:        string(status),
		PaymentTxHash: paymentTxHash,
		ObservedAt:    time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/attestations", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.AuthToken)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errcode.ErrCorroborationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: oracle returned %v", errcode.ErrCorroborationFailed, resp.StatusCode)
	}
	log.Debugf("Corroborated order %v status %v with oracle", orderID, status)
	return nil
}

// NotifyShipped reports that an order entered fulfilment.
func (o *Oracle) NotifyShipped(ctx context.Context, orderID uint64) error {
	return o.Corroborate(ctx, orderID, model.OrderProcessing, "")
}

// NotifyDelivered reports that an order completed.
func (o *Oracle) NotifyDelivered(ctx context.Context, orderID uint64) error {
	return o.Corroborate(ctx, orderID, model.OrderCompleted, "")
}
