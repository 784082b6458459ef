package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/model"

	"github.com/go-sql-driver/mysql"
)

func validSubmission() *model.OrderSubmission {
	return &model.OrderSubmission{
		Buyer:           "alice@example.com",
		ProductID:       "9f8d2c1e",
		MerchantAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
		BuyerAddress:    "0x8617E340B3D01FA5F11F306F4090FD50E238070D",
		Amount:          "0.05",
		PaymentTxHash:   "0x4e3a3754410177e6937ef1f84bba68ea139e8d1a2258c5f85db9f1cd715a1bdd",
	}
}

func TestOrderServiceImpl_AdmitOrderValidation(t *testing.T) {
	o := &OrderServiceImpl{}
	ctx := context.Background()

	t.Run("blank_buyer", func(t *testing.T) {
		s := validSubmission()
		s.Buyer = "   "
		_, err := o.AdmitOrder(ctx, nil, s)
		if !errors.Is(err, errcode.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("bad_merchant_address", func(t *testing.T) {
		s := validSubmission()
		s.MerchantAddress = "0x1234"
		_, err := o.AdmitOrder(ctx, nil, s)
		if !errors.Is(err, errcode.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("bad_checksum_address", func(t *testing.T) {
		s := validSubmission()
		s.MerchantAddress = "0x52908400098527886E0F7030069857D2E4169Ee7"
		_, err := o.AdmitOrder(ctx, nil, s)
		if !errors.Is(err, errcode.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("bad_payment_hash", func(t *testing.T) {
		s := validSubmission()
		s.PaymentTxHash = "not-a-hash"
		_, err := o.AdmitOrder(ctx, nil, s)
		if !errors.Is(err, errcode.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("zero_amount", func(t *testing.T) {
		s := validSubmission()
		s.Amount = "0"
		_, err := o.AdmitOrder(ctx, nil, s)
		if !errors.Is(err, errcode.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("negative_amount", func(t *testing.T) {
		s := validSubmission()
		s.Amount = "-1.5"
		_, err := o.AdmitOrder(ctx, nil, s)
		if !errors.Is(err, errcode.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("non_numeric_amount", func(t *testing.T) {
		s := validSubmission()
		s.Amount = "1.2.3"
		_, err := o.AdmitOrder(ctx, nil, s)
		if !errors.Is(err, errcode.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("nil_submission", func(t *testing.T) {
		_, err := o.AdmitOrder(ctx, nil, nil)
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestOrderServiceImpl_TransitionStatusValidation(t *testing.T) {
	o := &OrderServiceImpl{}
	ctx := context.Background()

	t.Run("pending_not_requestable", func(t *testing.T) {
		_, err := o.TransitionStatus(ctx, nil, 1, model.OrderProcessing, model.OrderPending, model.SettlementNone)
		if !errors.Is(err, errcode.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}
	})

	t.Run("refunded_not_requestable", func(t *testing.T) {
		_, err := o.TransitionStatus(ctx, nil, 1, model.OrderProcessing, model.OrderRefunded, model.SettlementNone)
		if !errors.Is(err, errcode.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}
	})

	t.Run("terminal_source_rejected", func(t *testing.T) {
		_, err := o.TransitionStatus(ctx, nil, 1, model.OrderCompleted, model.OrderFailed, model.SettlementNone)
		if !errors.Is(err, errcode.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}
	})
}

func TestIsDuplicateKeyError(t *testing.T) {
	t.Run("mysql_1062", func(t *testing.T) {
		err := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '0xabc' for key 'uniq_payment_tx_hash'"}
		if !isDuplicateKeyError(err) {
			t.Error("expected duplicate key error")
		}
	})

	t.Run("mysql_1062_wrapped", func(t *testing.T) {
		err := fmt.Errorf("create order: %w", &mysql.MySQLError{Number: 1062})
		if !isDuplicateKeyError(err) {
			t.Error("expected duplicate key error")
		}
	})

	t.Run("mysql_other_number", func(t *testing.T) {
		if isDuplicateKeyError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}) {
			t.Error("unexpected duplicate key error")
		}
	})

	t.Run("sqlite_message", func(t *testing.T) {
		err := errors.New("UNIQUE constraint failed: order_infos.payment_tx_hash")
		if !isDuplicateKeyError(err) {
			t.Error("expected duplicate key error")
		}
	})

	t.Run("other_error", func(t *testing.T) {
		if isDuplicateKeyError(errors.New("connection refused")) {
			t.Error("unexpected duplicate key error")
		}
	})

	t.Run("nil", func(t *testing.T) {
		if isDuplicateKeyError(nil) {
			t.Error("unexpected duplicate key error")
		}
	})
}
