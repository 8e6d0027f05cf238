package wallet

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/internal/ledger"
	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/metrics"
	"github.com/lumea-app/lumea-backend/pkg/outbox"
	"github.com/lumea-app/lumea-backend/pkg/outbox/payloads"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type accountLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ConfirmRechargeInput is the payment gateway callback payload. Signature is
// the gateway's HMAC over "<order_id>|<payment_id>".
type ConfirmRechargeInput struct {
	AccountID uuid.UUID
	PlanID    string
	OrderID   string
	PaymentID string
	Signature string
}

// AdjustInput is an admin correction to an account balance. Positive deltas
// credit, negative deltas debit.
type AdjustInput struct {
	AccountID uuid.UUID
	AdminID   uuid.UUID
	Delta     int64
	Reason    string
}

// Service reads wallet state, credits confirmed gateway recharges, and
// applies admin balance corrections.
type Service interface {
	Balance(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	Transactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error)
	ConfirmRecharge(ctx context.Context, input ConfirmRechargeInput) (*models.Transaction, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.Transaction, error)
}

// ServiceParams groups the wallet service dependencies.
type ServiceParams struct {
	Tx            txRunner
	Ledger        ledger.Service
	Accounts      accountLoader
	Outbox        outboxPublisher
	Metrics       *metrics.SettlementMetrics
	GatewaySecret string
}

type service struct {
	tx            txRunner
	ledger        ledger.Service
	accounts      accountLoader
	outbox        outboxPublisher
	metrics       *metrics.SettlementMetrics
	gatewaySecret []byte
}

// NewService wires the wallet service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account loader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if strings.TrimSpace(params.GatewaySecret) == "" {
		return nil, fmt.Errorf("gateway secret required")
	}
	return &service{
		tx:            params.Tx,
		ledger:        params.Ledger,
		accounts:      params.Accounts,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		gatewaySecret: []byte(params.GatewaySecret),
	}, nil
}

func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.accounts.FindByID(ctx, accountID)
}

func (s *service) Transactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error) {
	if accountID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return s.ledger.History(ctx, ledger.ListTransactionsParams{
		AccountID: &accountID,
		Limit:     params.Limit,
		Cursor:    cursor,
	})
}

// ConfirmRecharge verifies the gateway signature and credits the plan's coins
// plus bonus. The gateway order id doubles as the ledger reference, so a
// replayed callback finds the original credit instead of minting coins twice.
func (s *service) ConfirmRecharge(ctx context.Context, input ConfirmRechargeInput) (*models.Transaction, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if strings.TrimSpace(input.OrderID) == "" || strings.TrimSpace(input.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and payment id are required")
	}
	if !s.verifySignature(input.OrderID, input.PaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid payment signature")
	}

	plan, ok := PlanByID(input.PlanID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown recharge plan %q", input.PlanID))
	}
	if _, err := s.accounts.FindByID(ctx, input.AccountID); err != nil {
		return nil, err
	}

	coins := plan.Coins + plan.BonusCoins
	metadata, err := json.Marshal(map[string]any{
		"plan_id":     plan.ID,
		"payment_id":  input.PaymentID,
		"bonus_coins": plan.BonusCoins,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode recharge metadata")
	}

	var transaction *models.Transaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		transaction, err = s.ledger.CreditTx(ctx, tx, ledger.CreditInput{
			AccountID:   input.AccountID,
			Amount:      coins,
			Kind:        enums.TransactionKindRecharge,
			Reference:   input.OrderID,
			Description: "wallet recharge " + plan.ID,
			Metadata:    metadata,
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletRecharged,
			AggregateType: enums.AggregateAccount,
			AggregateID:   input.AccountID,
			Data: payloads.WalletRechargedEvent{
				AccountID:     input.AccountID,
				TransactionID: transaction.ID,
				Coins:         coins,
				OrderID:       input.OrderID,
				PlanID:        plan.ID,
			},
		})
	})
	if err != nil {
		// A replayed callback re-sends the same order id; hand back the
		// original credit instead of failing the gateway.
		if pkgerrors.HasCode(err, pkgerrors.CodeDuplicateReference) {
			return s.ledger.FindByReference(ctx, input.OrderID)
		}
		return nil, err
	}

	s.metrics.RecordSettlement(string(enums.TransactionKindRecharge), "completed", coins, 0)
	return transaction, nil
}

// Adjust records a manual admin correction as its own ledger transaction. A
// negative delta goes through the guarded debit, so a correction can never
// overdraw the account.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.Transaction, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "delta must be non-zero")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required")
	}
	if _, err := s.accounts.FindByID(ctx, input.AccountID); err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]any{
		"admin_id": input.AdminID,
		"reason":   reason,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode adjustment metadata")
	}

	reference := "adjustment_" + uuid.NewString()
	description := "manual adjustment: " + reason

	var transaction *models.Transaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if input.Delta > 0 {
			transaction, err = s.ledger.CreditTx(ctx, tx, ledger.CreditInput{
				AccountID:   input.AccountID,
				Amount:      input.Delta,
				Kind:        enums.TransactionKindManualAdjustment,
				Reference:   reference,
				Description: description,
				Metadata:    metadata,
			})
		} else {
			transaction, err = s.ledger.DebitTx(ctx, tx, ledger.DebitInput{
				AccountID:   input.AccountID,
				Amount:      -input.Delta,
				Kind:        enums.TransactionKindManualAdjustment,
				Reference:   reference,
				Description: description,
				Metadata:    metadata,
			})
		}
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBalanceAdjusted,
			AggregateType: enums.AggregateAccount,
			AggregateID:   input.AccountID,
			Actor:         &outbox.ActorRef{AccountID: input.AdminID, Role: string(enums.AccountRoleAdmin)},
			Data: payloads.BalanceAdjustedEvent{
				AccountID:     input.AccountID,
				TransactionID: transaction.ID,
				Delta:         input.Delta,
				Reason:        reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSettlement(string(enums.TransactionKindManualAdjustment), "completed", transaction.Gross, 0)
	return transaction, nil
}

func (s *service) verifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, s.gatewaySecret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}
