package gifts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/internal/billing"
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

// SendInput is one gift purchase. IdempotencyKey is optional; when present it
// becomes the ledger reference so client retries cannot double-charge.
type SendInput struct {
	PayerID        uuid.UUID
	PayeeID        uuid.UUID
	GiftID         uuid.UUID
	Quantity       int64
	SessionID      *uuid.UUID
	IdempotencyKey string
}

// SendResult is the settled gift purchase.
type SendResult struct {
	Gift        *models.Gift
	Transaction *models.Transaction
	Quantity    int64
}

// Service settles gifts: the immediate, non-timed settlement path.
type Service interface {
	List(ctx context.Context, category string) ([]models.Gift, error)
	Send(ctx context.Context, input SendInput) (*SendResult, error)
	History(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error)
}

// ServiceParams groups the gift service dependencies.
type ServiceParams struct {
	Tx       txRunner
	Repo     Repository
	Ledger   ledger.Service
	Accounts accountLoader
	Outbox   outboxPublisher
	Metrics  *metrics.SettlementMetrics
}

type service struct {
	tx       txRunner
	repo     Repository
	ledger   ledger.Service
	accounts accountLoader
	outbox   outboxPublisher
	metrics  *metrics.SettlementMetrics
	now      func() time.Time
}

// NewService wires the gift settlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("gifts repository required")
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
	return &service{
		tx:       params.Tx,
		repo:     params.Repo,
		ledger:   params.Ledger,
		accounts: params.Accounts,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

func (s *service) List(ctx context.Context, category string) ([]models.Gift, error) {
	gifts, err := s.repo.ListActive(ctx, category)
	if err != nil {
		return nil, err
	}

	// Filter out catalog rows outside their validity window.
	now := s.now().UTC()
	available := gifts[:0]
	for _, gift := range gifts {
		if gift.AvailableAt(now) {
			available = append(available, gift)
		}
	}
	return available, nil
}

func (s *service) Send(ctx context.Context, input SendInput) (*SendResult, error) {
	if input.PayerID == uuid.Nil || input.PayeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee ids are required")
	}
	if input.PayerID == input.PayeeID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee must differ")
	}
	if input.GiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	gift, err := s.repo.FindByID(ctx, input.GiftID)
	if err != nil {
		return nil, err
	}
	if !gift.AvailableAt(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift is not currently available")
	}

	payee, err := s.accounts.FindByID(ctx, input.PayeeID)
	if err != nil {
		return nil, err
	}
	if payee.Role != enums.AccountRoleHost || payee.Status != enums.AccountStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodePayeeUnavailable, "payee is not an active host")
	}

	gross := gift.PriceCoins * input.Quantity
	commission, net, err := billing.Split(gross, int(payee.CommissionPct))
	if err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(input.IdempotencyKey)
	if reference == "" {
		reference = "gift_" + uuid.NewString()
	}

	metadata, err := json.Marshal(map[string]any{
		"gift_id":    gift.ID,
		"quantity":   input.Quantity,
		"session_id": input.SessionID,
	})
	if err != nil {
		return nil, err
	}

	var transaction *models.Transaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		transaction, err = s.ledger.TransferTx(ctx, tx, ledger.TransferInput{
			PayerID:     input.PayerID,
			PayeeID:     input.PayeeID,
			Gross:       gross,
			Commission:  commission,
			Kind:        enums.TransactionKindGiftPayment,
			Reference:   reference,
			Description: fmt.Sprintf("gift: %s x%d", gift.Name, input.Quantity),
			Metadata:    metadata,
		})
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeDuplicateReference) {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicateReference, err, "gift already settled for this idempotency key")
			}
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGiftSent,
			AggregateType: enums.AggregateGift,
			AggregateID:   transaction.ID,
			Actor:         &outbox.ActorRef{AccountID: input.PayerID},
			Data: payloads.GiftSentEvent{
				GiftID:         gift.ID,
				PayerAccountID: input.PayerID,
				PayeeAccountID: input.PayeeID,
				Quantity:       input.Quantity,
				Gross:          gross,
				Commission:     commission,
				Net:            net,
				TransactionID:  transaction.ID,
				SessionID:      input.SessionID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSettlement(string(enums.TransactionKindGiftPayment), "settled", gross, commission)
	return &SendResult{Gift: gift, Transaction: transaction, Quantity: input.Quantity}, nil
}

func (s *service) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error) {
	if accountID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	kind := enums.TransactionKindGiftPayment
	return s.ledger.History(ctx, ledger.ListTransactionsParams{
		AccountID: &accountID,
		Kind:      &kind,
		Limit:     params.Limit,
		Cursor:    cursor,
	})
}
