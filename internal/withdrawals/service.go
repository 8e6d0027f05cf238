package withdrawals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

// Action is an admin decision on a pending withdrawal.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// RequestInput reserves coins for an off-platform payout.
type RequestInput struct {
	PayeeID uuid.UUID
	Amount  int64
}

// ProcessInput is the admin decision. PayoutReference may accompany an
// approval when the payout already executed; otherwise the withdrawal parks
// in processing until Complete is called.
type ProcessInput struct {
	WithdrawalID    uuid.UUID
	AdminID         uuid.UUID
	Action          Action
	Reason          string
	PayoutReference string
}

// Service manages the withdrawal ledger: reserve on request, approve or
// reject with a compensating refund, and complete once the payout lands.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error)
	Process(ctx context.Context, input ProcessInput) (*models.Withdrawal, error)
	Complete(ctx context.Context, withdrawalID uuid.UUID, payoutReference string) (*models.Withdrawal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	List(ctx context.Context, params ListParams) ([]models.Withdrawal, *pagination.Cursor, error)
	HistoryForPayee(ctx context.Context, payeeID uuid.UUID, params pagination.Params) ([]models.Withdrawal, *pagination.Cursor, error)
}

// ServiceParams groups the withdrawal service dependencies.
type ServiceParams struct {
	Tx               txRunner
	Repo             Repository
	Ledger           ledger.Service
	Accounts         accountLoader
	Outbox           outboxPublisher
	Metrics          *metrics.SettlementMetrics
	CoinValueINR     string
	MinWithdrawCoins int64
}

type service struct {
	tx          txRunner
	repo        Repository
	ledger      ledger.Service
	accounts    accountLoader
	outbox      outboxPublisher
	metrics     *metrics.SettlementMetrics
	coinValue   decimal.Decimal
	minWithdraw int64
	now         func() time.Time
}

// NewService wires the withdrawal service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("withdrawals repository required")
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
	coinValue, err := decimal.NewFromString(params.CoinValueINR)
	if err != nil {
		return nil, fmt.Errorf("invalid coin value %q: %w", params.CoinValueINR, err)
	}
	if !coinValue.IsPositive() {
		return nil, fmt.Errorf("coin value must be positive")
	}
	minWithdraw := params.MinWithdrawCoins
	if minWithdraw <= 0 {
		minWithdraw = 1
	}
	return &service{
		tx:          params.Tx,
		repo:        params.Repo,
		ledger:      params.Ledger,
		accounts:    params.Accounts,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		coinValue:   coinValue,
		minWithdraw: minWithdraw,
		now:         time.Now,
	}, nil
}

// Request reserves the requested coins immediately: the balance is debited in
// the same transaction that records the pending withdrawal, so an approved
// payout needs no further ledger move and a rejection refunds exactly what
// was reserved.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error) {
	if input.PayeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payee id is required")
	}
	if input.Amount < s.minWithdraw {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, fmt.Sprintf("minimum withdrawal is %d coins", s.minWithdraw))
	}

	payee, err := s.accounts.FindByID(ctx, input.PayeeID)
	if err != nil {
		return nil, err
	}
	if payee.Role != enums.AccountRoleHost || payee.Status != enums.AccountStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only active hosts can withdraw")
	}
	if !payee.HasPayoutDetails() {
		return nil, pkgerrors.New(pkgerrors.CodeMissingPayoutDetails, "a payout destination must be set before withdrawing")
	}

	commission, net, err := billing.Split(input.Amount, int(payee.CommissionPct))
	if err != nil {
		return nil, err
	}

	withdrawal := &models.Withdrawal{
		ID:               uuid.New(),
		PayeeAccountID:   input.PayeeID,
		Status:           enums.WithdrawalStatusPending,
		Amount:           input.Amount,
		CommissionPct:    payee.CommissionPct,
		CommissionAmount: commission,
		PayoutAmountINR:  decimal.NewFromInt(net).Mul(s.coinValue).Round(2),
		PayoutDetails:    *payee.PayoutDetails,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.Create(ctx, withdrawal); err != nil {
			return err
		}
		transaction, err := s.ledger.DebitTx(ctx, tx, ledger.DebitInput{
			AccountID:   input.PayeeID,
			Amount:      input.Amount,
			Commission:  commission,
			Kind:        enums.TransactionKindWithdrawal,
			Status:      enums.TransactionStatusPending,
			Reference:   withdrawalReference(withdrawal.ID),
			Description: "withdrawal reservation",
		})
		if err != nil {
			return err
		}
		withdrawal.TransactionID = &transaction.ID
		if err := repo.Update(ctx, withdrawal); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalRequested,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Actor:         &outbox.ActorRef{AccountID: input.PayeeID, Role: string(enums.AccountRoleHost)},
			Data: payloads.WithdrawalRequestedEvent{
				WithdrawalID:   withdrawal.ID,
				PayeeAccountID: input.PayeeID,
				Amount:         input.Amount,
				Commission:     commission,
				PayoutINR:      withdrawal.PayoutAmountINR.StringFixed(2),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSettlement(string(enums.TransactionKindWithdrawal), "requested", input.Amount, commission)
	return withdrawal, nil
}

func (s *service) Process(ctx context.Context, input ProcessInput) (*models.Withdrawal, error) {
	if input.WithdrawalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}
	switch input.Action {
	case ActionApprove:
	case ActionReject:
		if strings.TrimSpace(input.Reason) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required to reject")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid action %q", input.Action))
	}

	var processed *models.Withdrawal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		withdrawal, err := repo.FindByIDForUpdate(ctx, input.WithdrawalID)
		if err != nil {
			return err
		}
		if withdrawal.Status != enums.WithdrawalStatusPending {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, fmt.Sprintf("withdrawal is already %s", withdrawal.Status))
		}

		now := s.now().UTC()
		withdrawal.ProcessedBy = &input.AdminID
		withdrawal.ProcessedAt = &now

		if input.Action == ActionReject {
			if err := s.refund(ctx, tx, withdrawal, input.Reason); err != nil {
				return err
			}
		} else if err := s.approve(ctx, tx, withdrawal, input.PayoutReference); err != nil {
			return err
		}

		if err := repo.Update(ctx, withdrawal); err != nil {
			return err
		}
		processed = withdrawal

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     processedEventType(withdrawal.Status),
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Actor:         &outbox.ActorRef{AccountID: input.AdminID, Role: string(enums.AccountRoleAdmin)},
			Data: payloads.WithdrawalProcessedEvent{
				WithdrawalID:    withdrawal.ID,
				PayeeAccountID:  withdrawal.PayeeAccountID,
				Status:          withdrawal.Status,
				Amount:          withdrawal.Amount,
				PayoutReference: stringValue(withdrawal.PayoutReference),
				Reason:          stringValue(withdrawal.RejectionReason),
				ProcessedAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return processed, nil
}

// refund compensates a rejection: the reserved coins go back and the original
// withdrawal transaction flips to refunded, leaving an auditable pair.
func (s *service) refund(ctx context.Context, tx *gorm.DB, withdrawal *models.Withdrawal, reason string) error {
	if _, err := s.ledger.CreditTx(ctx, tx, ledger.CreditInput{
		AccountID:   withdrawal.PayeeAccountID,
		Amount:      withdrawal.Amount,
		Kind:        enums.TransactionKindRefund,
		Reference:   "refund_" + withdrawalReference(withdrawal.ID),
		Description: "withdrawal rejected: " + reason,
	}); err != nil {
		return err
	}
	if withdrawal.TransactionID != nil {
		if err := s.ledger.UpdateStatusTx(ctx, tx, *withdrawal.TransactionID, enums.TransactionStatusRefunded); err != nil {
			return err
		}
	}

	withdrawal.Status = enums.WithdrawalStatusRejected
	withdrawal.RejectionReason = &reason
	return nil
}

func (s *service) approve(ctx context.Context, tx *gorm.DB, withdrawal *models.Withdrawal, payoutReference string) error {
	payoutReference = strings.TrimSpace(payoutReference)
	if payoutReference == "" {
		withdrawal.Status = enums.WithdrawalStatusProcessing
		return nil
	}

	withdrawal.Status = enums.WithdrawalStatusCompleted
	withdrawal.PayoutReference = &payoutReference
	if withdrawal.TransactionID != nil {
		return s.ledger.UpdateStatusTx(ctx, tx, *withdrawal.TransactionID, enums.TransactionStatusCompleted)
	}
	return nil
}

// Complete records the off-platform payout reference once the transfer lands.
func (s *service) Complete(ctx context.Context, withdrawalID uuid.UUID, payoutReference string) (*models.Withdrawal, error) {
	if withdrawalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id is required")
	}
	payoutReference = strings.TrimSpace(payoutReference)
	if payoutReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout reference is required")
	}

	var completed *models.Withdrawal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		withdrawal, err := repo.FindByIDForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if withdrawal.Status != enums.WithdrawalStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, fmt.Sprintf("withdrawal is %s, not processing", withdrawal.Status))
		}

		now := s.now().UTC()
		withdrawal.Status = enums.WithdrawalStatusCompleted
		withdrawal.PayoutReference = &payoutReference
		withdrawal.ProcessedAt = &now
		if withdrawal.TransactionID != nil {
			if err := s.ledger.UpdateStatusTx(ctx, tx, *withdrawal.TransactionID, enums.TransactionStatusCompleted); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, withdrawal); err != nil {
			return err
		}
		completed = withdrawal

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalCompleted,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Data: payloads.WithdrawalProcessedEvent{
				WithdrawalID:    withdrawal.ID,
				PayeeAccountID:  withdrawal.PayeeAccountID,
				Status:          withdrawal.Status,
				Amount:          withdrawal.Amount,
				PayoutReference: payoutReference,
				ProcessedAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, params ListParams) ([]models.Withdrawal, *pagination.Cursor, error) {
	return s.repo.List(ctx, params)
}

func (s *service) HistoryForPayee(ctx context.Context, payeeID uuid.UUID, params pagination.Params) ([]models.Withdrawal, *pagination.Cursor, error) {
	if payeeID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "payee id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return s.repo.List(ctx, ListParams{PayeeID: &payeeID, Limit: params.Limit, Cursor: cursor})
}

func processedEventType(status enums.WithdrawalStatus) enums.OutboxEventType {
	switch status {
	case enums.WithdrawalStatusRejected:
		return enums.EventWithdrawalRejected
	case enums.WithdrawalStatusCompleted:
		return enums.EventWithdrawalCompleted
	default:
		return enums.EventWithdrawalProcessing
	}
}

func withdrawalReference(withdrawalID uuid.UUID) string {
	return "withdrawal_" + withdrawalID.String()
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
