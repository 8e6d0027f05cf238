package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/pkg/db"
	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

const referenceIndex = "idx_transactions_reference"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the ledger primitives every settlement path builds on.
// Each call records exactly one immutable Transaction alongside the balance
// moves it describes. The plain methods run in their own database
// transaction; the Tx variants join the caller's, so a settlement path can
// move coins, update its own rows, and emit outbox events as one unit.
type Service interface {
	Credit(ctx context.Context, input CreditInput) (*models.Transaction, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.Transaction, error)
	Debit(ctx context.Context, input DebitInput) (*models.Transaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.Transaction, error)
	Transfer(ctx context.Context, input TransferInput) (*models.Transaction, error)
	TransferTx(ctx context.Context, tx *gorm.DB, input TransferInput) (*models.Transaction, error)
	LockAccount(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) (*models.Account, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, status enums.TransactionStatus) error
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
	History(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error)
}

// CreditInput adds coins to a single account.
type CreditInput struct {
	AccountID   uuid.UUID
	Amount      int64
	Kind        enums.TransactionKind
	Reference   string
	Description string
	Metadata    json.RawMessage
}

// DebitInput removes coins from a single account. Commission, when set, is
// recorded on the transaction (Net = Amount - Commission) without changing
// how much leaves the balance.
type DebitInput struct {
	AccountID   uuid.UUID
	Amount      int64
	Commission  int64
	Kind        enums.TransactionKind
	Status      enums.TransactionStatus
	Reference   string
	Description string
	Metadata    json.RawMessage
}

// TransferInput moves coins from payer to payee with a commission split the
// caller has already computed. Gross leaves the payer, Gross-Commission
// reaches the payee.
type TransferInput struct {
	PayerID     uuid.UUID
	PayeeID     uuid.UUID
	Gross       int64
	Commission  int64
	Kind        enums.TransactionKind
	Reference   string
	Description string
	Metadata    json.RawMessage
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires the ledger service with its transaction runner and repository.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*models.Transaction, error) {
	var transaction *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		transaction, err = s.CreditTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.Transaction, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "credit amount must be positive")
	}
	if err := validateKindAndReference(input.Kind, input.Reference); err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		Kind:           input.Kind,
		Status:         enums.TransactionStatusCompleted,
		PayeeAccountID: &input.AccountID,
		Gross:          input.Amount,
		Commission:     0,
		Net:            input.Amount,
		Reference:      input.Reference,
		Description:    input.Description,
		Metadata:       input.Metadata,
	}

	repo := s.repo.WithTx(tx)
	if err := repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, mapReferenceConflict(err)
	}
	if err := repo.CreditBalance(ctx, input.AccountID, input.Amount); err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *service) Debit(ctx context.Context, input DebitInput) (*models.Transaction, error) {
	var transaction *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		transaction, err = s.DebitTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.Transaction, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "debit amount must be positive")
	}
	if input.Commission < 0 || input.Commission > input.Amount {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCommission, "commission must be between zero and the debit amount")
	}
	if err := validateKindAndReference(input.Kind, input.Reference); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = enums.TransactionStatusCompleted
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction status %q", status))
	}

	transaction := &models.Transaction{
		Kind:           input.Kind,
		Status:         status,
		PayerAccountID: &input.AccountID,
		Gross:          input.Amount,
		Commission:     input.Commission,
		Net:            input.Amount - input.Commission,
		Reference:      input.Reference,
		Description:    input.Description,
		Metadata:       input.Metadata,
	}

	repo := s.repo.WithTx(tx)
	if err := repo.DebitBalance(ctx, input.AccountID, input.Amount); err != nil {
		return nil, err
	}
	if err := repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, mapReferenceConflict(err)
	}
	return transaction, nil
}

func (s *service) Transfer(ctx context.Context, input TransferInput) (*models.Transaction, error) {
	var transaction *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		transaction, err = s.TransferTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *service) TransferTx(ctx context.Context, tx *gorm.DB, input TransferInput) (*models.Transaction, error) {
	if input.PayerID == uuid.Nil || input.PayeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee ids are required")
	}
	if input.PayerID == input.PayeeID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee must differ")
	}
	if input.Gross <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "gross amount must be positive")
	}
	if input.Commission < 0 || input.Commission > input.Gross {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCommission, "commission must be between zero and the gross amount")
	}
	if err := validateKindAndReference(input.Kind, input.Reference); err != nil {
		return nil, err
	}

	net := input.Gross - input.Commission
	transaction := &models.Transaction{
		Kind:           input.Kind,
		Status:         enums.TransactionStatusCompleted,
		PayerAccountID: &input.PayerID,
		PayeeAccountID: &input.PayeeID,
		Gross:          input.Gross,
		Commission:     input.Commission,
		Net:            net,
		Reference:      input.Reference,
		Description:    input.Description,
		Metadata:       input.Metadata,
	}

	repo := s.repo.WithTx(tx)
	if err := repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, mapReferenceConflict(err)
	}
	if err := repo.DebitBalance(ctx, input.PayerID, input.Gross); err != nil {
		return nil, err
	}
	if net > 0 {
		if err := repo.CreditBalance(ctx, input.PayeeID, net); err != nil {
			return nil, err
		}
	}
	return transaction, nil
}

// LockAccount loads an account under the caller's transaction with a row
// lock, serializing settlements against the same wallet.
func (s *service) LockAccount(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.repo.WithTx(tx).LockAccount(ctx, accountID)
}

// UpdateStatusTx moves a transaction through its status lifecycle inside the
// caller's transaction.
func (s *service) UpdateStatusTx(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, status enums.TransactionStatus) error {
	if transactionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction status %q", status))
	}
	return s.repo.WithTx(tx).UpdateTransactionStatus(ctx, transactionID, status)
}

func (s *service) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	return s.repo.FindTransactionByReference(ctx, reference)
}

func (s *service) History(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error) {
	return s.repo.ListTransactions(ctx, params)
}

func validateKindAndReference(kind enums.TransactionKind, reference string) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction kind %q", kind))
	}
	if strings.TrimSpace(reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	return nil
}

// mapReferenceConflict translates a unique violation on the reference index
// into the idempotency conflict callers retry against.
func mapReferenceConflict(err error) error {
	if db.IsUniqueViolation(err, referenceIndex) {
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateReference, err, "a transaction with this reference already exists")
	}
	return err
}
