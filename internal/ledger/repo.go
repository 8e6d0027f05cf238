package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// Repository owns every balance mutation and transaction append. Balances are
// never written outside the guarded updates below.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	CreditBalance(ctx context.Context, accountID uuid.UUID, amount int64) error
	DebitBalance(ctx context.Context, accountID uuid.UUID, amount int64) error
	CreateTransaction(ctx context.Context, transaction *models.Transaction) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
}

// ListTransactionsParams filters the transaction history query.
type ListTransactionsParams struct {
	AccountID *uuid.UUID
	Kind      *enums.TransactionKind
	Status    *enums.TransactionStatus
	Limit     int
	Cursor    *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockAccount loads the account row under FOR UPDATE so concurrent settlements
// against the same wallet serialize. SQLite (used in repository tests) locks
// the whole database per write transaction, so the clause is skipped there.
func (r *repository) LockAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var account models.Account
	if err := query.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreditBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "credit amount must be positive")
	}

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return nil
}

// DebitBalance subtracts coins with the sufficiency check inside the UPDATE
// itself, so two concurrent debits can never both pass against a stale read.
func (r *repository) DebitBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "debit amount must be positive")
	}

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND balance >= ?", accountID, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.Account{}).
			Where("id = ?", accountID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance does not cover the requested debit")
	}
	return nil
}

func (r *repository) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).First(&transaction, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).First(&transaction, "reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if params.AccountID != nil {
		query = query.Where("payer_account_id = ? OR payee_account_id = ?", *params.AccountID, *params.AccountID)
	}
	if params.Kind != nil {
		query = query.Where("kind = ?", *params.Kind)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var transactions []models.Transaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&transactions).Error; err != nil {
		return nil, nil, err
	}

	if len(transactions) > normalized {
		transactions = transactions[:normalized]
		// Cursor is the last row handed back; the strict tuple filter above
		// resumes immediately after it, so no row is skipped or repeated.
		last := transactions[normalized-1]
		return transactions, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return transactions, nil, nil
}

func (r *repository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return nil
}
