package withdrawals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// Repository persists withdrawal requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Update(ctx context.Context, withdrawal *models.Withdrawal) error
	List(ctx context.Context, params ListParams) ([]models.Withdrawal, *pagination.Cursor, error)
}

// ListParams filters the withdrawal listing. PayeeID scopes to a single host;
// admins list across all hosts.
type ListParams struct {
	PayeeID       *uuid.UUID
	Status        *enums.WithdrawalStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Cursor        *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a withdrawals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return r.find(ctx, r.db, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	query := r.db
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(ctx, query, id)
}

func (r *repository) find(ctx context.Context, query *gorm.DB, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := query.WithContext(ctx).First(&withdrawal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
		}
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repository) Update(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Save(withdrawal).Error
}

func (r *repository) List(ctx context.Context, params ListParams) ([]models.Withdrawal, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Withdrawal{})
	if params.PayeeID != nil {
		query = query.Where("payee_account_id = ?", *params.PayeeID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *params.CreatedAfter)
	}
	if params.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *params.CreatedBefore)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var withdrawals []models.Withdrawal
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&withdrawals).Error; err != nil {
		return nil, nil, err
	}

	if len(withdrawals) > normalized {
		withdrawals = withdrawals[:normalized]
		last := withdrawals[normalized-1]
		return withdrawals, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return withdrawals, nil, nil
}
