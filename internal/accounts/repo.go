package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// Repository exposes account persistence. The balance column is off limits
// here; every coin movement goes through the ledger repository.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByPhone(ctx context.Context, phone string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	ListHosts(ctx context.Context, params ListHostsParams) ([]models.Account, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AccountStatus) error
}

// ListHostsParams filters the host directory query.
type ListHostsParams struct {
	Service  *enums.ServiceType
	Language string
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an accounts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "phone = ?", phone).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) Update(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *repository) ListHosts(ctx context.Context, params ListHostsParams) ([]models.Account, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("role = ?", enums.AccountRoleHost).
		Where("status = ?", enums.AccountStatusActive)
	if params.Service != nil {
		switch *params.Service {
		case enums.ServiceTypeChat:
			query = query.Where("chat_rate > 0")
		case enums.ServiceTypeVoice:
			query = query.Where("voice_rate > 0")
		case enums.ServiceTypeVideo:
			query = query.Where("video_rate > 0")
		}
	}
	if params.Language != "" {
		query = query.Where("? = ANY(languages)", params.Language)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var hosts []models.Account
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&hosts).Error; err != nil {
		return nil, nil, err
	}

	if len(hosts) > normalized {
		hosts = hosts[:normalized]
		last := hosts[normalized-1]
		return hosts, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return hosts, nil, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AccountStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return nil
}
