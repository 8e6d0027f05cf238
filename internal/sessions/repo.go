package sessions

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

// activePairIndex is the partial unique index enforcing one live session per
// (payer, payee) pair.
const activePairIndex = "idx_sessions_active_pair"

// Repository persists sessions. Settlement fields are only ever written under
// the row lock FindByIDForUpdate takes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Session, error)
	FindActiveByPair(ctx context.Context, payerID, payeeID uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	ListByAccount(ctx context.Context, params ListSessionsParams) ([]models.Session, *pagination.Cursor, error)
	ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error)
}

// ListSessionsParams filters the session history query.
type ListSessionsParams struct {
	AccountID uuid.UUID
	Status    *enums.SessionStatus
	Limit     int
	Cursor    *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sessions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return r.find(ctx, r.db, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := r.db
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(ctx, query, id)
}

func (r *repository) find(ctx context.Context, query *gorm.DB, id uuid.UUID) (*models.Session, error) {
	var session models.Session
	if err := query.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindActiveByPair(ctx context.Context, payerID, payeeID uuid.UUID) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Where("payer_account_id = ? AND payee_account_id = ? AND status = ?", payerID, payeeID, enums.SessionStatusActive).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active session for pair")
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) Update(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repository) ListByAccount(ctx context.Context, params ListSessionsParams) ([]models.Session, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("payer_account_id = ? OR payee_account_id = ?", params.AccountID, params.AccountID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var sessions []models.Session
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, nil, err
	}

	if len(sessions) > normalized {
		sessions = sessions[:normalized]
		last := sessions[normalized-1]
		return sessions, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return sessions, nil, nil
}

// ListStaleActive returns active sessions that started before the cutoff.
// The inactivity sweeper settles these through the normal End path.
func (r *repository) ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time < ?", enums.SessionStatusActive, cutoff).
		Order("start_time ASC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
