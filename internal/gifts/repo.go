package gifts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/pkg/db/models"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
)

// Repository reads the gift catalog. Catalog rows are seeded by migration or
// admin tooling; this package only consumes them.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Gift, error)
	ListActive(ctx context.Context, category string) ([]models.Gift, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gifts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	var gift models.Gift
	if err := r.db.WithContext(ctx).First(&gift, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
		}
		return nil, err
	}
	return &gift, nil
}

func (r *repository) ListActive(ctx context.Context, category string) ([]models.Gift, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var gifts []models.Gift
	if err := query.Order("price_coins ASC, name ASC").Find(&gifts).Error; err != nil {
		return nil, err
	}
	return gifts, nil
}
