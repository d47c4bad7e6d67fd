package riders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
)

// Repository persists riders.
type Repository interface {
	Create(ctx context.Context, rider *models.Rider) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Rider, error)
	List(ctx context.Context, query listQuery) ([]models.Rider, *pagination.Cursor, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool, now time.Time) (bool, error)
}

type listQuery struct {
	AvailableOnly bool
	Limit         int
	Cursor        *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a rider repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rider *models.Rider) error {
	return r.db.WithContext(ctx).Create(rider).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Rider, error) {
	var rider models.Rider
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rider, nil
}

func (r *repository) List(ctx context.Context, query listQuery) ([]models.Rider, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.Rider{})
	if query.AvailableOnly {
		q = q.Where("is_available = ?", true)
	}

	var rows []models.Rider
	if err := q.Scopes(pagination.Newest(query.Cursor, query.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, query.Limit, func(r models.Rider) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return page, next, nil
}

func (r *repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"is_available": available, "updated_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
