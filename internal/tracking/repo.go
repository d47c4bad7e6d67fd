package tracking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
)

// Repository persists and reads the append-only tracking log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.TrackingEvent) error
	ListByParcel(ctx context.Context, parcelID uuid.UUID) ([]models.TrackingEvent, error)
	ParcelExists(ctx context.Context, parcelID uuid.UUID) (bool, error)
	FindParcelByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Parcel, error)
	FindRider(ctx context.Context, riderID uuid.UUID) (*models.Rider, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tracking repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.TrackingEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByParcel returns the parcel's events newest first. UUIDv7 ids break timestamp ties
// in insertion order.
func (r *repository) ListByParcel(ctx context.Context, parcelID uuid.UUID) ([]models.TrackingEvent, error) {
	var events []models.TrackingEvent
	err := r.db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("occurred_at DESC, id DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ParcelExists(ctx context.Context, parcelID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Parcel{}).Where("id = ?", parcelID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindParcelByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Parcel, error) {
	var parcel models.Parcel
	err := r.db.WithContext(ctx).Where("tracking_number = ?", trackingNumber).First(&parcel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &parcel, nil
}

func (r *repository) FindRider(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	var rider models.Rider
	err := r.db.WithContext(ctx).Where("id = ?", riderID).First(&rider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rider, nil
}
