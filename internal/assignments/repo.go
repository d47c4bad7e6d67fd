package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// Repository reads and binds parcel legs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindParcel(ctx context.Context, id uuid.UUID) (*models.Parcel, error)
	FindRider(ctx context.Context, id uuid.UUID) (*models.Rider, error)
	BindLeg(ctx context.Context, parcelID, riderID uuid.UUID, leg enums.LegType, from enums.ParcelStatus, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds an assignment repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindParcel(ctx context.Context, id uuid.UUID) (*models.Parcel, error) {
	var parcel models.Parcel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&parcel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &parcel, nil
}

func (r *repository) FindRider(ctx context.Context, id uuid.UUID) (*models.Rider, error) {
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

// BindLeg sets the leg's rider and moves the parcel into the leg's bound status in one
// statement. It matches only while the leg is unset and the parcel is still in from.
func (r *repository) BindLeg(ctx context.Context, parcelID, riderID uuid.UUID, leg enums.LegType, from enums.ParcelStatus, now time.Time) (bool, error) {
	column := leg.RiderColumn()
	result := r.db.WithContext(ctx).
		Model(&models.Parcel{}).
		Where(fmt.Sprintf("id = ? AND %s IS NULL AND status = ?", column), parcelID, from).
		UpdateColumns(map[string]any{
			column:       riderID,
			"status":     leg.BoundStatus(),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
