package earnings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// Repository holds the two conditional writes that make up a credit.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	MarkCredited(ctx context.Context, parcelID, riderID uuid.UUID, leg enums.LegType) (bool, error)
	AddEarnings(ctx context.Context, riderID uuid.UUID, amount int64) (bool, error)
	FindParcel(ctx context.Context, parcelID uuid.UUID) (*models.Parcel, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an earnings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// MarkCredited flips the leg's credited marker when riderID is bound to the leg and the
// marker is still false.
func (r *repository) MarkCredited(ctx context.Context, parcelID, riderID uuid.UUID, leg enums.LegType) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Parcel{}).
		Where("id = ?", parcelID).
		Where(leg.RiderColumn()+" = ?", riderID).
		Where(leg.CreditedColumn()+" = ?", false).
		UpdateColumn(leg.CreditedColumn(), true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) AddEarnings(ctx context.Context, riderID uuid.UUID, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Where("id = ?", riderID).
		UpdateColumns(map[string]any{
			"earnings_cents":   gorm.Expr("earnings_cents + ?", amount),
			"total_deliveries": gorm.Expr("total_deliveries + ?", 1),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindParcel(ctx context.Context, parcelID uuid.UUID) (*models.Parcel, error) {
	var parcel models.Parcel
	err := r.db.WithContext(ctx).Where("id = ?", parcelID).First(&parcel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &parcel, nil
}
