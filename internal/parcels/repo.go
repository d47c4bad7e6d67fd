package parcels

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
)

// Repository persists parcels.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, parcel *models.Parcel) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Parcel, error)
	SwapStatus(ctx context.Context, next *models.Parcel, from enums.ParcelStatus) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	List(ctx context.Context, params listQuery) ([]models.Parcel, *pagination.Cursor, error)
}

type listQuery struct {
	MerchantID *uuid.UUID
	RiderID    *uuid.UUID
	Status     *enums.ParcelStatus
	Limit      int
	Cursor     *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a parcel repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, parcel *models.Parcel) error {
	return r.db.WithContext(ctx).Create(parcel).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Parcel, error) {
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

// SwapStatus writes the engine's output only if the row still carries status from.
func (r *repository) SwapStatus(ctx context.Context, next *models.Parcel, from enums.ParcelStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Parcel{}).
		Where("id = ? AND status = ?", next.ID, from).
		UpdateColumns(map[string]any{
			"status":                 next.Status,
			"payment_status":         next.PaymentStatus,
			"payment_transaction_id": next.PaymentTransactionID,
			"delivered_at":           next.DeliveredAt,
			"cancelled_at":           next.CancelledAt,
			"updated_at":             next.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkPaymentFailed records a refused payment without ever downgrading a paid parcel.
func (r *repository) MarkPaymentFailed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Parcel{}).
		Where("id = ? AND payment_status <> ?", id, enums.PaymentStatusPaid).
		UpdateColumns(map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, params listQuery) ([]models.Parcel, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Parcel{})
	if params.MerchantID != nil {
		query = query.Where("merchant_id = ?", *params.MerchantID)
	}
	if params.RiderID != nil {
		query = query.Where("(pickup_rider_id = ? OR delivery_rider_id = ?)", *params.RiderID, *params.RiderID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var rows []models.Parcel
	if err := query.Scopes(pagination.Newest(params.Cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(p models.Parcel) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}
