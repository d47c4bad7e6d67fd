package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// Repository runs the read-only aggregate queries behind the dashboards.
type Repository interface {
	MerchantCounts(ctx context.Context, merchantID uuid.UUID, since time.Time) (merchantCounts, error)
	RecentParcels(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.Parcel, error)
	RiderCounts(ctx context.Context, riderID uuid.UUID) (riderCounts, error)
	FindRider(ctx context.Context, riderID uuid.UUID) (*models.Rider, error)
	OperatorCounts(ctx context.Context) (operatorCounts, error)
}

type merchantCounts struct {
	Total          int64
	PendingPickups int64
	Delivered      int64
	DeliveredSince int64
}

type riderCounts struct {
	ToPickup  int64
	ToDeliver int64
	InTransit int64
}

type operatorCounts struct {
	Merchants       int64
	Riders          int64
	AvailableRiders int64
	Parcels         int64
	Delivered       int64
	PaidCostCents   int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the dashboard queries to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

var pendingPickupStatuses = []enums.ParcelStatus{
	enums.ParcelStatusUnpaid,
	enums.ParcelStatusPaid,
	enums.ParcelStatusReadyToPickup,
}

func (r *repository) MerchantCounts(ctx context.Context, merchantID uuid.UUID, since time.Time) (merchantCounts, error) {
	var out merchantCounts
	err := r.db.WithContext(ctx).
		Model(&models.Parcel{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS pending_pickups,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = ? AND delivered_at >= ? THEN 1 ELSE 0 END), 0) AS delivered_since`,
			pendingPickupStatuses, enums.ParcelStatusDelivered, enums.ParcelStatusDelivered, since).
		Where("merchant_id = ?", merchantID).
		Scan(&out).Error
	return out, err
}

func (r *repository) RecentParcels(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.Parcel, error) {
	var rows []models.Parcel
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) RiderCounts(ctx context.Context, riderID uuid.UUID) (riderCounts, error) {
	var out riderCounts
	err := r.db.WithContext(ctx).
		Model(&models.Parcel{}).
		Select(`COALESCE(SUM(CASE WHEN pickup_rider_id = ? AND status = ? THEN 1 ELSE 0 END), 0) AS to_pickup,
			COALESCE(SUM(CASE WHEN delivery_rider_id = ? AND status = ? THEN 1 ELSE 0 END), 0) AS to_deliver,
			COALESCE(SUM(CASE WHEN pickup_rider_id = ? AND status = ? THEN 1 ELSE 0 END), 0) AS in_transit`,
			riderID, enums.ParcelStatusReadyToPickup,
			riderID, enums.ParcelStatusReadyForDelivery,
			riderID, enums.ParcelStatusInTransit).
		Where("pickup_rider_id = ? OR delivery_rider_id = ?", riderID, riderID).
		Scan(&out).Error
	return out, err
}

func (r *repository) FindRider(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	var rows []models.Rider
	if err := r.db.WithContext(ctx).Where("id = ?", riderID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) OperatorCounts(ctx context.Context) (operatorCounts, error) {
	var out operatorCounts
	conn := r.db.WithContext(ctx)

	if err := conn.Model(&models.Parcel{}).
		Select(`COUNT(*) AS parcels,
			COUNT(DISTINCT merchant_id) AS merchants,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN payment_status = ? THEN cost_cents ELSE 0 END), 0) AS paid_cost_cents`,
			enums.ParcelStatusDelivered, enums.PaymentStatusPaid).
		Scan(&out).Error; err != nil {
		return out, err
	}

	var riders struct {
		Riders          int64
		AvailableRiders int64
	}
	if err := conn.Model(&models.Rider{}).
		Select(`COUNT(*) AS riders,
			COALESCE(SUM(CASE WHEN is_available THEN 1 ELSE 0 END), 0) AS available_riders`).
		Scan(&riders).Error; err != nil {
		return out, err
	}
	out.Riders = riders.Riders
	out.AvailableRiders = riders.AvailableRiders
	return out, nil
}
