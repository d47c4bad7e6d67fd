package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"

	"github.com/angelmondragon/zipshift-backend/internal/billing"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

const (
	recentParcelLimit = 5
	deliveredWindow   = 30
)

// Service aggregates read-only dashboard views.
type Service interface {
	Summarize(ctx context.Context, merchantID uuid.UUID) (*Summary, error)
	SummarizeRider(ctx context.Context, riderID uuid.UUID) (*RiderSummary, error)
	SummarizeOperator(ctx context.Context) (*OperatorSummary, error)
}

type overviewReader interface {
	GetOverview(ctx context.Context, merchantID uuid.UUID) (*billing.Overview, error)
}

// RecentParcel is one row of the merchant's latest bookings.
type RecentParcel struct {
	ID             uuid.UUID          `json:"id"`
	TrackingNumber string             `json:"trackingNumber"`
	Status         enums.ParcelStatus `json:"status"`
	CodCents       int64              `json:"codCents"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Summary is the merchant dashboard.
type Summary struct {
	MerchantID          uuid.UUID           `json:"merchantId"`
	TotalShipments      int64               `json:"totalShipments"`
	PendingPickups      int64               `json:"pendingPickups"`
	DeliveredLast30Days int64               `json:"deliveredLast30Days"`
	CompletionRate      int                 `json:"completionRate"`
	WalletBalanceCents  int64               `json:"walletBalanceCents"`
	PendingCodCents     int64               `json:"pendingCodCents"`
	LastPayout          *billing.LastPayout `json:"lastPayout,omitempty"`
	RecentParcels       []RecentParcel      `json:"recentParcels"`
	WindowStart         time.Time           `json:"windowStart"`
}

// RiderSummary is the rider's work queue and earnings.
type RiderSummary struct {
	RiderID         uuid.UUID `json:"riderId"`
	EarningsCents   int64     `json:"earningsCents"`
	TotalDeliveries int64     `json:"totalDeliveries"`
	ToPickup        int64     `json:"toPickup"`
	ToDeliver       int64     `json:"toDeliver"`
	InTransit       int64     `json:"inTransit"`
	IsAvailable     bool      `json:"isAvailable"`
}

// OperatorSummary is the platform-wide view.
type OperatorSummary struct {
	Merchants       int64 `json:"merchants"`
	Riders          int64 `json:"riders"`
	AvailableRiders int64 `json:"availableRiders"`
	Parcels         int64 `json:"parcels"`
	Delivered       int64 `json:"delivered"`
	PaidCostCents   int64 `json:"paidCostCents"`
}

type service struct {
	repo    Repository
	billing overviewReader
	now     func() time.Time
}

// NewService builds the dashboard aggregator.
func NewService(repo Repository, ledger overviewReader, clock func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dashboard repository required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing overview required")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: repo, billing: ledger, now: clock}, nil
}

// windowStart is midnight of the current day minus the delivered window.
func (s *service) windowStart() time.Time {
	return now.With(s.now()).BeginningOfDay().AddDate(0, 0, -deliveredWindow)
}

func (s *service) Summarize(ctx context.Context, merchantID uuid.UUID) (*Summary, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	since := s.windowStart()

	counts, err := s.repo.MerchantCounts(ctx, merchantID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count parcels")
	}
	recent, err := s.repo.RecentParcels(ctx, merchantID, recentParcelLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent parcels")
	}
	overview, err := s.billing.GetOverview(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		MerchantID:          merchantID,
		TotalShipments:      counts.Total,
		PendingPickups:      counts.PendingPickups,
		DeliveredLast30Days: counts.DeliveredSince,
		CompletionRate:      completionRate(counts.Delivered, counts.Total),
		WalletBalanceCents:  overview.WalletBalanceCents,
		PendingCodCents:     overview.PendingCodCents,
		LastPayout:          overview.LastPayout,
		RecentParcels:       make([]RecentParcel, 0, len(recent)),
		WindowStart:         since,
	}
	for _, parcel := range recent {
		summary.RecentParcels = append(summary.RecentParcels, RecentParcel{
			ID:             parcel.ID,
			TrackingNumber: parcel.TrackingNumber,
			Status:         parcel.Status,
			CodCents:       parcel.CodCents,
			CreatedAt:      parcel.CreatedAt,
		})
	}
	return summary, nil
}

func completionRate(delivered, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(delivered) * 100 / float64(total)))
}

func (s *service) SummarizeRider(ctx context.Context, riderID uuid.UUID) (*RiderSummary, error) {
	rider, err := s.repo.FindRider(ctx, riderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rider")
	}
	if rider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
	}
	counts, err := s.repo.RiderCounts(ctx, riderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count rider parcels")
	}
	return &RiderSummary{
		RiderID:         rider.ID,
		EarningsCents:   rider.EarningsCents,
		TotalDeliveries: rider.TotalDeliveries,
		ToPickup:        counts.ToPickup,
		ToDeliver:       counts.ToDeliver,
		InTransit:       counts.InTransit,
		IsAvailable:     rider.IsAvailable,
	}, nil
}

func (s *service) SummarizeOperator(ctx context.Context) (*OperatorSummary, error) {
	counts, err := s.repo.OperatorCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count platform totals")
	}
	return &OperatorSummary{
		Merchants:       counts.Merchants,
		Riders:          counts.Riders,
		AvailableRiders: counts.AvailableRiders,
		Parcels:         counts.Parcels,
		Delivered:       counts.Delivered,
		PaidCostCents:   counts.PaidCostCents,
	}, nil
}
