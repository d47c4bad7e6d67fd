package dashboard

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	"github.com/angelmondragon/zipshift-backend/api/responses"
	dashboardsvc "github.com/angelmondragon/zipshift-backend/internal/dashboard"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/money"
)

type recentParcel struct {
	ID             uuid.UUID          `json:"id"`
	TrackingNumber string             `json:"trackingNumber"`
	Status         enums.ParcelStatus `json:"status"`
	CodAmount      string             `json:"codAmount"`
	CreatedAt      time.Time          `json:"createdAt"`
}

type lastPayout struct {
	Amount    string    `json:"amount"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

type merchantResponse struct {
	TotalShipments      int64          `json:"totalShipments"`
	PendingPickups      int64          `json:"pendingPickups"`
	DeliveredLast30Days int64          `json:"deliveredLast30Days"`
	CompletionRate      int            `json:"completionRate"`
	WalletBalance       string         `json:"walletBalance"`
	PendingCod          string         `json:"pendingCod"`
	LastPayout          *lastPayout    `json:"lastPayout,omitempty"`
	RecentParcels       []recentParcel `json:"recentParcels"`
	WindowStart         time.Time      `json:"windowStart"`
}

type riderResponse struct {
	Earnings        string `json:"earnings"`
	TotalDeliveries int64  `json:"totalDeliveries"`
	ToPickup        int64  `json:"toPickup"`
	ToDeliver       int64  `json:"toDeliver"`
	InTransit       int64  `json:"inTransit"`
	IsAvailable     bool   `json:"isAvailable"`
}

type operatorResponse struct {
	Merchants       int64  `json:"merchants"`
	Riders          int64  `json:"riders"`
	AvailableRiders int64  `json:"availableRiders"`
	Parcels         int64  `json:"parcels"`
	Delivered       int64  `json:"delivered"`
	PaidCost        string `json:"paidCost"`
}

// Merchant returns the authenticated merchant's dashboard summary.
func Merchant(svc dashboardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		summary, err := svc.Summarize(ctx, middleware.AccountIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := merchantResponse{
			TotalShipments:      summary.TotalShipments,
			PendingPickups:      summary.PendingPickups,
			DeliveredLast30Days: summary.DeliveredLast30Days,
			CompletionRate:      summary.CompletionRate,
			WalletBalance:       money.Format(summary.WalletBalanceCents),
			PendingCod:          money.Format(summary.PendingCodCents),
			RecentParcels:       make([]recentParcel, 0, len(summary.RecentParcels)),
			WindowStart:         summary.WindowStart,
		}
		if last := summary.LastPayout; last != nil {
			resp.LastPayout = &lastPayout{Amount: money.Format(last.AmountCents), Reference: last.Reference, At: last.At}
		}
		for _, p := range summary.RecentParcels {
			resp.RecentParcels = append(resp.RecentParcels, recentParcel{
				ID:             p.ID,
				TrackingNumber: p.TrackingNumber,
				Status:         p.Status,
				CodAmount:      money.Format(p.CodCents),
				CreatedAt:      p.CreatedAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

func Rider(svc dashboardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		summary, err := svc.SummarizeRider(ctx, middleware.AccountIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, riderResponse{
			Earnings:        money.Format(summary.EarningsCents),
			TotalDeliveries: summary.TotalDeliveries,
			ToPickup:        summary.ToPickup,
			ToDeliver:       summary.ToDeliver,
			InTransit:       summary.InTransit,
			IsAvailable:     summary.IsAvailable,
		})
	}
}

func Operator(svc dashboardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		summary, err := svc.SummarizeOperator(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, operatorResponse{
			Merchants:       summary.Merchants,
			Riders:          summary.Riders,
			AvailableRiders: summary.AvailableRiders,
			Parcels:         summary.Parcels,
			Delivered:       summary.Delivered,
			PaidCost:        money.Format(summary.PaidCostCents),
		})
	}
}
