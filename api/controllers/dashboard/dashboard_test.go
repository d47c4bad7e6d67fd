package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	"github.com/angelmondragon/zipshift-backend/internal/billing"
	dashboardsvc "github.com/angelmondragon/zipshift-backend/internal/dashboard"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

type stubDashboard struct {
	merchantID uuid.UUID
	riderID    uuid.UUID
	err        error
}

func (s *stubDashboard) Summarize(_ context.Context, merchantID uuid.UUID) (*dashboardsvc.Summary, error) {
	s.merchantID = merchantID
	if s.err != nil {
		return nil, s.err
	}
	return &dashboardsvc.Summary{
		MerchantID:          merchantID,
		TotalShipments:      4,
		PendingPickups:      1,
		DeliveredLast30Days: 2,
		CompletionRate:      50,
		WalletBalanceCents:  150050,
		PendingCodCents:     2500,
		LastPayout:          &billing.LastPayout{AmountCents: 40000, Reference: "PO-7", At: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		RecentParcels: []dashboardsvc.RecentParcel{
			{ID: uuid.New(), TrackingNumber: "ZS000001", Status: enums.ParcelStatusDelivered, CodCents: 1999, CreatedAt: time.Now()},
		},
	}, nil
}

func (s *stubDashboard) SummarizeRider(_ context.Context, riderID uuid.UUID) (*dashboardsvc.RiderSummary, error) {
	s.riderID = riderID
	return &dashboardsvc.RiderSummary{RiderID: riderID, EarningsCents: 10000, TotalDeliveries: 2, ToPickup: 1, IsAvailable: true}, nil
}

func (s *stubDashboard) SummarizeOperator(context.Context) (*dashboardsvc.OperatorSummary, error) {
	return &dashboardsvc.OperatorSummary{Merchants: 3, Riders: 5, AvailableRiders: 2, Parcels: 9, Delivered: 4, PaidCostCents: 90000}, nil
}

func requestAs(accountID uuid.UUID, role enums.AccountRole) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	return req.WithContext(middleware.WithIdentity(req.Context(), accountID, role))
}

func TestMerchantDashboardFormatsMoney(t *testing.T) {
	svc := &stubDashboard{}
	merchantID := uuid.New()
	rec := httptest.NewRecorder()
	Merchant(svc, nil).ServeHTTP(rec, requestAs(merchantID, enums.AccountRoleMerchant))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, merchantID, svc.merchantID)

	var body struct {
		Data merchantResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1500.50", body.Data.WalletBalance)
	assert.Equal(t, "25.00", body.Data.PendingCod)
	assert.Equal(t, 50, body.Data.CompletionRate)
	require.NotNil(t, body.Data.LastPayout)
	assert.Equal(t, "400.00", body.Data.LastPayout.Amount)
	assert.Equal(t, "PO-7", body.Data.LastPayout.Reference)
	require.Len(t, body.Data.RecentParcels, 1)
	assert.Equal(t, "19.99", body.Data.RecentParcels[0].CodAmount)
}

func TestMerchantDashboardPropagatesErrors(t *testing.T) {
	svc := &stubDashboard{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	rec := httptest.NewRecorder()
	Merchant(svc, nil).ServeHTTP(rec, requestAs(uuid.New(), enums.AccountRoleMerchant))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRiderStatsUseRiderAccount(t *testing.T) {
	svc := &stubDashboard{}
	riderID := uuid.New()
	rec := httptest.NewRecorder()
	Rider(svc, nil).ServeHTTP(rec, requestAs(riderID, enums.AccountRoleRider))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, riderID, svc.riderID)
	assert.Contains(t, rec.Body.String(), `"earnings":"100.00"`)
}

func TestOperatorStats(t *testing.T) {
	rec := httptest.NewRecorder()
	Operator(&stubDashboard{}, nil).ServeHTTP(rec, requestAs(uuid.New(), enums.AccountRoleOperator))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paidCost":"900.00"`)
	assert.Contains(t, rec.Body.String(), `"availableRiders":2`)
}

func TestDashboardWithoutService(t *testing.T) {
	rec := httptest.NewRecorder()
	Operator(nil, nil).ServeHTTP(rec, requestAs(uuid.New(), enums.AccountRoleOperator))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
