package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/internal/billing"
	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/db/dbtest"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/redis"
)

var fixedNow = time.Date(2026, 7, 15, 14, 45, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *db.Client, billing.Service) {
	t.Helper()
	client := dbtest.Open(t)
	ledger, err := billing.NewService(billing.ServiceParams{
		Repo:              billing.NewRepository(client.DB()),
		TransactionRunner: client,
	})
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), ledger, dbtest.FixedClock(fixedNow))
	require.NoError(t, err)
	return svc, client, ledger
}

func TestSummarizeEmptyMerchant(t *testing.T) {
	svc, _, _ := newTestService(t)
	summary, err := svc.Summarize(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalShipments)
	assert.Zero(t, summary.CompletionRate)
	assert.Empty(t, summary.RecentParcels)
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), summary.WindowStart)
}

func TestSummarizeCountsAndWindow(t *testing.T) {
	ctx := context.Background()
	svc, client, ledger := newTestService(t)
	merchantID := uuid.New()

	recentDelivery := fixedNow.AddDate(0, 0, -3)
	oldDelivery := fixedNow.AddDate(0, 0, -45)
	statuses := []struct {
		status      enums.ParcelStatus
		deliveredAt *time.Time
	}{
		{enums.ParcelStatusUnpaid, nil},
		{enums.ParcelStatusPaid, nil},
		{enums.ParcelStatusReadyToPickup, nil},
		{enums.ParcelStatusInTransit, nil},
		{enums.ParcelStatusDelivered, &recentDelivery},
		{enums.ParcelStatusDelivered, &oldDelivery},
		{enums.ParcelStatusCancelled, nil},
	}
	for i, row := range statuses {
		created := fixedNow.Add(-time.Duration(len(statuses)-i) * time.Hour)
		dbtest.SeedParcel(t, client, merchantID, func(p *models.Parcel) {
			p.Status = row.status
			p.DeliveredAt = row.deliveredAt
			p.CodCents = int64(100 * (i + 1))
			p.CreatedAt = created
		})
	}
	dbtest.SeedParcel(t, client, uuid.New(), func(p *models.Parcel) { p.Status = enums.ParcelStatusDelivered })
	require.NoError(t, ledger.ReserveCod(ctx, merchantID, 900))
	require.NoError(t, ledger.SettleCod(ctx, merchantID, 400))

	summary, err := svc.Summarize(ctx, merchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), summary.TotalShipments)
	assert.Equal(t, int64(3), summary.PendingPickups)
	assert.Equal(t, int64(1), summary.DeliveredLast30Days)
	assert.Equal(t, 29, summary.CompletionRate)
	assert.Equal(t, int64(400), summary.WalletBalanceCents)
	assert.Equal(t, int64(500), summary.PendingCodCents)
	assert.Nil(t, summary.LastPayout)

	require.Len(t, summary.RecentParcels, 5)
	assert.Equal(t, enums.ParcelStatusCancelled, summary.RecentParcels[0].Status)
	assert.Equal(t, int64(700), summary.RecentParcels[0].CodCents)
}

func TestSummarizeCarriesLastPayout(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger := newTestService(t)
	merchantID := uuid.New()

	require.NoError(t, ledger.ReserveCod(ctx, merchantID, 900))
	require.NoError(t, ledger.SettleCod(ctx, merchantID, 900))
	_, err := ledger.RecordPayout(ctx, merchantID, billing.RecordPayoutInput{AmountCents: 600, Reference: "BANK-9"})
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, merchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), summary.WalletBalanceCents)
	require.NotNil(t, summary.LastPayout)
	assert.Equal(t, int64(600), summary.LastPayout.AmountCents)
	assert.Equal(t, "BANK-9", summary.LastPayout.Reference)
}

func TestCompletionRateRounds(t *testing.T) {
	assert.Equal(t, 0, completionRate(0, 0))
	assert.Equal(t, 33, completionRate(1, 3))
	assert.Equal(t, 67, completionRate(2, 3))
	assert.Equal(t, 100, completionRate(4, 4))
}

func TestSummarizeRider(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	rider := dbtest.SeedRider(t, client, func(r *models.Rider) {
		r.EarningsCents = 15000
		r.TotalDeliveries = 3
	})
	bind := func(status enums.ParcelStatus, pickup, delivery bool) {
		dbtest.SeedParcel(t, client, uuid.New(), func(p *models.Parcel) {
			p.Status = status
			if pickup {
				p.PickupRiderID = &rider.ID
			}
			if delivery {
				p.DeliveryRiderID = &rider.ID
			}
		})
	}
	bind(enums.ParcelStatusReadyToPickup, true, false)
	bind(enums.ParcelStatusReadyToPickup, true, false)
	bind(enums.ParcelStatusInTransit, true, false)
	bind(enums.ParcelStatusReadyForDelivery, true, true)
	bind(enums.ParcelStatusDelivered, false, true)

	summary, err := svc.SummarizeRider(ctx, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), summary.EarningsCents)
	assert.Equal(t, int64(3), summary.TotalDeliveries)
	assert.Equal(t, int64(2), summary.ToPickup)
	assert.Equal(t, int64(1), summary.ToDeliver)
	assert.Equal(t, int64(1), summary.InTransit)

	_, err = svc.SummarizeRider(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestSummarizeOperator(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	merchantA, merchantB := uuid.New(), uuid.New()
	dbtest.SeedRider(t, client, nil)
	dbtest.SeedRider(t, client, func(r *models.Rider) { r.IsAvailable = false })
	dbtest.SeedParcel(t, client, merchantA, func(p *models.Parcel) {
		p.Status = enums.ParcelStatusDelivered
		p.PaymentStatus = enums.PaymentStatusPaid
		p.CostCents = 12000
	})
	dbtest.SeedParcel(t, client, merchantA, func(p *models.Parcel) {
		p.Status = enums.ParcelStatusPaid
		p.PaymentStatus = enums.PaymentStatusPaid
		p.CostCents = 8000
	})
	dbtest.SeedParcel(t, client, merchantB, nil)

	summary, err := svc.SummarizeOperator(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Merchants)
	assert.Equal(t, int64(2), summary.Riders)
	assert.Equal(t, int64(1), summary.AvailableRiders)
	assert.Equal(t, int64(3), summary.Parcels)
	assert.Equal(t, int64(1), summary.Delivered)
	assert.Equal(t, int64(20000), summary.PaidCostCents)
}

type memoryCache struct {
	values map[string]string
	gets   int
	getErr error
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.gets++
	if m.getErr != nil {
		return "", m.getErr
	}
	value, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	default:
		m.values[key] = fmt.Sprint(v)
	}
	return nil
}

func (m *memoryCache) CacheKey(parts ...string) string {
	return fmt.Sprintf("test:%v", parts)
}

type countingService struct {
	Service
	calls int
}

func (c *countingService) Summarize(ctx context.Context, merchantID uuid.UUID) (*Summary, error) {
	c.calls++
	return c.Service.Summarize(ctx, merchantID)
}

func TestCachedServiceReadsThrough(t *testing.T) {
	ctx := context.Background()
	inner, client, _ := newTestService(t)
	merchantID := uuid.New()
	dbtest.SeedParcel(t, client, merchantID, nil)

	counting := &countingService{Service: inner}
	cache := &memoryCache{values: map[string]string{}}
	cached := NewCachedService(counting, cache, time.Minute, nil)

	first, err := cached.Summarize(ctx, merchantID)
	require.NoError(t, err)
	second, err := cached.Summarize(ctx, merchantID)
	require.NoError(t, err)

	assert.Equal(t, 1, counting.calls)
	assert.Equal(t, first.TotalShipments, second.TotalShipments)
	assert.Equal(t, first.WindowStart, second.WindowStart)
}

func TestCachedServiceFallsThroughOnCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner, _, _ := newTestService(t)
	counting := &countingService{Service: inner}
	cache := &memoryCache{values: map[string]string{}, getErr: errors.New("connection refused")}
	cached := NewCachedService(counting, cache, time.Minute, nil)

	_, err := cached.Summarize(ctx, uuid.New())
	require.NoError(t, err)
	_, err = cached.Summarize(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls)
	assert.False(t, redis.IsNil(cache.getErr))
}
