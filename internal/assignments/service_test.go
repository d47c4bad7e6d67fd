package assignments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/internal/notifications"
	"github.com/angelmondragon/zipshift-backend/internal/tracking"
	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/db/dbtest"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notifications.Message
}

func (c *captureNotifier) Notify(_ context.Context, msg notifications.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
}

func newTestService(t *testing.T) (Service, *db.Client, *captureNotifier) {
	t.Helper()
	client := dbtest.Open(t)
	clock := dbtest.FixedClock(time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC))
	history, err := tracking.NewService(tracking.NewRepository(client.DB()), clock)
	require.NoError(t, err)

	notifier := &captureNotifier{}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(client.DB()),
		TransactionRunner: client,
		History:           history,
		Notifier:          notifier,
		Clock:             clock,
	})
	require.NoError(t, err)
	return svc, client, notifier
}

func paidParcel(p *models.Parcel) {
	p.Status = enums.ParcelStatusPaid
	p.PaymentStatus = enums.PaymentStatusPaid
}

func TestAssignPickupBindsRiderAndRecordsEvent(t *testing.T) {
	ctx := context.Background()
	svc, client, notifier := newTestService(t)
	rider := dbtest.SeedRider(t, client, nil)
	parcel := dbtest.SeedParcel(t, client, uuid.New(), paidParcel)

	assigned, err := svc.AssignLeg(ctx, parcel.ID, rider.ID, enums.LegTypePickup)
	require.NoError(t, err)
	assert.Equal(t, enums.ParcelStatusReadyToPickup, assigned.Status)
	require.NotNil(t, assigned.PickupRiderID)
	assert.Equal(t, rider.ID, *assigned.PickupRiderID)

	stored := dbtest.ReloadParcel(t, client, parcel.ID)
	assert.Equal(t, enums.ParcelStatusReadyToPickup, stored.Status)
	assert.True(t, stored.IsBoundTo(enums.LegTypePickup, rider.ID))
	assert.Nil(t, stored.DeliveryRiderID)

	var events []models.TrackingEvent
	require.NoError(t, client.DB().Where("parcel_id = ?", parcel.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.ParcelStatusReadyToPickup, events[0].Status)
	assert.Contains(t, events[0].Message, rider.Name)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, rider.ID, notifier.sent[0].Recipient.AccountID)
	assert.Equal(t, enums.NotificationTypeLegAssigned, notifier.sent[0].Type)
}

func TestAssignPickupAfterOperatorStagedParcel(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	rider := dbtest.SeedRider(t, client, nil)
	staged := dbtest.SeedParcel(t, client, uuid.New(), func(p *models.Parcel) {
		paidParcel(p)
		p.Status = enums.ParcelStatusReadyToPickup
	})

	assigned, err := svc.AssignLeg(ctx, staged.ID, rider.ID, enums.LegTypePickup)
	require.NoError(t, err)
	assert.Equal(t, enums.ParcelStatusReadyToPickup, assigned.Status)

	stored := dbtest.ReloadParcel(t, client, staged.ID)
	assert.Equal(t, enums.ParcelStatusReadyToPickup, stored.Status)
	assert.True(t, stored.IsBoundTo(enums.LegTypePickup, rider.ID))
}

func TestAssignDeliveryFromEverySourceStatus(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	rider := dbtest.SeedRider(t, client, nil)

	for _, from := range []enums.ParcelStatus{
		enums.ParcelStatusInTransit,
		enums.ParcelStatusReachedServiceCenter,
		enums.ParcelStatusReadyForDelivery,
	} {
		parcel := dbtest.SeedParcel(t, client, uuid.New(), func(p *models.Parcel) { p.Status = from })
		assigned, err := svc.AssignLeg(ctx, parcel.ID, rider.ID, enums.LegTypeDelivery)
		require.NoError(t, err, "from %s", from)
		assert.Equal(t, enums.ParcelStatusReadyForDelivery, assigned.Status)
		assert.True(t, dbtest.ReloadParcel(t, client, parcel.ID).IsBoundTo(enums.LegTypeDelivery, rider.ID))
	}
}

func TestAssignLegPreconditions(t *testing.T) {
	ctx := context.Background()
	svc, client, notifier := newTestService(t)
	available := dbtest.SeedRider(t, client, nil)
	offDuty := dbtest.SeedRider(t, client, func(r *models.Rider) { r.IsAvailable = false })
	other := dbtest.SeedRider(t, client, nil)

	paid := dbtest.SeedParcel(t, client, uuid.New(), paidParcel)
	delivered := dbtest.SeedParcel(t, client, uuid.New(), func(p *models.Parcel) { p.Status = enums.ParcelStatusDelivered })
	unpaid := dbtest.SeedParcel(t, client, uuid.New(), nil)
	taken := dbtest.SeedParcel(t, client, uuid.New(), func(p *models.Parcel) {
		p.Status = enums.ParcelStatusReadyToPickup
		p.PickupRiderID = &other.ID
	})

	cases := []struct {
		name     string
		parcelID uuid.UUID
		riderID  uuid.UUID
		leg      enums.LegType
		code     pkgerrors.Code
	}{
		{"missing parcel", uuid.New(), available.ID, enums.LegTypePickup, pkgerrors.CodeNotFound},
		{"terminal parcel", delivered.ID, available.ID, enums.LegTypeDelivery, pkgerrors.CodeInvalidTransition},
		{"missing rider", paid.ID, uuid.New(), enums.LegTypePickup, pkgerrors.CodeNotFound},
		{"unavailable rider", paid.ID, offDuty.ID, enums.LegTypePickup, pkgerrors.CodeUnavailable},
		{"leg already bound", taken.ID, available.ID, enums.LegTypePickup, pkgerrors.CodeConflict},
		{"wrong source status", unpaid.ID, available.ID, enums.LegTypePickup, pkgerrors.CodeInvalidTransition},
		{"delivery before pickup", paid.ID, available.ID, enums.LegTypeDelivery, pkgerrors.CodeInvalidTransition},
		{"unknown leg", paid.ID, available.ID, enums.LegType("return"), pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AssignLeg(ctx, tc.parcelID, tc.riderID, tc.leg)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, tc.code), "got %v", err)
		})
	}

	assert.True(t, dbtest.ReloadParcel(t, client, taken.ID).IsBoundTo(enums.LegTypePickup, other.ID))
	assert.Equal(t, enums.ParcelStatusPaid, dbtest.ReloadParcel(t, client, paid.ID).Status)
	assert.Empty(t, notifier.sent)
}

func TestConflictDetailsNameTheLeg(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	first := dbtest.SeedRider(t, client, nil)
	second := dbtest.SeedRider(t, client, nil)
	parcel := dbtest.SeedParcel(t, client, uuid.New(), paidParcel)

	_, err := svc.AssignLeg(ctx, parcel.ID, first.ID, enums.LegTypePickup)
	require.NoError(t, err)

	_, err = svc.AssignLeg(ctx, parcel.ID, second.ID, enums.LegTypePickup)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	details, ok := pkgerrors.As(err).Details().(pkgerrors.StateDetails)
	require.True(t, ok)
	assert.Equal(t, "pickup", details.Leg)
	assert.Equal(t, second.ID.String(), details.Attempted)
	assert.Equal(t, first.ID.String(), details.Current)
}

func TestConcurrentPickupAssignmentsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	parcel := dbtest.SeedParcel(t, client, uuid.New(), paidParcel)

	const contenders = 8
	riders := make([]*models.Rider, contenders)
	for i := range riders {
		riders[i] = dbtest.SeedRider(t, client, nil)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := range riders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AssignLeg(ctx, parcel.ID, riders[i].ID, enums.LegTypePickup)
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner uuid.UUID
	for i, err := range errs {
		if err == nil {
			winners++
			winner = riders[i].ID
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)
	}
	require.Equal(t, 1, winners)
	assert.True(t, dbtest.ReloadParcel(t, client, parcel.ID).IsBoundTo(enums.LegTypePickup, winner))

	var events int64
	require.NoError(t, client.DB().Model(&models.TrackingEvent{}).Where("parcel_id = ?", parcel.ID).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

// staleRepository answers the first read with a snapshot taken before a concurrent bind
// landed; later reads see the database.
type staleRepository struct {
	Repository
	stale *models.Parcel
}

func (r *staleRepository) WithTx(tx *gorm.DB) Repository {
	return &staleRepository{Repository: r.Repository.WithTx(tx), stale: r.stale}
}

func (r *staleRepository) FindParcel(ctx context.Context, id uuid.UUID) (*models.Parcel, error) {
	if r.stale == nil {
		return r.Repository.FindParcel(ctx, id)
	}
	copied := *r.stale
	r.stale = nil
	return &copied, nil
}

func TestLostBindReportsConflict(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	winner := dbtest.SeedRider(t, client, nil)
	loser := dbtest.SeedRider(t, client, nil)
	parcel := dbtest.SeedParcel(t, client, uuid.New(), paidParcel)
	stale := *parcel
	require.NoError(t, client.DB().Model(&models.Parcel{}).Where("id = ?", parcel.ID).
		UpdateColumns(map[string]any{"pickup_rider_id": winner.ID, "status": enums.ParcelStatusReadyToPickup}).Error)

	history, err := tracking.NewService(tracking.NewRepository(client.DB()), nil)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:              &staleRepository{Repository: NewRepository(client.DB()), stale: &stale},
		TransactionRunner: client,
		History:           history,
	})
	require.NoError(t, err)

	_, err = svc.AssignLeg(ctx, parcel.ID, loser.ID, enums.LegTypePickup)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(pkgerrors.StateDetails)
	require.True(t, ok)
	assert.Equal(t, winner.ID.String(), details.Current)
	assert.True(t, dbtest.ReloadParcel(t, client, parcel.ID).IsBoundTo(enums.LegTypePickup, winner.ID))
}
