//go:build integration

package assignments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/internal/testsupport"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

func TestBindLegConcurrentRidersPostgres(t *testing.T) {
	client := testsupport.StartPostgres(t)
	ctx := context.Background()
	gdb := client.DB()

	riders := make([]models.Rider, 8)
	for i := range riders {
		riders[i] = models.Rider{
			ID:          uuid.New(),
			Name:        "Rider",
			Email:       uuid.NewString() + "@zipshift.test",
			Phone:       "0100000000",
			VehicleType: enums.VehicleTypeBike,
			IsAvailable: true,
		}
		require.NoError(t, gdb.Create(&riders[i]).Error)
	}

	parcel := models.Parcel{
		ID:             uuid.New(),
		TrackingNumber: "ZSCAS0001",
		MerchantID:     uuid.New(),
		ParcelType:     enums.ParcelTypeDocument,
		WeightKg:       1,
		CostCents:      12000,
		Status:         enums.ParcelStatusPaid,
		PaymentStatus:  enums.PaymentStatusPaid,
		Sender:         models.Contact{Name: "S", Phone: "1", Address: "A"},
		Receiver:       models.Contact{Name: "R", Phone: "2", Address: "B"},
	}
	require.NoError(t, gdb.Create(&parcel).Error)

	repo := NewRepository(gdb)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
	)
	start := make(chan struct{})
	for _, rider := range riders {
		wg.Add(1)
		go func(riderID uuid.UUID) {
			defer wg.Done()
			<-start
			bound, err := repo.BindLeg(ctx, parcel.ID, riderID, enums.LegTypePickup, enums.ParcelStatusPaid, time.Now().UTC())
			assert.NoError(t, err)
			if bound {
				mu.Lock()
				winners = append(winners, riderID)
				mu.Unlock()
			}
		}(rider.ID)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)

	stored, err := repo.FindParcel(ctx, parcel.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PickupRiderID)
	assert.Equal(t, winners[0], *stored.PickupRiderID)
	assert.Equal(t, enums.ParcelStatusReadyToPickup, stored.Status)
	assert.Nil(t, stored.DeliveryRiderID)
}
