package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	"github.com/angelmondragon/zipshift-backend/pkg/trackingnumber"
)

// SeedParcel inserts an unpaid parcel owned by merchantID; mutate adjusts it before insert.
func SeedParcel(t testing.TB, client *db.Client, merchantID uuid.UUID, mutate func(*models.Parcel)) *models.Parcel {
	t.Helper()

	tn, err := trackingnumber.New()
	if err != nil {
		t.Fatalf("tracking number: %v", err)
	}
	parcel := &models.Parcel{
		ID:             uuid.New(),
		TrackingNumber: tn,
		MerchantID:     merchantID,
		ParcelType:     enums.ParcelTypeNonDocument,
		WeightKg:       1.5,
		CostCents:      12000,
		Status:         enums.ParcelStatusUnpaid,
		PaymentStatus:  enums.PaymentStatusPending,
		Sender: models.Contact{
			Name:    "Sender",
			Phone:   "+8801700000000",
			Address: "1 Sender Road",
		},
		Receiver: models.Contact{
			Name:    "Receiver",
			Phone:   "+8801800000000",
			Address: "2 Receiver Lane",
		},
	}
	if mutate != nil {
		mutate(parcel)
	}
	if err := client.DB().Create(parcel).Error; err != nil {
		t.Fatalf("seed parcel: %v", err)
	}
	return parcel
}

// SeedRider inserts an available rider; mutate adjusts it before insert.
func SeedRider(t testing.TB, client *db.Client, mutate func(*models.Rider)) *models.Rider {
	t.Helper()

	id := uuid.New()
	rider := &models.Rider{
		ID:          id,
		Name:        "Rider " + id.String()[:4],
		Email:       fmt.Sprintf("rider-%s@zipshift.test", id.String()[:8]),
		Phone:       "+8801900000000",
		VehicleType: enums.VehicleTypeBike,
		IsAvailable: true,
	}
	if mutate != nil {
		mutate(rider)
	}
	if err := client.DB().Create(rider).Error; err != nil {
		t.Fatalf("seed rider: %v", err)
	}
	return rider
}

// ReloadParcel reads the parcel back from the database.
func ReloadParcel(t testing.TB, client *db.Client, id uuid.UUID) *models.Parcel {
	t.Helper()
	var parcel models.Parcel
	if err := client.DB().Where("id = ?", id).First(&parcel).Error; err != nil {
		t.Fatalf("reload parcel: %v", err)
	}
	return &parcel
}

// ReloadRider reads the rider back from the database.
func ReloadRider(t testing.TB, client *db.Client, id uuid.UUID) *models.Rider {
	t.Helper()
	var rider models.Rider
	if err := client.DB().Where("id = ?", id).First(&rider).Error; err != nil {
		t.Fatalf("reload rider: %v", err)
	}
	return &rider
}

// FixedClock returns a clock that always reports at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
