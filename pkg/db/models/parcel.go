package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// Contact is the sender or receiver block stored inline on a parcel.
type Contact struct {
	Name          string `gorm:"column:name;not null"`
	Phone         string `gorm:"column:phone;not null"`
	Address       string `gorm:"column:address;not null"`
	Region        string `gorm:"column:region"`
	ServiceCenter string `gorm:"column:service_center"`
	Instruction   string `gorm:"column:instruction"`
}

// Parcel is the shipment record. Status changes go through the transition engine and the
// assignment coordinator only; rows are never deleted.
type Parcel struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TrackingNumber       string              `gorm:"column:tracking_number;not null;uniqueIndex:ux_parcels_tracking_number"`
	MerchantID           uuid.UUID           `gorm:"column:merchant_id;type:uuid;not null;index"`
	PickupRiderID        *uuid.UUID          `gorm:"column:pickup_rider_id;type:uuid"`
	DeliveryRiderID      *uuid.UUID          `gorm:"column:delivery_rider_id;type:uuid"`
	PickupCredited       bool                `gorm:"column:pickup_credited;not null;default:false"`
	DeliveryCredited     bool                `gorm:"column:delivery_credited;not null;default:false"`
	ParcelType           enums.ParcelType    `gorm:"column:parcel_type;type:parcel_type;not null"`
	WeightKg             float64             `gorm:"column:weight_kg;not null"`
	CostCents            int64               `gorm:"column:cost_cents;not null;default:0"`
	CodCents             int64               `gorm:"column:cod_cents;not null;default:0"`
	Status               enums.ParcelStatus  `gorm:"column:status;type:parcel_status;not null"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null"`
	PaymentTransactionID *string             `gorm:"column:payment_transaction_id"`
	Sender               Contact             `gorm:"embedded;embeddedPrefix:sender_"`
	Receiver             Contact             `gorm:"embedded;embeddedPrefix:receiver_"`
	DeliveredAt          *time.Time          `gorm:"column:delivered_at"`
	CancelledAt          *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// RiderFor returns the rider bound to the given leg, if any.
func (p *Parcel) RiderFor(leg enums.LegType) *uuid.UUID {
	if leg == enums.LegTypeDelivery {
		return p.DeliveryRiderID
	}
	return p.PickupRiderID
}

// Credited reports whether the leg's earnings were already booked.
func (p *Parcel) Credited(leg enums.LegType) bool {
	if leg == enums.LegTypeDelivery {
		return p.DeliveryCredited
	}
	return p.PickupCredited
}

// IsBoundTo reports whether riderID is the rider bound to leg.
func (p *Parcel) IsBoundTo(leg enums.LegType, riderID uuid.UUID) bool {
	bound := p.RiderFor(leg)
	return bound != nil && *bound == riderID
}
