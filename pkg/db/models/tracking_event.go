package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// TrackingEvent is an append-only audit entry of a parcel status change.
// IDs are UUIDv7 so that id order follows insertion order within a timestamp.
type TrackingEvent struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ParcelID   uuid.UUID          `gorm:"column:parcel_id;type:uuid;not null;index:ix_tracking_events_parcel_time,priority:1" json:"parcelId"`
	Status     enums.ParcelStatus `gorm:"column:status;type:parcel_status;not null" json:"status"`
	Message    string             `gorm:"column:message;not null;default:''" json:"message"`
	Location   string             `gorm:"column:location;not null;default:''" json:"location,omitempty"`
	OccurredAt time.Time          `gorm:"column:occurred_at;not null;index:ix_tracking_events_parcel_time,priority:2" json:"occurredAt"`
}
