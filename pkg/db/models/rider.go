package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// Rider is a pickup/delivery agent. EarningsCents only grows, one credit per completed leg.
type Rider struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name            string            `gorm:"column:name;not null"`
	Email           string            `gorm:"column:email;not null;uniqueIndex:ux_riders_email"`
	Phone           string            `gorm:"column:phone;not null"`
	VehicleType     enums.VehicleType `gorm:"column:vehicle_type;type:vehicle_type;not null"`
	VehicleNumber   string            `gorm:"column:vehicle_number"`
	LicenseNumber   string            `gorm:"column:license_number"`
	IsAvailable     bool              `gorm:"column:is_available;not null"`
	EarningsCents   int64             `gorm:"column:earnings_cents;not null;default:0"`
	TotalDeliveries int64             `gorm:"column:total_deliveries;not null;default:0"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
