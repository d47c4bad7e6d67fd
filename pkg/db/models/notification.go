package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// Notification stores in-app notification payloads addressed to one account.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccountID   uuid.UUID              `gorm:"column:account_id;type:uuid;not null;index" json:"accountId"`
	AccountRole enums.AccountRole      `gorm:"column:account_role;type:account_role;not null" json:"accountRole"`
	Type        enums.NotificationType `gorm:"column:type;type:notification_type;not null" json:"type"`
	Message     string                 `gorm:"column:message;not null" json:"message"`
	Payload     json.RawMessage        `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	ReadAt      *time.Time             `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
