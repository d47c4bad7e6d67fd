package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

// BillingLedger is the per-merchant COD balance sheet. One row per merchant, created
// lazily by the first COD reservation.
type BillingLedger struct {
	MerchantID            uuid.UUID  `gorm:"column:merchant_id;type:uuid;primaryKey"`
	WalletBalanceCents    int64      `gorm:"column:wallet_balance_cents;not null;default:0"`
	PendingCodCents       int64      `gorm:"column:pending_cod_cents;not null;default:0;check:pending_cod_cents >= 0"`
	LastPayoutAmountCents *int64     `gorm:"column:last_payout_amount_cents"`
	LastPayoutReference   *string    `gorm:"column:last_payout_reference"`
	LastPayoutAt          *time.Time `gorm:"column:last_payout_at"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Payout records a wallet withdrawal request. The ledger never executes the transfer.
type Payout struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	MerchantID  uuid.UUID          `gorm:"column:merchant_id;type:uuid;not null;index"`
	AmountCents int64              `gorm:"column:amount_cents;not null"`
	Reference   string             `gorm:"column:reference;not null"`
	Status      enums.PayoutStatus `gorm:"column:status;type:payout_status;not null"`
	Method      string             `gorm:"column:method;not null"`
	InitiatedAt time.Time          `gorm:"column:initiated_at;not null"`
}
