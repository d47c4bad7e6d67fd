package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
)

// Repository handles ledger persistence. Every mutator is a single conditional statement;
// the bool result reports whether a row matched the condition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ReserveCod(ctx context.Context, merchantID uuid.UUID, amount int64, now time.Time) error
	SettleCod(ctx context.Context, merchantID uuid.UUID, amount int64, now time.Time) (bool, error)
	ReverseCod(ctx context.Context, merchantID uuid.UUID, amount int64, now time.Time) (bool, error)
	DebitWallet(ctx context.Context, merchantID uuid.UUID, amount int64, reference string, now time.Time) (bool, error)
	FindLedger(ctx context.Context, merchantID uuid.UUID) (*models.BillingLedger, error)
	CreatePayout(ctx context.Context, payout *models.Payout) error
	ListPayouts(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.Payout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ReserveCod creates the ledger on first use or adds to its pending COD, in one upsert.
func (r *repository) ReserveCod(ctx context.Context, merchantID uuid.UUID, amount int64, now time.Time) error {
	ledger := models.BillingLedger{
		MerchantID:      merchantID,
		PendingCodCents: amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "merchant_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"pending_cod_cents": gorm.Expr("billing_ledgers.pending_cod_cents + ?", amount),
				"updated_at":        now,
			}),
		}).
		Create(&ledger).Error
}

func (r *repository) SettleCod(ctx context.Context, merchantID uuid.UUID, amount int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BillingLedger{}).
		Where("merchant_id = ? AND pending_cod_cents >= ?", merchantID, amount).
		UpdateColumns(map[string]any{
			"pending_cod_cents":    gorm.Expr("pending_cod_cents - ?", amount),
			"wallet_balance_cents": gorm.Expr("wallet_balance_cents + ?", amount),
			"updated_at":           now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ReverseCod(ctx context.Context, merchantID uuid.UUID, amount int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BillingLedger{}).
		Where("merchant_id = ? AND pending_cod_cents >= ?", merchantID, amount).
		UpdateColumns(map[string]any{
			"pending_cod_cents": gorm.Expr("pending_cod_cents - ?", amount),
			"updated_at":        now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) DebitWallet(ctx context.Context, merchantID uuid.UUID, amount int64, reference string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BillingLedger{}).
		Where("merchant_id = ? AND wallet_balance_cents >= ?", merchantID, amount).
		UpdateColumns(map[string]any{
			"wallet_balance_cents":     gorm.Expr("wallet_balance_cents - ?", amount),
			"last_payout_amount_cents": amount,
			"last_payout_reference":    reference,
			"last_payout_at":           now,
			"updated_at":               now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindLedger(ctx context.Context, merchantID uuid.UUID) (*models.BillingLedger, error) {
	var ledger models.BillingLedger
	err := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).First(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) ListPayouts(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	query := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("initiated_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
