package billing

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
	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/db/dbtest"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (c *captureNotifier) Notify(_ context.Context, msg notifications.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func newTestService(t *testing.T) (Service, *db.Client, *captureNotifier) {
	t.Helper()
	client := dbtest.Open(t)
	notifier := &captureNotifier{}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(client.DB()),
		TransactionRunner: client,
		Notifier:          notifier,
		Clock:             dbtest.FixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return svc, client, notifier
}

func loadLedger(t *testing.T, client *db.Client, merchantID uuid.UUID) models.BillingLedger {
	t.Helper()
	var ledger models.BillingLedger
	require.NoError(t, client.DB().Where("merchant_id = ?", merchantID).First(&ledger).Error)
	return ledger
}

func TestReserveThenSettleMovesPendingIntoWallet(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	merchantID := uuid.New()

	require.NoError(t, svc.ReserveCod(ctx, merchantID, 50000))
	ledger := loadLedger(t, client, merchantID)
	assert.Equal(t, int64(50000), ledger.PendingCodCents)
	assert.Equal(t, int64(0), ledger.WalletBalanceCents)

	require.NoError(t, svc.ReserveCod(ctx, merchantID, 20000))
	assert.Equal(t, int64(70000), loadLedger(t, client, merchantID).PendingCodCents)

	require.NoError(t, svc.SettleCod(ctx, merchantID, 50000))
	ledger = loadLedger(t, client, merchantID)
	assert.Equal(t, int64(20000), ledger.PendingCodCents)
	assert.Equal(t, int64(50000), ledger.WalletBalanceCents)
}

func TestSettleFailsClosedWhenPendingIsShort(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	merchantID := uuid.New()
	require.NoError(t, svc.ReserveCod(ctx, merchantID, 10000))

	err := svc.SettleCod(ctx, merchantID, 10001)
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	details, ok := pkgerrors.As(err).Details().(ConflictDetails)
	require.True(t, ok)
	assert.Equal(t, "100.00", details.PendingCod)
	assert.Equal(t, "100.01", details.Amount)

	ledger := loadLedger(t, client, merchantID)
	assert.Equal(t, int64(10000), ledger.PendingCodCents, "ledger must stay untouched")
	assert.Equal(t, int64(0), ledger.WalletBalanceCents)
}

func TestSettleAndReverseWithoutLedger(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.SettleCod(context.Background(), uuid.New(), 100)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	err = svc.ReverseCod(context.Background(), uuid.New(), 100)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestReverseCodDecrementsPendingOnly(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	merchantID := uuid.New()
	require.NoError(t, svc.ReserveCod(ctx, merchantID, 30000))

	require.NoError(t, svc.ReverseCod(ctx, merchantID, 30000))
	ledger := loadLedger(t, client, merchantID)
	assert.Equal(t, int64(0), ledger.PendingCodCents)
	assert.Equal(t, int64(0), ledger.WalletBalanceCents)

	err := svc.ReverseCod(ctx, merchantID, 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestNegativeAmountsAreRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for _, err := range []error{
		svc.ReserveCod(ctx, uuid.New(), -1),
		svc.SettleCod(ctx, uuid.New(), -1),
		svc.ReverseCod(ctx, uuid.New(), -1),
	} {
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
}

func TestConcurrentFirstReservationsCreateOneLedger(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	merchantID := uuid.New()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.ReserveCod(ctx, merchantID, 1000)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, client.DB().Model(&models.BillingLedger{}).Where("merchant_id = ?", merchantID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(workers*1000), loadLedger(t, client, merchantID).PendingCodCents)
}

func TestGetOverviewZeroSnapshotForNewMerchant(t *testing.T) {
	svc, _, _ := newTestService(t)
	merchantID := uuid.New()
	overview, err := svc.GetOverview(context.Background(), merchantID)
	require.NoError(t, err)
	assert.Equal(t, merchantID, overview.MerchantID)
	assert.Zero(t, overview.WalletBalanceCents)
	assert.Zero(t, overview.PendingCodCents)
	assert.Nil(t, overview.LastPayout)
	assert.Empty(t, overview.Payouts)
}

func TestRecordPayoutDebitsWalletAndNotifies(t *testing.T) {
	ctx := context.Background()
	svc, client, notifier := newTestService(t)
	merchantID := uuid.New()
	require.NoError(t, svc.ReserveCod(ctx, merchantID, 80000))
	require.NoError(t, svc.SettleCod(ctx, merchantID, 80000))

	payout, err := svc.RecordPayout(ctx, merchantID, RecordPayoutInput{AmountCents: 30000, Reference: "BANK-42"})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusPending, payout.Status)
	assert.Equal(t, enums.PayoutMethodBankTransfer, payout.Method)

	ledger := loadLedger(t, client, merchantID)
	assert.Equal(t, int64(50000), ledger.WalletBalanceCents)

	overview, err := svc.GetOverview(ctx, merchantID)
	require.NoError(t, err)
	require.NotNil(t, overview.LastPayout)
	assert.Equal(t, int64(30000), overview.LastPayout.AmountCents)
	assert.Equal(t, "BANK-42", overview.LastPayout.Reference)
	require.Len(t, overview.Payouts, 1)

	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, enums.NotificationTypePayout, notifier.msgs[0].Type)
	assert.Equal(t, merchantID, notifier.msgs[0].Recipient.AccountID)

	_, err = svc.RecordPayout(ctx, merchantID, RecordPayoutInput{AmountCents: 50001})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, int64(50000), loadLedger(t, client, merchantID).WalletBalanceCents)

	var payouts int64
	require.NoError(t, client.DB().Model(&models.Payout{}).Count(&payouts).Error)
	assert.Equal(t, int64(1), payouts, "rejected payout must not be recorded")
}

func TestReserveWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	merchantID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, svc.ReserveCodWithTx(ctx, tx, merchantID, 5000))
		return pkgerrors.New(pkgerrors.CodeInternal, "abort")
	})
	require.Error(t, err)

	overview, err := svc.GetOverview(ctx, merchantID)
	require.NoError(t, err)
	assert.Zero(t, overview.PendingCodCents)
}
