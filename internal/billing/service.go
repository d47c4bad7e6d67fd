package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/internal/notifications"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/metrics"
	"github.com/angelmondragon/zipshift-backend/pkg/money"
)

const payoutHistoryLimit = 20

const (
	opReserve = "reserve"
	opSettle  = "settle"
	opReverse = "reverse"
	opPayout  = "payout"
)

// Service is the per-merchant cash-on-delivery ledger.
type Service interface {
	ReserveCod(ctx context.Context, merchantID uuid.UUID, amount int64) error
	ReserveCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error
	SettleCod(ctx context.Context, merchantID uuid.UUID, amount int64) error
	SettleCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error
	ReverseCod(ctx context.Context, merchantID uuid.UUID, amount int64) error
	ReverseCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error
	GetOverview(ctx context.Context, merchantID uuid.UUID) (*Overview, error)
	RecordPayout(ctx context.Context, merchantID uuid.UUID, input RecordPayoutInput) (*models.Payout, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Notifier          notifications.Notifier
	Metrics           *metrics.Lifecycle
	Logger            *logger.Logger
	Clock             func() time.Time
}

// LastPayout is the most recent wallet withdrawal.
type LastPayout struct {
	AmountCents int64     `json:"amountCents"`
	Reference   string    `json:"reference"`
	At          time.Time `json:"at"`
}

// Overview is the merchant billing snapshot.
type Overview struct {
	MerchantID         uuid.UUID
	WalletBalanceCents int64
	PendingCodCents    int64
	LastPayout         *LastPayout
	Payouts            []models.Payout
}

// RecordPayoutInput describes a payout the operator initiated outside the platform.
type RecordPayoutInput struct {
	AmountCents int64
	Reference   string
	Method      string
}

// ConflictDetails is attached to COD and wallet conflicts.
type ConflictDetails struct {
	PendingCod    string `json:"pendingCod,omitempty"`
	WalletBalance string `json:"walletBalance,omitempty"`
	Amount        string `json:"amount"`
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifications.Notifier
	metrics  *metrics.Lifecycle
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a billing service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	s := &service{
		repo:     params.Repo,
		tx:       params.TransactionRunner,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      params.Clock,
	}
	if s.notifier == nil {
		s.notifier = notifications.NoopNotifier{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

func validateAmount(merchantID uuid.UUID, amount int64) error {
	if merchantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	return nil
}

func (s *service) ReserveCod(ctx context.Context, merchantID uuid.UUID, amount int64) error {
	return s.reserve(ctx, s.repo, merchantID, amount)
}

func (s *service) ReserveCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error {
	return s.reserve(ctx, s.repo.WithTx(tx), merchantID, amount)
}

func (s *service) reserve(ctx context.Context, repo Repository, merchantID uuid.UUID, amount int64) error {
	if err := validateAmount(merchantID, amount); err != nil {
		return err
	}
	if err := repo.ReserveCod(ctx, merchantID, amount, s.now()); err != nil {
		s.metrics.IncLedgerOperation(opReserve, "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve cod")
	}
	s.metrics.IncLedgerOperation(opReserve, "ok")
	return nil
}

func (s *service) SettleCod(ctx context.Context, merchantID uuid.UUID, amount int64) error {
	return s.settle(ctx, s.repo, merchantID, amount)
}

func (s *service) SettleCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error {
	return s.settle(ctx, s.repo.WithTx(tx), merchantID, amount)
}

// settle moves amount from pending COD to the wallet. It fails closed: a ledger whose
// pending COD cannot cover the amount is left untouched and a conflict is returned.
func (s *service) settle(ctx context.Context, repo Repository, merchantID uuid.UUID, amount int64) error {
	if err := validateAmount(merchantID, amount); err != nil {
		return err
	}
	ok, err := repo.SettleCod(ctx, merchantID, amount, s.now())
	if err != nil {
		s.metrics.IncLedgerOperation(opSettle, "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle cod")
	}
	if !ok {
		s.metrics.IncLedgerOperation(opSettle, "conflict")
		return s.pendingConflict(ctx, repo, merchantID, amount, "pending cod does not cover settlement")
	}
	s.metrics.IncLedgerOperation(opSettle, "ok")
	return nil
}

func (s *service) ReverseCod(ctx context.Context, merchantID uuid.UUID, amount int64) error {
	return s.reverse(ctx, s.repo, merchantID, amount)
}

func (s *service) ReverseCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error {
	return s.reverse(ctx, s.repo.WithTx(tx), merchantID, amount)
}

func (s *service) reverse(ctx context.Context, repo Repository, merchantID uuid.UUID, amount int64) error {
	if err := validateAmount(merchantID, amount); err != nil {
		return err
	}
	ok, err := repo.ReverseCod(ctx, merchantID, amount, s.now())
	if err != nil {
		s.metrics.IncLedgerOperation(opReverse, "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse cod")
	}
	if !ok {
		s.metrics.IncLedgerOperation(opReverse, "conflict")
		return s.pendingConflict(ctx, repo, merchantID, amount, "pending cod does not cover reversal")
	}
	s.metrics.IncLedgerOperation(opReverse, "ok")
	return nil
}

func (s *service) pendingConflict(ctx context.Context, repo Repository, merchantID uuid.UUID, amount int64, message string) error {
	ledger, err := repo.FindLedger(ctx, merchantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger")
	}
	if ledger == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "billing ledger not found")
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"merchant_id":  merchantID.String(),
		"pending_cod":  ledger.PendingCodCents,
		"amount_cents": amount,
	}), "billing.cod_conflict")
	return pkgerrors.New(pkgerrors.CodeConflict, message).WithDetails(ConflictDetails{
		PendingCod: money.Format(ledger.PendingCodCents),
		Amount:     money.Format(amount),
	})
}

func (s *service) GetOverview(ctx context.Context, merchantID uuid.UUID) (*Overview, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	overview := &Overview{MerchantID: merchantID, Payouts: []models.Payout{}}

	ledger, err := s.repo.FindLedger(ctx, merchantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger")
	}
	if ledger == nil {
		return overview, nil
	}

	overview.WalletBalanceCents = ledger.WalletBalanceCents
	overview.PendingCodCents = ledger.PendingCodCents
	if ledger.LastPayoutAt != nil && ledger.LastPayoutAmountCents != nil {
		last := &LastPayout{AmountCents: *ledger.LastPayoutAmountCents, At: *ledger.LastPayoutAt}
		if ledger.LastPayoutReference != nil {
			last.Reference = *ledger.LastPayoutReference
		}
		overview.LastPayout = last
	}

	payouts, err := s.repo.ListPayouts(ctx, merchantID, payoutHistoryLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	if payouts != nil {
		overview.Payouts = payouts
	}
	return overview, nil
}

// RecordPayout books a withdrawal from the wallet. The transfer itself happens elsewhere.
func (s *service) RecordPayout(ctx context.Context, merchantID uuid.UUID, input RecordPayoutInput) (*models.Payout, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = fmt.Sprintf("PO-%s", strings.ToUpper(uuid.NewString()[:8]))
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		method = enums.PayoutMethodBankTransfer
	}

	now := s.now()
	payout := &models.Payout{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		AmountCents: input.AmountCents,
		Reference:   reference,
		Status:      enums.PayoutStatusPending,
		Method:      method,
		InitiatedAt: now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.DebitWallet(ctx, merchantID, input.AmountCents, reference, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
		}
		if !ok {
			ledger, err := repo.FindLedger(ctx, merchantID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger")
			}
			if ledger == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "billing ledger not found")
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "wallet balance does not cover payout").WithDetails(ConflictDetails{
				WalletBalance: money.Format(ledger.WalletBalanceCents),
				Amount:        money.Format(input.AmountCents),
			})
		}
		if err := repo.CreatePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout")
		}
		return nil
	})
	if err != nil {
		result := "error"
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			result = "conflict"
		}
		s.metrics.IncLedgerOperation(opPayout, result)
		return nil, err
	}
	s.metrics.IncLedgerOperation(opPayout, "ok")

	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.Recipient{AccountID: merchantID, Role: enums.AccountRoleMerchant},
		Type:      enums.NotificationTypePayout,
		Text:      fmt.Sprintf("Payout of %s initiated (%s)", money.Format(input.AmountCents), reference),
		Payload:   map[string]string{"reference": reference, "amount": money.Format(input.AmountCents)},
	})
	return payout, nil
}
