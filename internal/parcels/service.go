package parcels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/internal/earnings"
	"github.com/angelmondragon/zipshift-backend/internal/notifications"
	"github.com/angelmondragon/zipshift-backend/pkg/broadcast"
	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/metrics"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
	"github.com/angelmondragon/zipshift-backend/pkg/trackingnumber"
)

const trackingNumberAttempts = 3

// Service owns parcel creation and every status change outside leg assignment.
type Service interface {
	CreateParcel(ctx context.Context, merchantID uuid.UUID, input CreateParcelInput) (*models.Parcel, error)
	ApplyTransition(ctx context.Context, parcelID uuid.UUID, target enums.ParcelStatus, actor Actor, input TransitionInput) (*models.Parcel, error)
	MarkPaymentFailed(ctx context.Context, parcelID uuid.UUID) (*models.Parcel, error)
	GetParcel(ctx context.Context, parcelID uuid.UUID, actor Actor) (*models.Parcel, error)
	ListParcels(ctx context.Context, params ListParams) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type historyAppender interface {
	AppendWithTx(ctx context.Context, tx *gorm.DB, event *models.TrackingEvent) error
}

type earningsAccruer interface {
	AccrueWithTx(ctx context.Context, tx *gorm.DB, riderID, parcelID uuid.UUID, leg enums.LegType) (earnings.Result, error)
}

type codLedger interface {
	ReserveCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error
	SettleCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error
	ReverseCodWithTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount int64) error
}

// ServiceParams groups dependencies for the parcel service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	History           historyAppender
	Earnings          earningsAccruer
	Ledger            codLedger
	Notifier          notifications.Notifier
	Broadcaster       broadcast.Broadcaster
	Metrics           *metrics.Lifecycle
	Logger            *logger.Logger
	Clock             func() time.Time
}

// CreateParcelInput is the merchant's booking request. Amounts are cents.
type CreateParcelInput struct {
	ParcelType enums.ParcelType
	WeightKg   float64
	CostCents  int64
	CodCents   int64
	Sender     models.Contact
	Receiver   models.Contact
}

// ListParams scopes a parcel listing. Merchants see their parcels, riders the parcels bound
// to them, operators everything.
type ListParams struct {
	Actor  Actor
	Status *enums.ParcelStatus
	Limit  int
	Cursor string
}

// ListResult is one page of parcels.
type ListResult struct {
	Parcels    []models.Parcel
	NextCursor string
}

type service struct {
	repo        Repository
	tx          txRunner
	history     historyAppender
	earnings    earningsAccruer
	ledger      codLedger
	notifier    notifications.Notifier
	broadcaster broadcast.Broadcaster
	metrics     *metrics.Lifecycle
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the parcel service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "parcel repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.History == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tracking history required")
	}
	if params.Earnings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "earnings service required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing ledger required")
	}
	s := &service{
		repo:        params.Repo,
		tx:          params.TransactionRunner,
		history:     params.History,
		earnings:    params.Earnings,
		ledger:      params.Ledger,
		notifier:    params.Notifier,
		broadcaster: params.Broadcaster,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         params.Clock,
	}
	if s.notifier == nil {
		s.notifier = notifications.NoopNotifier{}
	}
	if s.broadcaster == nil {
		s.broadcaster = broadcast.Noop{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

func (s *service) CreateParcel(ctx context.Context, merchantID uuid.UUID, input CreateParcelInput) (*models.Parcel, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if err := validateCreate(&input); err != nil {
		return nil, err
	}

	var parcel *models.Parcel
	for attempt := 1; attempt <= trackingNumberAttempts; attempt++ {
		candidate, err := s.newParcel(merchantID, input)
		if err != nil {
			return nil, err
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, candidate); err != nil {
				return err
			}
			if err := s.ledger.ReserveCodWithTx(ctx, tx, merchantID, candidate.CodCents); err != nil {
				return err
			}
			return s.history.AppendWithTx(ctx, tx, &models.TrackingEvent{
				ParcelID:   candidate.ID,
				Status:     enums.ParcelStatusUnpaid,
				OccurredAt: candidate.CreatedAt,
			})
		})
		if err == nil {
			parcel = candidate
			break
		}
		if db.IsUniqueViolation(err, "tracking_number") && attempt < trackingNumberAttempts {
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "parcel.tracking_number_collision")
			continue
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create parcel")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"parcel_id":       parcel.ID.String(),
		"tracking_number": parcel.TrackingNumber,
	})
	s.logg.Info(logCtx, "parcel.created")

	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.Recipient{AccountID: merchantID, Role: enums.AccountRoleMerchant},
		Type:      enums.NotificationTypeParcelCreated,
		Text:      fmt.Sprintf("Parcel %s booked", parcel.TrackingNumber),
		Payload:   eventPayload(parcel),
	})
	s.publish(logCtx, broadcast.EventParcelCreated, eventPayload(parcel), broadcast.Role(enums.AccountRoleOperator))
	return parcel, nil
}

func (s *service) newParcel(merchantID uuid.UUID, input CreateParcelInput) (*models.Parcel, error) {
	tn, err := trackingnumber.New()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate tracking number")
	}
	now := s.now()
	return &models.Parcel{
		ID:             uuid.New(),
		TrackingNumber: tn,
		MerchantID:     merchantID,
		ParcelType:     input.ParcelType,
		WeightKg:       input.WeightKg,
		CostCents:      input.CostCents,
		CodCents:       input.CodCents,
		Status:         enums.ParcelStatusUnpaid,
		PaymentStatus:  enums.PaymentStatusPending,
		Sender:         input.Sender,
		Receiver:       input.Receiver,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func validateCreate(input *CreateParcelInput) error {
	if !input.ParcelType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid parcel type")
	}
	if input.WeightKg <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}
	if input.CostCents < 0 || input.CodCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amounts must be non-negative")
	}
	if err := validateContact("sender", &input.Sender); err != nil {
		return err
	}
	return validateContact("receiver", &input.Receiver)
}

func validateContact(field string, contact *models.Contact) error {
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Phone = strings.TrimSpace(contact.Phone)
	contact.Address = strings.TrimSpace(contact.Address)
	if contact.Name == "" || contact.Phone == "" || contact.Address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" name, phone and address are required")
	}
	return nil
}

func (s *service) ApplyTransition(ctx context.Context, parcelID uuid.UUID, target enums.ParcelStatus, actor Actor, input TransitionInput) (*models.Parcel, error) {
	parcel, err := s.repo.FindByID(ctx, parcelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
	}
	if parcel == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
	}

	outcome, err := Transition(*parcel, target, actor, s.now(), input)
	if err != nil {
		return nil, err
	}

	var credited []enums.LegType
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		swapped, err := repo.SwapStatus(ctx, &outcome.Parcel, outcome.From)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update parcel status")
		}
		if !swapped {
			return s.lostSwap(ctx, repo, parcelID, outcome.Parcel.Status)
		}
		if err := s.history.AppendWithTx(ctx, tx, &outcome.Event); err != nil {
			return err
		}
		credited, err = s.applyIntents(ctx, tx, parcelID, outcome.Intents)
		return err
	})
	if err != nil {
		return nil, err
	}

	next := outcome.Parcel
	for _, leg := range credited {
		if leg == enums.LegTypeDelivery {
			next.DeliveryCredited = true
		} else {
			next.PickupCredited = true
		}
	}

	s.metrics.IncTransition(string(outcome.From), string(next.Status))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"parcel_id": parcelID.String(),
		"from":      string(outcome.From),
		"to":        string(next.Status),
		"actor":     string(actor.Role),
	})
	s.logg.Info(logCtx, "parcel.transitioned")

	payload := eventPayload(&next)
	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.Recipient{AccountID: next.MerchantID, Role: enums.AccountRoleMerchant},
		Type:      enums.NotificationTypeParcelStatus,
		Text:      fmt.Sprintf("Parcel %s is now %s", next.TrackingNumber, next.Status),
		Payload:   payload,
	})
	s.publish(logCtx, broadcast.EventParcelStatusChanged, payload, broadcast.Account(next.MerchantID, enums.AccountRoleMerchant))
	s.publish(logCtx, broadcast.EventParcelStatusChanged, payload, broadcast.Role(enums.AccountRoleOperator))
	return &next, nil
}

// applyIntents consumes the side effects inside tx and returns the legs whose rider
// was credited by this call.
func (s *service) applyIntents(ctx context.Context, tx *gorm.DB, parcelID uuid.UUID, intents []Intent) ([]enums.LegType, error) {
	var credited []enums.LegType
	for _, intent := range intents {
		var err error
		switch intent.Kind {
		case IntentCreditRider:
			var result earnings.Result
			result, err = s.earnings.AccrueWithTx(ctx, tx, intent.RiderID, parcelID, intent.Leg)
			if err == nil && result.Credited {
				credited = append(credited, intent.Leg)
			}
		case IntentSettleCod:
			err = s.ledger.SettleCodWithTx(ctx, tx, intent.MerchantID, intent.AmountCents)
		case IntentReverseCod:
			err = s.ledger.ReverseCodWithTx(ctx, tx, intent.MerchantID, intent.AmountCents)
		default:
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown intent %q", intent.Kind))
		}
		if err != nil {
			return nil, err
		}
	}
	return credited, nil
}

// lostSwap reports the status a concurrent writer left behind.
func (s *service) lostSwap(ctx context.Context, repo Repository, parcelID uuid.UUID, attempted enums.ParcelStatus) error {
	current, err := repo.FindByID(ctx, parcelID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload parcel")
	}
	details := pkgerrors.StateDetails{Attempted: string(attempted)}
	if current != nil {
		details.Current = string(current.Status)
	}
	return pkgerrors.StateConflict("parcel changed concurrently", details)
}

func (s *service) MarkPaymentFailed(ctx context.Context, parcelID uuid.UUID) (*models.Parcel, error) {
	updated, err := s.repo.MarkPaymentFailed(ctx, parcelID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	parcel, err := s.repo.FindByID(ctx, parcelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
	}
	if parcel == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
	}
	if updated {
		s.notifier.Notify(ctx, notifications.Message{
			Recipient: notifications.Recipient{AccountID: parcel.MerchantID, Role: enums.AccountRoleMerchant},
			Type:      enums.NotificationTypePayment,
			Text:      fmt.Sprintf("Payment for parcel %s failed", parcel.TrackingNumber),
			Payload:   eventPayload(parcel),
		})
	}
	return parcel, nil
}

func (s *service) GetParcel(ctx context.Context, parcelID uuid.UUID, actor Actor) (*models.Parcel, error) {
	parcel, err := s.repo.FindByID(ctx, parcelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
	}
	if parcel == nil || !CanView(parcel, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
	}
	return parcel, nil
}

// CanView reports whether actor may read parcel. Other accounts' parcels are reported as
// missing rather than forbidden.
func CanView(parcel *models.Parcel, actor Actor) bool {
	switch actor.Role {
	case enums.AccountRoleOperator:
		return true
	case enums.AccountRoleMerchant:
		return parcel.MerchantID == actor.AccountID
	case enums.AccountRoleRider:
		return parcel.IsBoundTo(enums.LegTypePickup, actor.AccountID) ||
			parcel.IsBoundTo(enums.LegTypeDelivery, actor.AccountID)
	default:
		return false
	}
}

func (s *service) ListParcels(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	query := listQuery{Status: params.Status, Limit: params.Limit, Cursor: cursor}
	accountID := params.Actor.AccountID
	switch params.Actor.Role {
	case enums.AccountRoleMerchant:
		query.MerchantID = &accountID
	case enums.AccountRoleRider:
		query.RiderID = &accountID
	case enums.AccountRoleOperator:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown account role")
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list parcels")
	}
	result := &ListResult{Parcels: rows}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) publish(ctx context.Context, event string, payload any, target broadcast.Target) {
	if err := s.broadcaster.Publish(ctx, event, payload, target); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "parcel.broadcast_failed")
	}
}

// EventPayload is the parcel summary pushed to notifications and websocket clients.
type EventPayload struct {
	ParcelID       uuid.UUID           `json:"parcelId"`
	TrackingNumber string              `json:"trackingNumber"`
	Status         enums.ParcelStatus  `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"paymentStatus"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func eventPayload(parcel *models.Parcel) EventPayload {
	return EventPayload{
		ParcelID:       parcel.ID,
		TrackingNumber: parcel.TrackingNumber,
		Status:         parcel.Status,
		PaymentStatus:  parcel.PaymentStatus,
		UpdatedAt:      parcel.UpdatedAt,
	}
}
