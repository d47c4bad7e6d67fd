package assignments

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/internal/notifications"
	"github.com/angelmondragon/zipshift-backend/pkg/broadcast"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/metrics"
)

// Service binds riders to parcel legs.
type Service interface {
	AssignLeg(ctx context.Context, parcelID, riderID uuid.UUID, leg enums.LegType) (*models.Parcel, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type historyAppender interface {
	AppendWithTx(ctx context.Context, tx *gorm.DB, event *models.TrackingEvent) error
}

// ServiceParams groups dependencies for the assignment coordinator.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	History           historyAppender
	Notifier          notifications.Notifier
	Broadcaster       broadcast.Broadcaster
	Metrics           *metrics.Lifecycle
	Logger            *logger.Logger
	Clock             func() time.Time
}

// AssignedPayload is pushed to the rider when a leg is bound to them.
type AssignedPayload struct {
	ParcelID       uuid.UUID          `json:"parcelId"`
	TrackingNumber string             `json:"trackingNumber"`
	Leg            enums.LegType      `json:"leg"`
	Status         enums.ParcelStatus `json:"status"`
}

type service struct {
	repo        Repository
	tx          txRunner
	history     historyAppender
	notifier    notifications.Notifier
	broadcaster broadcast.Broadcaster
	metrics     *metrics.Lifecycle
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the assignment coordinator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "assignment repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.History == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tracking history required")
	}
	s := &service{
		repo:        params.Repo,
		tx:          params.TransactionRunner,
		history:     params.History,
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

// sourceStatuses lists where a parcel must be for leg to be bound. The bound status
// itself is included: an operator may move a parcel there before any rider is set.
func sourceStatuses(leg enums.LegType) []enums.ParcelStatus {
	if leg == enums.LegTypeDelivery {
		return []enums.ParcelStatus{
			enums.ParcelStatusInTransit,
			enums.ParcelStatusReachedServiceCenter,
			enums.ParcelStatusReadyForDelivery,
		}
	}
	return []enums.ParcelStatus{enums.ParcelStatusPaid, enums.ParcelStatusReadyToPickup}
}

func isSource(leg enums.LegType, status enums.ParcelStatus) bool {
	return slices.Contains(sourceStatuses(leg), status)
}

func (s *service) AssignLeg(ctx context.Context, parcelID, riderID uuid.UUID, leg enums.LegType) (*models.Parcel, error) {
	if !leg.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid leg %q", leg))
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"parcel_id": parcelID.String(),
		"rider_id":  riderID.String(),
		"leg":       string(leg),
	})

	var assigned *models.Parcel
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		parcel, err := repo.FindParcel(ctx, parcelID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parcel")
		}
		if parcel == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
		}
		bound := leg.BoundStatus()
		if parcel.Status.IsTerminal() {
			return pkgerrors.InvalidTransition(string(parcel.Status), string(bound))
		}

		rider, err := repo.FindRider(ctx, riderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rider")
		}
		if rider == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
		}
		if !rider.IsAvailable {
			return pkgerrors.New(pkgerrors.CodeUnavailable, "rider is not available")
		}

		if current := parcel.RiderFor(leg); current != nil {
			return legTaken(leg, riderID, *current)
		}
		if !isSource(leg, parcel.Status) {
			return pkgerrors.InvalidTransition(string(parcel.Status), string(bound))
		}

		now := s.now()
		ok, err := repo.BindLeg(ctx, parcelID, riderID, leg, parcel.Status, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind leg")
		}
		if !ok {
			return s.lostBind(ctx, repo, parcelID, riderID, leg)
		}

		if err := s.history.AppendWithTx(ctx, tx, &models.TrackingEvent{
			ParcelID:   parcelID,
			Status:     bound,
			Message:    fmt.Sprintf("%s rider %s assigned", legLabel(leg), rider.Name),
			OccurredAt: now,
		}); err != nil {
			return err
		}

		next := *parcel
		next.Status = bound
		next.UpdatedAt = now
		if leg == enums.LegTypeDelivery {
			next.DeliveryRiderID = &riderID
		} else {
			next.PickupRiderID = &riderID
		}
		assigned = &next
		return nil
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			s.metrics.IncAssignmentConflict(string(leg))
			s.logg.Warn(logCtx, "assignment.conflict")
		}
		return nil, err
	}

	s.logg.Info(logCtx, "assignment.bound")
	payload := AssignedPayload{
		ParcelID:       assigned.ID,
		TrackingNumber: assigned.TrackingNumber,
		Leg:            leg,
		Status:         assigned.Status,
	}
	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.Recipient{AccountID: riderID, Role: enums.AccountRoleRider},
		Type:      enums.NotificationTypeLegAssigned,
		Text:      fmt.Sprintf("You have a new %s: parcel %s", leg, assigned.TrackingNumber),
		Payload:   payload,
	})
	if err := s.broadcaster.Publish(ctx, broadcast.EventParcelAssigned, payload, broadcast.Account(riderID, enums.AccountRoleRider)); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "assignment.broadcast_failed")
	}
	if err := s.broadcaster.Publish(ctx, broadcast.EventParcelStatusChanged, payload, broadcast.Account(assigned.MerchantID, enums.AccountRoleMerchant)); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "assignment.broadcast_failed")
	}
	return assigned, nil
}

// lostBind explains why the conditional bind matched nothing after the checks passed.
func (s *service) lostBind(ctx context.Context, repo Repository, parcelID, riderID uuid.UUID, leg enums.LegType) error {
	current, err := repo.FindParcel(ctx, parcelID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload parcel")
	}
	if current == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "parcel not found")
	}
	if bound := current.RiderFor(leg); bound != nil {
		return legTaken(leg, riderID, *bound)
	}
	return pkgerrors.StateConflict("parcel changed concurrently", pkgerrors.StateDetails{
		Leg:       string(leg),
		Attempted: string(leg.BoundStatus()),
		Current:   string(current.Status),
	})
}

func legTaken(leg enums.LegType, attempted, current uuid.UUID) error {
	return pkgerrors.StateConflict(fmt.Sprintf("%s leg already assigned", leg), pkgerrors.StateDetails{
		Leg:       string(leg),
		Attempted: attempted.String(),
		Current:   current.String(),
	})
}

func legLabel(leg enums.LegType) string {
	if leg == enums.LegTypeDelivery {
		return "Delivery"
	}
	return "Pickup"
}
