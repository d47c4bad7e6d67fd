package parcels

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

// Actor is the authenticated caller driving a transition.
type Actor struct {
	AccountID uuid.UUID
	Role      enums.AccountRole
}

// SystemActor drives transitions that originate from trusted integrations (webhooks).
func SystemActor() Actor {
	return Actor{Role: enums.AccountRoleOperator}
}

// IntentKind names a side effect the transition requires.
type IntentKind string

const (
	IntentCreditRider IntentKind = "credit_rider"
	IntentSettleCod   IntentKind = "settle_cod"
	IntentReverseCod  IntentKind = "reverse_cod"
)

// Intent is a side effect to apply in the same transaction as the status change.
type Intent struct {
	Kind        IntentKind
	Leg         enums.LegType
	RiderID     uuid.UUID
	MerchantID  uuid.UUID
	AmountCents int64
}

// TransitionInput carries the optional history details of a transition.
type TransitionInput struct {
	Message              string
	Location             string
	PaymentTransactionID string
}

// Outcome is everything a valid transition produces. Nothing is written yet.
type Outcome struct {
	From    enums.ParcelStatus
	Parcel  models.Parcel
	Event   models.TrackingEvent
	Intents []Intent
}

type edge struct {
	from enums.ParcelStatus
	to   enums.ParcelStatus
}

type authorizer func(parcel *models.Parcel, actor Actor) bool

func operatorOnly(_ *models.Parcel, actor Actor) bool {
	return actor.Role == enums.AccountRoleOperator
}

func ownerOrOperator(parcel *models.Parcel, actor Actor) bool {
	if actor.Role == enums.AccountRoleOperator {
		return true
	}
	return actor.Role == enums.AccountRoleMerchant && parcel.MerchantID == actor.AccountID
}

func boundRiderOrOperator(leg enums.LegType) authorizer {
	return func(parcel *models.Parcel, actor Actor) bool {
		if actor.Role == enums.AccountRoleOperator {
			return true
		}
		return actor.Role == enums.AccountRoleRider && parcel.IsBoundTo(leg, actor.AccountID)
	}
}

// beforePickup lists the statuses a merchant may still cancel from.
var beforePickup = map[enums.ParcelStatus]bool{
	enums.ParcelStatusUnpaid:        true,
	enums.ParcelStatusPaid:          true,
	enums.ParcelStatusReadyToPickup: true,
}

func canCancel(parcel *models.Parcel, actor Actor) bool {
	if actor.Role == enums.AccountRoleOperator {
		return true
	}
	return actor.Role == enums.AccountRoleMerchant &&
		parcel.MerchantID == actor.AccountID &&
		beforePickup[parcel.Status]
}

var edges = map[edge]authorizer{
	{enums.ParcelStatusUnpaid, enums.ParcelStatusPaid}:                           ownerOrOperator,
	{enums.ParcelStatusPaid, enums.ParcelStatusReadyToPickup}:                    operatorOnly,
	{enums.ParcelStatusReadyToPickup, enums.ParcelStatusInTransit}:               boundRiderOrOperator(enums.LegTypePickup),
	{enums.ParcelStatusInTransit, enums.ParcelStatusReachedServiceCenter}:        boundRiderOrOperator(enums.LegTypePickup),
	{enums.ParcelStatusReachedServiceCenter, enums.ParcelStatusReadyForDelivery}: operatorOnly,
	{enums.ParcelStatusReadyForDelivery, enums.ParcelStatusDelivered}:            boundRiderOrOperator(enums.LegTypeDelivery),
}

// IsEdge reports whether from -> to is a permitted transition, ignoring who drives it.
func IsEdge(from, to enums.ParcelStatus) bool {
	if from.IsTerminal() || !from.IsValid() {
		return false
	}
	if to == enums.ParcelStatusCancelled {
		return true
	}
	_, ok := edges[edge{from, to}]
	return ok
}

// Transition validates parcel.Status -> target for actor and returns the resulting parcel,
// the history entry and the side effects. It never writes.
func Transition(parcel models.Parcel, target enums.ParcelStatus, actor Actor, now time.Time, input TransitionInput) (Outcome, error) {
	if target == enums.ParcelStatusShipped {
		target = enums.ParcelStatusReachedServiceCenter
	}
	if !target.IsValid() {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown target status").
			WithDetails(pkgerrors.StateDetails{Attempted: string(target), Current: string(parcel.Status)})
	}
	if !actor.Role.IsValid() {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}

	from := parcel.Status
	if !IsEdge(from, target) {
		return Outcome{}, pkgerrors.InvalidTransition(string(from), string(target))
	}

	allowed := canCancel
	if target != enums.ParcelStatusCancelled {
		allowed = edges[edge{from, target}]
	}
	if !allowed(&parcel, actor) {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeForbidden, "actor may not drive this transition").
			WithDetails(pkgerrors.StateDetails{Attempted: string(target), Current: string(from)})
	}

	next := parcel
	next.Status = target
	next.UpdatedAt = now

	var intents []Intent
	switch target {
	case enums.ParcelStatusPaid:
		next.PaymentStatus = enums.PaymentStatusPaid
		if input.PaymentTransactionID != "" {
			txn := input.PaymentTransactionID
			next.PaymentTransactionID = &txn
		}
	case enums.ParcelStatusInTransit:
		if from == enums.ParcelStatusReadyToPickup && parcel.PickupRiderID != nil {
			intents = append(intents, Intent{Kind: IntentCreditRider, Leg: enums.LegTypePickup, RiderID: *parcel.PickupRiderID})
		}
	case enums.ParcelStatusDelivered:
		deliveredAt := now
		next.DeliveredAt = &deliveredAt
		if parcel.DeliveryRiderID != nil {
			intents = append(intents, Intent{Kind: IntentCreditRider, Leg: enums.LegTypeDelivery, RiderID: *parcel.DeliveryRiderID})
		}
		if parcel.CodCents > 0 {
			intents = append(intents, Intent{Kind: IntentSettleCod, MerchantID: parcel.MerchantID, AmountCents: parcel.CodCents})
		}
	case enums.ParcelStatusCancelled:
		cancelledAt := now
		next.CancelledAt = &cancelledAt
		if parcel.CodCents > 0 {
			intents = append(intents, Intent{Kind: IntentReverseCod, MerchantID: parcel.MerchantID, AmountCents: parcel.CodCents})
		}
	}

	return Outcome{
		From:   from,
		Parcel: next,
		Event: models.TrackingEvent{
			ParcelID:   parcel.ID,
			Status:     target,
			Message:    input.Message,
			Location:   input.Location,
			OccurredAt: now,
		},
		Intents: intents,
	}, nil
}
