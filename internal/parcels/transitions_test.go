package parcels

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

var operator = Actor{AccountID: uuid.New(), Role: enums.AccountRoleOperator}

func parcelAt(status enums.ParcelStatus) models.Parcel {
	return models.Parcel{
		ID:            uuid.New(),
		MerchantID:    uuid.New(),
		Status:        status,
		PaymentStatus: enums.PaymentStatusPending,
	}
}

func TestTransitionTableForOperator(t *testing.T) {
	permitted := map[enums.ParcelStatus][]enums.ParcelStatus{
		enums.ParcelStatusUnpaid:               {enums.ParcelStatusPaid, enums.ParcelStatusCancelled},
		enums.ParcelStatusPaid:                 {enums.ParcelStatusReadyToPickup, enums.ParcelStatusCancelled},
		enums.ParcelStatusReadyToPickup:        {enums.ParcelStatusInTransit, enums.ParcelStatusCancelled},
		enums.ParcelStatusInTransit:            {enums.ParcelStatusReachedServiceCenter, enums.ParcelStatusCancelled},
		enums.ParcelStatusReachedServiceCenter: {enums.ParcelStatusReadyForDelivery, enums.ParcelStatusCancelled},
		enums.ParcelStatusReadyForDelivery:     {enums.ParcelStatusDelivered, enums.ParcelStatusCancelled},
		enums.ParcelStatusDelivered:            nil,
		enums.ParcelStatusCancelled:            nil,
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, from := range enums.ParcelStatuses() {
		allowed := map[enums.ParcelStatus]bool{}
		for _, to := range permitted[from] {
			allowed[to] = true
		}
		for _, to := range enums.ParcelStatuses() {
			out, err := Transition(parcelAt(from), to, operator, now, TransitionInput{})
			if allowed[to] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, out.Parcel.Status)
				assert.Equal(t, from, out.From)
				assert.Equal(t, to, out.Event.Status)
				assert.Equal(t, now, out.Event.OccurredAt)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "%s -> %s", from, to)
			details, ok := pkgerrors.As(err).Details().(pkgerrors.StateDetails)
			require.True(t, ok)
			assert.Equal(t, string(from), details.Current)
			assert.Equal(t, string(to), details.Attempted)
		}
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	parcel := parcelAt(enums.ParcelStatusUnpaid)
	out, err := Transition(parcel, enums.ParcelStatusPaid, operator, time.Now(), TransitionInput{PaymentTransactionID: "TXN1"})
	require.NoError(t, err)

	assert.Equal(t, enums.ParcelStatusUnpaid, parcel.Status)
	assert.Nil(t, parcel.PaymentTransactionID)
	assert.Equal(t, enums.PaymentStatusPaid, out.Parcel.PaymentStatus)
	require.NotNil(t, out.Parcel.PaymentTransactionID)
	assert.Equal(t, "TXN1", *out.Parcel.PaymentTransactionID)
}

func TestTransitionShippedAliasesServiceCenter(t *testing.T) {
	out, err := Transition(parcelAt(enums.ParcelStatusInTransit), enums.ParcelStatusShipped, operator, time.Now(), TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, enums.ParcelStatusReachedServiceCenter, out.Parcel.Status)
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	_, err := Transition(parcelAt(enums.ParcelStatusPaid), enums.ParcelStatus("teleported"), operator, time.Now(), TransitionInput{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestTransitionIntents(t *testing.T) {
	pickup, delivery := uuid.New(), uuid.New()
	now := time.Now().UTC()

	picked := parcelAt(enums.ParcelStatusReadyToPickup)
	picked.PickupRiderID = &pickup
	out, err := Transition(picked, enums.ParcelStatusInTransit, operator, now, TransitionInput{})
	require.NoError(t, err)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, Intent{Kind: IntentCreditRider, Leg: enums.LegTypePickup, RiderID: pickup}, out.Intents[0])

	unbound := parcelAt(enums.ParcelStatusReadyToPickup)
	out, err = Transition(unbound, enums.ParcelStatusInTransit, operator, now, TransitionInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Intents)

	dropping := parcelAt(enums.ParcelStatusReadyForDelivery)
	dropping.DeliveryRiderID = &delivery
	dropping.CodCents = 50000
	out, err = Transition(dropping, enums.ParcelStatusDelivered, operator, now, TransitionInput{})
	require.NoError(t, err)
	require.Len(t, out.Intents, 2)
	assert.Equal(t, IntentCreditRider, out.Intents[0].Kind)
	assert.Equal(t, enums.LegTypeDelivery, out.Intents[0].Leg)
	assert.Equal(t, Intent{Kind: IntentSettleCod, MerchantID: dropping.MerchantID, AmountCents: 50000}, out.Intents[1])
	require.NotNil(t, out.Parcel.DeliveredAt)
	assert.Equal(t, now, *out.Parcel.DeliveredAt)

	cancelling := parcelAt(enums.ParcelStatusPaid)
	cancelling.CodCents = 700
	out, err = Transition(cancelling, enums.ParcelStatusCancelled, operator, now, TransitionInput{})
	require.NoError(t, err)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, IntentReverseCod, out.Intents[0].Kind)
	assert.Equal(t, int64(700), out.Intents[0].AmountCents)
	require.NotNil(t, out.Parcel.CancelledAt)

	noCod := parcelAt(enums.ParcelStatusPaid)
	out, err = Transition(noCod, enums.ParcelStatusCancelled, operator, now, TransitionInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Intents)
}

func TestTransitionActorRules(t *testing.T) {
	owner := uuid.New()
	riderID := uuid.New()
	merchant := Actor{AccountID: owner, Role: enums.AccountRoleMerchant}
	otherMerchant := Actor{AccountID: uuid.New(), Role: enums.AccountRoleMerchant}
	rider := Actor{AccountID: riderID, Role: enums.AccountRoleRider}
	strangerRider := Actor{AccountID: uuid.New(), Role: enums.AccountRoleRider}

	owned := func(status enums.ParcelStatus) models.Parcel {
		p := parcelAt(status)
		p.MerchantID = owner
		p.PickupRiderID = &riderID
		p.DeliveryRiderID = &riderID
		return p
	}

	cases := []struct {
		name    string
		from    enums.ParcelStatus
		to      enums.ParcelStatus
		actor   Actor
		allowed bool
	}{
		{"owner pays", enums.ParcelStatusUnpaid, enums.ParcelStatusPaid, merchant, true},
		{"other merchant cannot pay", enums.ParcelStatusUnpaid, enums.ParcelStatusPaid, otherMerchant, false},
		{"rider cannot pay", enums.ParcelStatusUnpaid, enums.ParcelStatusPaid, rider, false},
		{"merchant cannot mark ready", enums.ParcelStatusPaid, enums.ParcelStatusReadyToPickup, merchant, false},
		{"bound rider picks up", enums.ParcelStatusReadyToPickup, enums.ParcelStatusInTransit, rider, true},
		{"stranger cannot pick up", enums.ParcelStatusReadyToPickup, enums.ParcelStatusInTransit, strangerRider, false},
		{"bound rider reaches center", enums.ParcelStatusInTransit, enums.ParcelStatusReachedServiceCenter, rider, true},
		{"rider cannot stage for delivery", enums.ParcelStatusReachedServiceCenter, enums.ParcelStatusReadyForDelivery, rider, false},
		{"bound rider delivers", enums.ParcelStatusReadyForDelivery, enums.ParcelStatusDelivered, rider, true},
		{"stranger cannot deliver", enums.ParcelStatusReadyForDelivery, enums.ParcelStatusDelivered, strangerRider, false},
		{"owner cancels before pickup", enums.ParcelStatusReadyToPickup, enums.ParcelStatusCancelled, merchant, true},
		{"owner cannot cancel in transit", enums.ParcelStatusInTransit, enums.ParcelStatusCancelled, merchant, false},
		{"other merchant cannot cancel", enums.ParcelStatusUnpaid, enums.ParcelStatusCancelled, otherMerchant, false},
		{"rider cannot cancel", enums.ParcelStatusReadyToPickup, enums.ParcelStatusCancelled, rider, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Transition(owned(tc.from), tc.to, tc.actor, time.Now(), TransitionInput{})
			if tc.allowed {
				require.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
		})
	}
}

func TestTransitionFromTerminalIsInvalidEvenForOwner(t *testing.T) {
	owner := uuid.New()
	parcel := parcelAt(enums.ParcelStatusDelivered)
	parcel.MerchantID = owner
	_, err := Transition(parcel, enums.ParcelStatusCancelled, Actor{AccountID: owner, Role: enums.AccountRoleMerchant}, time.Now(), TransitionInput{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
}
