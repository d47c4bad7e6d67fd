package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/zipshift-backend/internal/parcels"
	"github.com/angelmondragon/zipshift-backend/internal/payments"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

type parcelReader interface {
	GetParcel(ctx context.Context, parcelID uuid.UUID, actor parcels.Actor) (*models.Parcel, error)
}

type paymentRecorder interface {
	ApplyGatewayResult(ctx context.Context, parcelID uuid.UUID, result payments.Result) (*models.Parcel, error)
}

type ServiceParams struct {
	Parcels  parcelReader
	Payments paymentRecorder
	Logger   *logger.Logger
}

// Service applies Stripe PaymentIntent outcomes to parcels.
type Service struct {
	parcels  parcelReader
	payments paymentRecorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Parcels == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "parcel service required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		parcels:  params.Parcels,
		payments: params.Payments,
		logg:     logg,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.syncPayment(ctx, event.ID, &intent)
	default:
		return nil
	}
}

func (s *Service) syncPayment(ctx context.Context, eventID string, intent *stripe.PaymentIntent) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   eventID,
		"payment_intent_id": intent.ID,
	})

	raw := strings.TrimSpace(intent.Metadata[payments.ParcelMetadataKey])
	if raw == "" {
		s.logg.Info(logCtx, "stripe.payment_intent_without_parcel")
		return nil
	}
	parcelID, err := uuid.Parse(raw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid parcel id metadata")
	}

	parcel, err := s.parcels.GetParcel(ctx, parcelID, parcels.SystemActor())
	if err != nil {
		return err
	}
	result, err := payments.ResultFromIntent(parcel, intent)
	if err != nil {
		return err
	}
	if _, err := s.payments.ApplyGatewayResult(ctx, parcelID, result); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(logCtx, "payment_status", string(result.Status)), "stripe.payment_intent_applied")
	return nil
}
