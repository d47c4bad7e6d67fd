package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/internal/parcels"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

// Service moves a parcel's payment status through the gateway.
type Service interface {
	UpdatePaymentStatus(ctx context.Context, parcelID uuid.UUID, actor parcels.Actor, input UpdateInput) (*models.Parcel, error)
	ApplyGatewayResult(ctx context.Context, parcelID uuid.UUID, result Result) (*models.Parcel, error)
}

type parcelLifecycle interface {
	GetParcel(ctx context.Context, parcelID uuid.UUID, actor parcels.Actor) (*models.Parcel, error)
	ApplyTransition(ctx context.Context, parcelID uuid.UUID, target enums.ParcelStatus, actor parcels.Actor, input parcels.TransitionInput) (*models.Parcel, error)
	MarkPaymentFailed(ctx context.Context, parcelID uuid.UUID) (*models.Parcel, error)
}

// UpdateInput is the requested payment outcome. Reference identifies the payment at the
// gateway, e.g. a Stripe PaymentIntent id.
type UpdateInput struct {
	Status    enums.PaymentStatus
	Reference string
}

type service struct {
	parcels parcelLifecycle
	gateway Gateway
	logg    *logger.Logger
}

// NewService builds the payment service.
func NewService(parcels parcelLifecycle, gateway Gateway, logg *logger.Logger) (Service, error) {
	if parcels == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "parcel service required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{parcels: parcels, gateway: gateway, logg: logg}, nil
}

func (s *service) UpdatePaymentStatus(ctx context.Context, parcelID uuid.UUID, actor parcels.Actor, input UpdateInput) (*models.Parcel, error) {
	if input.Status != enums.PaymentStatusPaid && input.Status != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment status must be paid or failed")
	}
	if actor.Role != enums.AccountRoleMerchant && actor.Role != enums.AccountRoleOperator {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the merchant or an operator can settle payment")
	}

	parcel, err := s.parcels.GetParcel(ctx, parcelID, actor)
	if err != nil {
		return nil, err
	}
	if parcel.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.StateConflict("parcel already paid", pkgerrors.StateDetails{
			Attempted: string(input.Status),
			Current:   string(parcel.PaymentStatus),
		})
	}
	if parcel.Status != enums.ParcelStatusUnpaid {
		return nil, pkgerrors.InvalidTransition(string(parcel.Status), string(enums.ParcelStatusPaid))
	}

	result, err := s.gateway.ProcessPayment(ctx, parcel, input.Status, input.Reference)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process payment")
	}

	updated, err := s.apply(ctx, parcelID, actor, result)
	if err != nil {
		return nil, err
	}
	if result.Status == enums.PaymentStatusFailed && input.Status == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment declined by gateway").
			WithDetails(pkgerrors.StateDetails{Attempted: string(input.Status), Current: string(updated.PaymentStatus)})
	}
	return updated, nil
}

// ApplyGatewayResult records an asynchronous gateway verdict. Replays of a successful
// payment return the parcel unchanged.
func (s *service) ApplyGatewayResult(ctx context.Context, parcelID uuid.UUID, result Result) (*models.Parcel, error) {
	system := parcels.SystemActor()
	parcel, err := s.parcels.GetParcel(ctx, parcelID, system)
	if err != nil {
		return nil, err
	}
	if parcel.PaymentStatus == enums.PaymentStatusPaid {
		return parcel, nil
	}
	return s.apply(ctx, parcelID, system, result)
}

func (s *service) apply(ctx context.Context, parcelID uuid.UUID, actor parcels.Actor, result Result) (*models.Parcel, error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"parcel_id":      parcelID.String(),
		"payment_status": string(result.Status),
		"transaction_id": result.TransactionID,
	})
	switch result.Status {
	case enums.PaymentStatusPaid:
		updated, err := s.parcels.ApplyTransition(ctx, parcelID, enums.ParcelStatusPaid, actor, parcels.TransitionInput{
			PaymentTransactionID: result.TransactionID,
		})
		if err != nil {
			return nil, err
		}
		s.logg.Info(logCtx, "payment.settled")
		return updated, nil
	case enums.PaymentStatusFailed:
		updated, err := s.parcels.MarkPaymentFailed(ctx, parcelID)
		if err != nil {
			return nil, err
		}
		s.logg.Warn(logCtx, "payment.failed")
		return updated, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned no payment verdict")
	}
}
