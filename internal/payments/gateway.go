package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

// ParcelMetadataKey links a Stripe PaymentIntent to the parcel it pays for.
const ParcelMetadataKey = "parcel_id"

// Result is the gateway's verdict on a payment.
type Result struct {
	TransactionID string
	Status        enums.PaymentStatus
}

// Gateway settles parcel payments with an external processor.
type Gateway interface {
	ProcessPayment(ctx context.Context, parcel *models.Parcel, desired enums.PaymentStatus, reference string) (Result, error)
}

// SimulatedGateway approves or declines payments locally, as requested. Used in development
// and whenever Stripe is not configured.
type SimulatedGateway struct{}

func (SimulatedGateway) ProcessPayment(_ context.Context, _ *models.Parcel, desired enums.PaymentStatus, _ string) (Result, error) {
	switch desired {
	case enums.PaymentStatusPaid:
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		return Result{TransactionID: "TXN" + strings.ToUpper(id[:16]), Status: enums.PaymentStatusPaid}, nil
	case enums.PaymentStatusFailed:
		return Result{Status: enums.PaymentStatusFailed}, nil
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot request payment status %q", desired))
	}
}

// IntentClient retrieves PaymentIntents. *pkg/stripe.Client implements it.
type IntentClient interface {
	PaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// StripeGateway confirms payments that the client completed against a Stripe PaymentIntent.
// The reference is the PaymentIntent id.
type StripeGateway struct {
	intents IntentClient
}

// NewStripeGateway builds a gateway over intents.
func NewStripeGateway(intents IntentClient) (*StripeGateway, error) {
	if intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe intent client required")
	}
	return &StripeGateway{intents: intents}, nil
}

func (g *StripeGateway) ProcessPayment(ctx context.Context, parcel *models.Parcel, desired enums.PaymentStatus, reference string) (Result, error) {
	if desired == enums.PaymentStatusFailed {
		return Result{Status: enums.PaymentStatusFailed}, nil
	}
	if desired != enums.PaymentStatusPaid {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot request payment status %q", desired))
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment intent reference required")
	}

	intent, err := g.intents.PaymentIntent(ctx, reference)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	return ResultFromIntent(parcel, intent)
}

// ResultFromIntent maps a PaymentIntent onto a payment result for parcel.
func ResultFromIntent(parcel *models.Parcel, intent *stripe.PaymentIntent) (Result, error) {
	if intent == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment intent required")
	}
	if intent.Metadata[ParcelMetadataKey] != parcel.ID.String() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment intent belongs to another parcel")
	}
	if intent.Amount != parcel.CostCents {
		return Result{}, pkgerrors.New(pkgerrors.CodeConflict, "payment intent amount does not match parcel cost")
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return Result{TransactionID: intent.ID, Status: enums.PaymentStatusPaid}, nil
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return Result{TransactionID: intent.ID, Status: enums.PaymentStatusFailed}, nil
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("payment intent is %s", intent.Status))
	}
}
