package parcels

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/api/responses"
	"github.com/angelmondragon/zipshift-backend/api/validators"
	internalparcels "github.com/angelmondragon/zipshift-backend/internal/parcels"
	"github.com/angelmondragon/zipshift-backend/internal/payments"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/money"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
)

type historyReader interface {
	GetHistory(ctx context.Context, parcelID uuid.UUID) ([]models.TrackingEvent, error)
}

type paymentUpdater interface {
	UpdatePaymentStatus(ctx context.Context, parcelID uuid.UUID, actor internalparcels.Actor, input payments.UpdateInput) (*models.Parcel, error)
}

type createParcelRequest struct {
	ParcelType string         `json:"parcelType" validate:"required,oneof=document non-document"`
	WeightKg   float64        `json:"weightKg" validate:"gt=0"`
	Cost       string         `json:"cost" validate:"amount"`
	CodAmount  string         `json:"codAmount" validate:"amount"`
	Sender     contactPayload `json:"sender"`
	Receiver   contactPayload `json:"receiver"`
}

type paymentRequest struct {
	Status    string `json:"status" validate:"required,oneof=paid failed"`
	Reference string `json:"reference" validate:"max=255"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type statusRequest struct {
	Status   string `json:"status" validate:"required"`
	Message  string `json:"message" validate:"max=500"`
	Location string `json:"location" validate:"max=255"`
}

// Create books a parcel for the authenticated merchant.
func Create(svc internalparcels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "parcel service unavailable"))
			return
		}

		var req createParcelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		costCents, err := parseAmount(req.Cost)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		codCents, err := parseAmount(req.CodAmount)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		actor := actorFromRequest(r)
		parcel, err := svc.CreateParcel(ctx, actor.AccountID, internalparcels.CreateParcelInput{
			ParcelType: enums.ParcelType(req.ParcelType),
			WeightKg:   req.WeightKg,
			CostCents:  costCents,
			CodCents:   codCents,
			Sender:     req.Sender.toModel(),
			Receiver:   req.Receiver.toModel(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toParcelResponse(parcel))
	}
}

// List returns the caller's parcels: a merchant's own, a rider's bound legs, or all of them
// for operators.
func List(svc internalparcels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "parcel service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := validators.ParseQueryStatus(r, "status")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.ListParcels(ctx, internalparcels.ListParams{
			Actor:  actorFromRequest(r),
			Status: status,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := listResponse{Items: make([]ParcelResponse, 0, len(result.Parcels)), Cursor: result.NextCursor}
		for i := range result.Parcels {
			resp.Items = append(resp.Items, toParcelResponse(&result.Parcels[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func Detail(svc internalparcels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "parcel service unavailable"))
			return
		}

		parcelID, err := validators.ParseUUIDParam(r, "parcelId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		parcel, err := svc.GetParcel(ctx, parcelID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParcelResponse(parcel))
	}
}

// History returns the full timeline, newest first, once the caller may see the parcel.
func History(svc internalparcels.Service, history historyReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || history == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}

		parcelID, err := validators.ParseUUIDParam(r, "parcelId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if _, err := svc.GetParcel(ctx, parcelID, actorFromRequest(r)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		events, err := history.GetHistory(ctx, parcelID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		entries := make([]historyEntry, 0, len(events))
		for _, event := range events {
			entries = append(entries, historyEntry{
				ID:         event.ID,
				Status:     event.Status,
				Message:    event.Message,
				Location:   event.Location,
				OccurredAt: event.OccurredAt,
			})
		}
		responses.WriteSuccess(w, entries)
	}
}

// Payment records the outcome of a merchant payment through the configured gateway.
func Payment(svc paymentUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		parcelID, err := validators.ParseUUIDParam(r, "parcelId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req paymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		parcel, err := svc.UpdatePaymentStatus(ctx, parcelID, actorFromRequest(r), payments.UpdateInput{
			Status:    enums.PaymentStatus(req.Status),
			Reference: strings.TrimSpace(req.Reference),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParcelResponse(parcel))
	}
}

// Cancel moves the parcel to cancelled. The transition engine decides whether the caller
// may still cancel at the parcel's current status.
func Cancel(svc internalparcels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "parcel service unavailable"))
			return
		}

		parcelID, err := validators.ParseUUIDParam(r, "parcelId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		parcel, err := svc.ApplyTransition(ctx, parcelID, enums.ParcelStatusCancelled, actorFromRequest(r), internalparcels.TransitionInput{
			Message: validators.SanitizeString(req.Reason, 500),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParcelResponse(parcel))
	}
}

// UpdateStatus applies a status change requested by a rider or an operator.
func UpdateStatus(svc internalparcels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "parcel service unavailable"))
			return
		}

		parcelID, err := validators.ParseUUIDParam(r, "parcelId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		target, err := enums.ParseParcelStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]string{"status": "is invalid"}))
			return
		}

		parcel, err := svc.ApplyTransition(ctx, parcelID, target, actorFromRequest(r), internalparcels.TransitionInput{
			Message:  validators.SanitizeString(req.Message, 500),
			Location: validators.SanitizeString(req.Location, 255),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParcelResponse(parcel))
	}
}

func parseAmount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	cents, err := money.ParseCents(value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	return cents, nil
}

func formatCents(cents int64) string {
	return money.Format(cents)
}
