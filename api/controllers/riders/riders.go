package riders

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	"github.com/angelmondragon/zipshift-backend/api/responses"
	"github.com/angelmondragon/zipshift-backend/api/validators"
	internalriders "github.com/angelmondragon/zipshift-backend/internal/riders"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/money"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
)

type registerRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required,max=32"`
	VehicleType   string `json:"vehicleType" validate:"required,oneof=bike car van"`
	VehicleNumber string `json:"vehicleNumber" validate:"max=32"`
	LicenseNumber string `json:"licenseNumber" validate:"max=64"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" validate:"required"`
}

type riderResponse struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	VehicleType     enums.VehicleType `json:"vehicleType"`
	VehicleNumber   string            `json:"vehicleNumber,omitempty"`
	LicenseNumber   string            `json:"licenseNumber,omitempty"`
	IsAvailable     bool              `json:"isAvailable"`
	Earnings        string            `json:"earnings"`
	TotalDeliveries int64             `json:"totalDeliveries"`
	CreatedAt       time.Time         `json:"createdAt"`
}

type listResponse struct {
	Items  []riderResponse `json:"items"`
	Cursor string          `json:"cursor"`
}

func toRiderResponse(r *models.Rider) riderResponse {
	return riderResponse{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		VehicleType:     r.VehicleType,
		VehicleNumber:   r.VehicleNumber,
		LicenseNumber:   r.LicenseNumber,
		IsAvailable:     r.IsAvailable,
		Earnings:        money.Format(r.EarningsCents),
		TotalDeliveries: r.TotalDeliveries,
		CreatedAt:       r.CreatedAt,
	}
}

// Register onboards a rider. Operators only.
func Register(svc internalriders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rider service unavailable"))
			return
		}

		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rider, err := svc.Register(ctx, internalriders.RegisterInput{
			Name:          req.Name,
			Email:         req.Email,
			Phone:         req.Phone,
			VehicleType:   enums.VehicleType(req.VehicleType),
			VehicleNumber: req.VehicleNumber,
			LicenseNumber: req.LicenseNumber,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toRiderResponse(rider))
	}
}

func List(svc internalriders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rider service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		availableOnly, err := validators.ParseQueryBool(r, "available")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.List(ctx, internalriders.ListParams{
			AvailableOnly: availableOnly,
			Limit:         limit,
			Cursor:        strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := listResponse{Items: make([]riderResponse, 0, len(result.Riders)), Cursor: result.NextCursor}
		for i := range result.Riders {
			resp.Items = append(resp.Items, toRiderResponse(&result.Riders[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func Detail(svc internalriders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rider service unavailable"))
			return
		}

		riderID, err := validators.ParseUUIDParam(r, "riderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rider, err := svc.Get(ctx, riderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRiderResponse(rider))
	}
}

// SetAvailability toggles whether the authenticated rider accepts new legs.
func SetAvailability(svc internalriders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rider service unavailable"))
			return
		}

		var req availabilityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rider, err := svc.SetAvailability(ctx, middleware.AccountIDFromContext(ctx), *req.IsAvailable)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRiderResponse(rider))
	}
}
