package parcels

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/api/responses"
	"github.com/angelmondragon/zipshift-backend/api/validators"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

type legAssigner interface {
	AssignLeg(ctx context.Context, parcelID, riderID uuid.UUID, leg enums.LegType) (*models.Parcel, error)
}

type assignRequest struct {
	RiderID string `json:"riderId" validate:"required,uuid"`
	Leg     string `json:"leg" validate:"required,oneof=pickup delivery"`
}

// Assign binds a rider to the pickup or delivery leg. Losing a race for the same leg
// surfaces as a 409 carrying the rider that won.
func Assign(svc legAssigner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}

		parcelID, err := validators.ParseUUIDParam(r, "parcelId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req assignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		riderID, err := uuid.Parse(req.RiderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rider id"))
			return
		}

		parcel, err := svc.AssignLeg(ctx, parcelID, riderID, enums.LegType(req.Leg))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParcelResponse(parcel))
	}
}
