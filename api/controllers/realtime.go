package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	"github.com/angelmondragon/zipshift-backend/api/responses"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

type subscriber interface {
	Serve(w http.ResponseWriter, r *http.Request, accountID uuid.UUID, role enums.AccountRole) error
}

// Realtime upgrades the authenticated request to a websocket that receives the events
// addressed to the caller's account or role.
func Realtime(hub subscriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if hub == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime hub unavailable"))
			return
		}
		if err := hub.Serve(w, r, middleware.AccountIDFromContext(ctx), middleware.RoleFromContext(ctx)); err != nil && logg != nil {
			// the upgrader already wrote the HTTP error
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "realtime.upgrade_failed")
		}
	}
}
