package controllers

import (
	"net/http"

	"github.com/angelmondragon/zipshift-backend/api/middleware"
	"github.com/angelmondragon/zipshift-backend/api/responses"
	"github.com/angelmondragon/zipshift-backend/api/validators"
	"github.com/angelmondragon/zipshift-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
)

// inboxHandler adapts an inbox action that returns a payload into a handler.
// Inbox routes are open to every role; the account comes from the token.
func inboxHandler(svc notifications.Service, logg *logger.Logger, action func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		payload, err := action(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

func inboxParams(r *http.Request) (notifications.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return notifications.ListParams{}, err
	}
	unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
	if err != nil {
		return notifications.ListParams{}, err
	}
	return notifications.ListParams{
		AccountID:  middleware.AccountIDFromContext(r.Context()),
		Limit:      limit,
		Cursor:     validators.SanitizeString(r.URL.Query().Get("cursor"), 256),
		UnreadOnly: unreadOnly,
	}, nil
}

// ListNotifications pages the caller's inbox, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request) (any, error) {
		params, err := inboxParams(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), params)
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request) (any, error) {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), middleware.AccountIDFromContext(r.Context()), id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request) (any, error) {
		updated, err := svc.MarkAllRead(r.Context(), middleware.AccountIDFromContext(r.Context()))
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}
