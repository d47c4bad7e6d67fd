// Package broadcast pushes lifecycle events to connected clients.
package broadcast

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

const (
	EventParcelCreated       = "parcel.created"
	EventParcelStatusChanged = "parcel.status_changed"
	EventParcelAssigned      = "parcel.assigned"
	EventNotification        = "notification.created"
)

// Target selects recipients. A zero AccountID fans out to every client with Role; a zero
// Target reaches everyone.
type Target struct {
	AccountID uuid.UUID
	Role      enums.AccountRole
}

// Account targets a single account.
func Account(id uuid.UUID, role enums.AccountRole) Target {
	return Target{AccountID: id, Role: role}
}

// Role targets every connected account of the given role.
func Role(role enums.AccountRole) Target {
	return Target{Role: role}
}

func (t Target) matches(accountID uuid.UUID, role enums.AccountRole) bool {
	if t.AccountID != uuid.Nil && t.AccountID != accountID {
		return false
	}
	if t.Role != "" && t.Role != role {
		return false
	}
	return true
}

// Broadcaster delivers events best-effort. Callers log returned errors and move on.
type Broadcaster interface {
	Publish(ctx context.Context, event string, payload any, target Target) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any, Target) error { return nil }

// Message is the frame written to websocket clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
