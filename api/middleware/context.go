package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

type contextKey string

const (
	ctxAccountID contextKey = "account_id"
	ctxRole      contextKey = "account_role"
)

// AccountIDFromContext returns the authenticated account, or uuid.Nil.
func AccountIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxAccountID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) enums.AccountRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.AccountRole); ok {
		return v
	}
	return ""
}

// WithIdentity injects the account and its role into the context for downstream handlers.
func WithIdentity(ctx context.Context, accountID uuid.UUID, role enums.AccountRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	return context.WithValue(ctx, ctxRole, role)
}
