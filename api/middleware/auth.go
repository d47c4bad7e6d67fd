package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/zipshift-backend/api/responses"
	pkgAuth "github.com/angelmondragon/zipshift-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

// IdentityResolver turns a bearer credential into an account identity.
type IdentityResolver interface {
	Resolve(token string) (pkgAuth.Identity, error)
}

// Auth validates a bearer token and seeds the request context with the identity it carries.
func Auth(resolver IdentityResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			identity, err := resolver.Resolve(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), identity.AccountID, identity.Role)
			ctx = logg.WithIdentity(ctx, identity.AccountID.String(), string(identity.Role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the access_token query
// parameter for websocket upgrades where browsers cannot set headers.
func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
