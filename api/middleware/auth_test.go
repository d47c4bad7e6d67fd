package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/auth"
	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(auth.NewResolver(testJWTConfig()), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(auth.NewResolver(testJWTConfig()), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsIdentity(t *testing.T) {
	cfg := testJWTConfig()
	accountID := uuid.New()
	token := mintTestToken(t, cfg, accountID, enums.AccountRoleRider)

	var gotAccount uuid.UUID
	var gotRole enums.AccountRole
	handler := Auth(auth.NewResolver(cfg), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = AccountIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotAccount != accountID {
		t.Fatalf("expected account %s got %s", accountID, gotAccount)
	}
	if gotRole != enums.AccountRoleRider {
		t.Fatalf("expected role rider got %s", gotRole)
	}
}

func TestAuthAcceptsQueryTokenForUpgrades(t *testing.T) {
	cfg := testJWTConfig()
	token := mintTestToken(t, cfg, uuid.New(), enums.AccountRoleOperator)
	handler := Auth(auth.NewResolver(cfg), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.AccountRoleOperator, enums.AccountRoleMerchant)(okHandler())

	tests := []struct {
		role enums.AccountRole
		want int
	}{
		{enums.AccountRoleOperator, http.StatusOK},
		{enums.AccountRoleMerchant, http.StatusOK},
		{enums.AccountRoleRider, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), uuid.New(), tt.role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("role %q: expected %d got %d", tt.role, tt.want, resp.Code)
		}
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, accountID uuid.UUID, role enums.AccountRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		AccountID: accountID,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
