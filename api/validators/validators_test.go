package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

type payoutBody struct {
	Amount    string `json:"amount" validate:"required,amount"`
	Reference string `json:"reference" validate:"max=8"`
}

func TestDecodeJSONBodyValidatesAmounts(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"sub-cent precision", `{"amount":"1.005"}`, "amount"},
		{"negative", `{"amount":"-1"}`, "amount"},
		{"missing", `{}`, "amount"},
		{"too long", `{"amount":"1.00","reference":"123456789"}`, "reference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest payoutBody
			err := DecodeJSONBody(req, &dest)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			details, ok := typed.Details().(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1.00","extra":true}`))
	var dest payoutBody
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"500.00","reference":"PO-1"}`))
	var dest payoutBody
	require.NoError(t, DecodeJSONBody(req, &dest))
	assert.Equal(t, "500.00", dest.Amount)
}

func TestParseQueryStatusNormalizesLegacyLabel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status=shipped", nil)
	status, err := ParseQueryStatus(req, "status")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, enums.ParcelStatusReachedServiceCenter, *status)

	req = httptest.NewRequest(http.MethodGet, "/?status=lost", nil)
	_, err = ParseQueryStatus(req, "status")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("parcelId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "parcelId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "riderId")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "left at gate", SanitizeString("  left at\x00 gate \r ", 0))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 100))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
	// "é" is two bytes; a cut inside it backs off to the previous rune
	assert.Equal(t, "caf", SanitizeString("café", 4))
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":       ``,
		"syntax":      `{"amount":`,
		"two objects": `{"amount":"1.00"}{"amount":"2.00"}`,
		"wrong type":  `{"amount":5}`,
		"oversized":   `{"amount":"1.00","reference":"` + strings.Repeat("x", maxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		var dest payoutBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), name)
	}
}
