package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/zipshift-backend/internal/payments"
	stripewebhook "github.com/angelmondragon/zipshift-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
)

const testSigningSecret = "whsec_test"

type webhookFixture struct {
	service *recordingWebhookService
	handler http.HandlerFunc
}

func newWebhookFixture(t *testing.T, failures int) *webhookFixture {
	t.Helper()
	guard, err := stripewebhook.NewIdempotencyGuard(newMemoryIdempotencyStore(), time.Minute, stripewebhook.EventScope)
	require.NoError(t, err)
	svc := &recordingWebhookService{failures: failures}
	return &webhookFixture{
		service: svc,
		handler: StripeWebhook(svc, staticSecret(testSigningSecret), guard, nil),
	}
}

func (f *webhookFixture) deliver(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookProcessesEventOnce(t *testing.T) {
	fx := newWebhookFixture(t, 0)
	payload, signature := signedPaymentSucceededEvent(t)

	first := fx.deliver(payload, signature)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.JSONEq(t, `{"data":{"received":true}}`, first.Body.String())

	replay := fx.deliver(payload, signature)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, `{"data":{"received":true,"duplicate":true}}`, replay.Body.String())

	assert.Equal(t, 1, fx.service.calls)
}

func TestStripeWebhookRejectsBadSignatures(t *testing.T) {
	payload, _ := signedPaymentSucceededEvent(t)

	for name, signature := range map[string]string{
		"missing":      "",
		"forged":       "t=1,v1=invalid",
		"wrong secret": stripeSignature(payload, "whsec_other", time.Now().Unix()),
	} {
		t.Run(name, func(t *testing.T) {
			fx := newWebhookFixture(t, 0)
			rec := fx.deliver(payload, signature)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, fx.service.calls)
		})
	}
}

func TestStripeWebhookRejectsOversizedPayload(t *testing.T) {
	fx := newWebhookFixture(t, 0)
	payload := bytes.Repeat([]byte("x"), maxStripePayload+1)

	rec := fx.deliver(payload, stripeSignature(payload, testSigningSecret, time.Now().Unix()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, fx.service.calls)
}

func TestStripeWebhookFailureReleasesEvent(t *testing.T) {
	fx := newWebhookFixture(t, 1)
	payload, signature := signedPaymentSucceededEvent(t)

	assert.Equal(t, http.StatusServiceUnavailable, fx.deliver(payload, signature).Code)
	assert.Equal(t, http.StatusOK, fx.deliver(payload, signature).Code)
	assert.Equal(t, 2, fx.service.calls, "the retry must reach the service")
}

func TestStripeWebhookWithoutWiring(t *testing.T) {
	rec := httptest.NewRecorder()
	StripeWebhook(nil, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func signedPaymentSucceededEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	intent, err := json.Marshal(&stripe.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Status:   stripe.PaymentIntentStatusSucceeded,
		Amount:   12050,
		Currency: stripe.CurrencyUSD,
		Metadata: map[string]string{payments.ParcelMetadataKey: uuid.NewString()},
	})
	require.NoError(t, err)

	payload, err := json.Marshal(&stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypePaymentIntentSucceeded,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: intent},
	})
	require.NoError(t, err)
	return payload, stripeSignature(payload, testSigningSecret, time.Now().Unix())
}

// stripeSignature builds a Stripe-Signature header: HMAC-SHA256 over "<ts>.<payload>".
func stripeSignature(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type recordingWebhookService struct {
	calls    int
	failures int
}

func (s *recordingWebhookService) HandleEvent(context.Context, *stripe.Event) error {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")
	}
	return nil
}

type staticSecret string

func (s staticSecret) SigningSecret() string { return string(s) }

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{data: map[string]string{}}
}

func (s *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "zs:idempotency:" + scope + ":" + id
}

func (s *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}
