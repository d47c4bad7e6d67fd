package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/zipshift-backend/api/responses"
	pkgerrors "github.com/angelmondragon/zipshift-backend/pkg/errors"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/zipshift-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxIdempotentBody = 1 << 20
	moneyReplayWindow = 7 * 24 * time.Hour
	// an in-flight claim expires on its own if the process dies mid-request
	inFlightTTL   = 2 * time.Minute
	inFlightValue = "in-flight"
)

// idempotentRoute matches a method plus a path template whose "{}" segments
// match any single segment. A zero ttl uses the configured default.
type idempotentRoute struct {
	method   string
	template []string
	ttl      time.Duration
}

func route(method, template string, ttl time.Duration) idempotentRoute {
	return idempotentRoute{method: method, template: strings.Split(strings.Trim(template, "/"), "/"), ttl: ttl}
}

var idempotentRoutes = []idempotentRoute{
	route(http.MethodPost, "/api/v1/operator/riders", 0),
	route(http.MethodPost, "/api/v1/operator/parcels/{}/assign", 0),
	route(http.MethodPost, "/api/v1/operator/parcels/{}/status", 0),
	route(http.MethodPost, "/api/v1/rider/parcels/{}/status", 0),
	route(http.MethodPatch, "/api/v1/rider/availability", 0),
	route(http.MethodPost, "/api/v1/notifications/{}/read", 0),
	route(http.MethodPost, "/api/v1/notifications/read-all", 0),
	route(http.MethodPost, "/api/v1/merchant/parcels", moneyReplayWindow),
	route(http.MethodPost, "/api/v1/merchant/parcels/{}/payment", moneyReplayWindow),
	route(http.MethodPost, "/api/v1/merchant/parcels/{}/cancel", moneyReplayWindow),
	route(http.MethodPost, "/api/v1/operator/billing/{}/payouts", moneyReplayWindow),
}

func (rt idempotentRoute) matches(method string, segments []string) bool {
	if rt.method != method || len(rt.template) != len(segments) {
		return false
	}
	for i, want := range rt.template {
		if want != "{}" && want != segments[i] {
			return false
		}
	}
	return true
}

// replayWindow reports whether method+path is idempotent and for how long a
// response is replayed.
func replayWindow(method, path string, defaultTTL time.Duration) (time.Duration, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, rt := range idempotentRoutes {
		if !rt.matches(method, segments) {
			continue
		}
		switch {
		case rt.ttl > 0:
			return rt.ttl, true
		case defaultTTL > 0:
			return defaultTTL, true
		default:
			return 24 * time.Hour, true
		}
	}
	return 0, false
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency requires an Idempotency-Key on the mutating routes above and
// replays the first response for repeats of the same key and body. The key is
// claimed before the handler runs, so a concurrent duplicate is rejected rather
// than executed twice. Server errors are not stored; the key is released so the
// caller may retry. A nil store disables the middleware.
func Idempotency(store pkgredis.IdempotencyStore, defaultTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayWindow(r.Method, r.URL.Path, defaultTTL)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				fail(pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}

			var body bytes.Buffer
			if _, err := body.ReadFrom(http.MaxBytesReader(w, r.Body, maxIdempotentBody)); err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = readCloser{bytes.NewReader(body.Bytes())}

			sum := sha256.Sum256(body.Bytes())
			requestHash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(callerScope(r), clientKey)

			claimed, err := store.SetNX(ctx, key, inFlightValue, inFlightTTL)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayStored(ctx, store, key, requestHash, w, fail)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				release(ctx, store, key, logg)
				return
			}
			record, err := json.Marshal(storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: requestHash,
			})
			if err == nil {
				err = store.Set(ctx, key, string(record), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "idempotency.store_failed", err)
				release(ctx, store, key, logg)
			}
		})
	}
}

func replayStored(ctx context.Context, store pkgredis.IdempotencyStore, key, requestHash string, w http.ResponseWriter, fail func(error)) {
	raw, err := store.Get(ctx, key)
	switch {
	case pkgredis.IsNil(err):
		// the claim expired between SetNX and Get; let the caller retry
		fail(pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in flight"))
		return
	case err != nil:
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	case raw == inFlightValue:
		fail(pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in flight"))
		return
	}

	var record storedResponse
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func release(ctx context.Context, store pkgredis.IdempotencyStore, key string, logg *logger.Logger) {
	if err := store.Del(ctx, key); err != nil && logg != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "idempotency.release_failed")
	}
}

// callerScope keeps keys from colliding across accounts and routes.
func callerScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{
		AccountIDFromContext(ctx).String(),
		string(RoleFromContext(ctx)),
		r.Method,
		r.URL.Path,
	}, "|")
}

type readCloser struct{ *bytes.Reader }

func (readCloser) Close() error { return nil }

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
