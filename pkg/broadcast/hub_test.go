package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
)

func dialHub(t *testing.T, hub *Hub, accountID uuid.UUID, role enums.AccountRole) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, hub.Serve(w, r, accountID, role))
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ConnectedClients() == n }, time.Second, 10*time.Millisecond)
}

func TestHubDeliversToTargetedAccount(t *testing.T) {
	hub := NewHub(config.BroadcastConfig{}, nil)
	riderID := uuid.New()
	otherID := uuid.New()

	riderConn := dialHub(t, hub, riderID, enums.AccountRoleRider)
	otherConn := dialHub(t, hub, otherID, enums.AccountRoleRider)
	waitForClients(t, hub, 2)

	payload := map[string]string{"trackingNumber": "ZSABC"}
	require.NoError(t, hub.Publish(context.Background(), EventParcelAssigned, payload, Account(riderID, enums.AccountRoleRider)))

	require.NoError(t, riderConn.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := riderConn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, EventParcelAssigned, msg.Type)
	assert.Equal(t, "ZSABC", msg.Data["trackingNumber"])

	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = otherConn.ReadMessage()
	assert.Error(t, err, "non-targeted client must not receive the event")
}

func TestHubRoleFanOut(t *testing.T) {
	hub := NewHub(config.BroadcastConfig{}, nil)
	opConn := dialHub(t, hub, uuid.New(), enums.AccountRoleOperator)
	waitForClients(t, hub, 1)

	require.NoError(t, hub.Publish(context.Background(), EventParcelStatusChanged, map[string]string{"status": "delivered"}, Role(enums.AccountRoleOperator)))

	require.NoError(t, opConn.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := opConn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(raw), EventParcelStatusChanged)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(config.BroadcastConfig{AllowedOrigins: []string{"https://app.zipshift.test"}}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, uuid.New(), enums.AccountRoleMerchant)
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTargetMatching(t *testing.T) {
	id := uuid.New()
	assert.True(t, Target{}.matches(id, enums.AccountRoleRider))
	assert.True(t, Role(enums.AccountRoleRider).matches(id, enums.AccountRoleRider))
	assert.False(t, Role(enums.AccountRoleMerchant).matches(id, enums.AccountRoleRider))
	assert.True(t, Account(id, enums.AccountRoleRider).matches(id, enums.AccountRoleRider))
	assert.False(t, Account(uuid.New(), enums.AccountRoleRider).matches(id, enums.AccountRoleRider))
	assert.NoError(t, Noop{}.Publish(context.Background(), EventParcelCreated, nil, Target{}))
}
