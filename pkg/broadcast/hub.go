package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
	maxInboundMessage   = 512
)

type client struct {
	accountID uuid.UUID
	role      enums.AccountRole
	conn      *websocket.Conn
	send      chan []byte
}

// Hub keeps the connected websocket clients and fans events out to them.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	upgrader     websocket.Upgrader
	sendBuffer   int
	writeTimeout time.Duration
	logg         *logger.Logger
}

// NewHub builds a hub. An empty AllowedOrigins list only admits same-host origins.
func NewHub(cfg config.BroadcastConfig, logg *logger.Logger) *Hub {
	if logg == nil {
		logg = logger.Nop()
	}
	h := &Hub{
		clients:      make(map[*client]struct{}),
		sendBuffer:   cfg.SendBuffer,
		writeTimeout: cfg.WriteTimeout,
		logg:         logg,
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(cfg.AllowedOrigins)}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			wildcard = true
		}
		if origin != "" {
			set[strings.ToLower(origin)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Publish encodes the event once and queues it on every matching client. Slow clients
// whose buffer is full are dropped.
func (h *Hub) Publish(ctx context.Context, event string, payload any, target Target) error {
	frame, err := json.Marshal(Message{Type: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	var stale []*client
	h.mu.RLock()
	for c := range h.clients {
		if !target.matches(c.accountID, c.role) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logg.Warn(h.logg.WithField(ctx, "account_id", c.accountID.String()), "broadcast.client_dropped")
		h.remove(c)
	}
	return nil
}

// ConnectedClients returns the number of open connections.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams events addressed to the given account until the
// connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, accountID uuid.UUID, role enums.AccountRole) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	c := &client{
		accountID: accountID,
		role:      role,
		conn:      conn,
		send:      make(chan []byte, h.sendBuffer),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump only drains control frames; clients never send commands.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logg.Warn(context.Background(), "broadcast.read_error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
