package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/auth"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/config"
)

// Message types exchanged over the WebSocket.
const (
	WSTypeRequest     = "request"
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// ChannelPrefix prefixes the per-database change channel: "database.notes".
	ChannelPrefix = "database."

	wsSendBufferSize    = 256
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// WSMessage is a message sent to a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSRequest is a message received from a WebSocket client.
// For "request" messages Op names the operation and Payload holds its
// arguments.
type WSRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Op      string          `json:"op,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSErrorPayload is the payload of "error" messages.
type WSErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// runFunc executes one command on behalf of a client.
type runFunc func(ctx context.Context, scope auth.Scope, op string, args json.RawMessage) (any, error)

// WSClient is one connected WebSocket peer.
//
// Requests from a client run one at a time in arrival order. Outbound
// messages go through a bounded queue drained by writePump.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	mu            sync.RWMutex
	subscriptions map[string]struct{}

	scope  auth.Scope
	run    runFunc
	ctx    context.Context
	cancel context.CancelFunc
}

// Origins are checked by corsMiddleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the connection. With authentication enabled the
// token comes from the Authorization header or the "token" query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	scope := auth.ScopeWrite
	if s.authEnabled() {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeUnauthorized(w, "token is required")
			return
		}
		claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}
		scope = claims.Scope
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, scope, s.run)
	s.hub.Register(client)

	timing := newWSTiming(s.wsCfg)
	go client.writePump(timing)
	go client.readPump(timing, s.wsCfg.MaxMessageSize)
}

func newWSClient(hub *Hub, conn *websocket.Conn, scope auth.Scope, run runFunc) *WSClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		scope:         scope,
		run:           run,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// wsTiming holds the keepalive intervals derived from config.
type wsTiming struct {
	ping time.Duration
	pong time.Duration
}

func newWSTiming(cfg config.WebSocketConfig) wsTiming {
	t := wsTiming{
		ping: time.Duration(cfg.PingInterval) * time.Second,
		pong: time.Duration(cfg.PongTimeout) * time.Second,
	}
	if t.ping <= 0 {
		t.ping = defaultPingInterval
	}
	if t.pong <= 0 {
		t.pong = defaultPongTimeout
	}
	return t
}

// readDeadline is how long a silent peer survives: one ping interval plus
// the pong grace period.
func (t wsTiming) readDeadline() time.Time {
	return time.Now().Add(t.ping + t.pong)
}

func (t wsTiming) writeDeadline() time.Time {
	return time.Now().Add(t.pong)
}

// readPump reads messages until the connection fails, handling each one
// before reading the next.
func (c *WSClient) readPump(timing wsTiming, maxMessageSize int) {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if maxMessageSize > 0 {
		c.conn.SetReadLimit(int64(maxMessageSize))
	}
	//nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetReadDeadline(timing.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(timing.readDeadline())
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // a failed deadline surfaces as a read error
		c.conn.SetReadDeadline(timing.readDeadline())
		c.handleMessage(message)
	}
}

// writePump drains the send queue and pings the peer every timing.ping.
// It exits when the queue is closed or a write fails.
func (c *WSClient) writePump(timing wsTiming) {
	ticker := time.NewTicker(timing.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // peer may already be gone
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			kind, data = websocket.TextMessage, message
		case <-ticker.C:
			kind = websocket.PingMessage
		}

		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(timing.writeDeadline())
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// close shuts the outbound queue, which ends writePump, and cancels any
// in-flight request. Only the first call has an effect.
func (c *WSClient) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}

// trySend queues data without blocking. It reports false when the client is
// closed or its queue is full.
func (c *WSClient) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for sub := range c.subscriptions {
		if matchesChannel(sub, channel) {
			return true
		}
	}
	return false
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", command.CodeInvalidArgument, "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeRequest:
		c.handleRequest(msg)
	case WSTypeSubscribe:
		c.handleSubscription(msg, true)
	case WSTypeUnsubscribe:
		c.handleSubscription(msg, false)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, command.CodeInvalidArgument, "unknown message type: "+msg.Type)
	}
}

// handleRequest runs one command and replies with its result.
func (c *WSClient) handleRequest(msg WSRequest) {
	if msg.Op == "" {
		c.sendError(msg.ID, command.CodeInvalidArgument, "missing 'op'")
		return
	}

	result, err := c.run(c.ctx, c.scope, msg.Op, msg.Payload)
	switch {
	case errors.Is(err, errForbidden):
		c.sendError(msg.ID, ErrCodeForbidden, msg.Op+": "+err.Error())
	case err != nil:
		c.sendError(msg.ID, command.ErrorCode(err), err.Error())
	default:
		c.reply(msg.ID, WSTypeResponse, result)
	}
}

// handleSubscription adds or removes channels. Subscribing needs no write
// scope: events only describe changes, never row data.
func (c *WSClient) handleSubscription(msg WSRequest, subscribe bool) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		c.sendError(msg.ID, command.CodeInvalidArgument, "invalid "+msg.Type+" payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("encoding websocket reply", "type", msgType, "error", err)
		return
	}
	// A peer whose queue is full would wait forever for this reply, so it is
	// disconnected instead.
	if !c.trySend(data) {
		c.hub.logger.Warn("websocket reply dropped, closing client", "id", id, "type", msgType)
		c.close()
	}
}

func (c *WSClient) sendError(id, code, message string) {
	c.reply(id, WSTypeError, WSErrorPayload{Code: code, Message: message})
}
