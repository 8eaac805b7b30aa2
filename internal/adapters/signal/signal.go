package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller terminates websocket connections and routes frames into the
// gateway, call coordinator and chat fan-out.
type Controller struct {
	Gateway *app.Gateway
	Calls   *app.Coordinator
	Chat    *app.ChatService

	ReadLimit   int64
	PingPeriod  time.Duration
	AuthTimeout time.Duration

	typing *TypingLimiter
}

func NewController(gw *app.Gateway, calls *app.Coordinator, chat *app.ChatService, readLimit int64, pingPeriod, authTimeout time.Duration) *Controller {
	return &Controller{
		Gateway:     gw,
		Calls:       calls,
		Chat:        chat,
		ReadLimit:   readLimit,
		PingPeriod:  pingPeriod,
		AuthTimeout: authTimeout,
		typing:      NewTypingLimiter(5, time.Second),
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection, runs the auth handshake and starts
// the pumps. The first frame must be auth; anything else never establishes
// a session.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	sess, ok := ctl.handshake(conn)
	if !ok {
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sess, conn)
}

func (ctl *Controller) handshake(c *wsConn) (*core.Session, bool) {
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.AuthTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("no auth frame")
		return nil, false
	}

	var p struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Type != "auth" {
		log.Warn().Str("module", "signal").Msg("first frame is not auth")
		ctl.writeDirect(c, map[string]any{"type": "error", "op": "auth", "reason": domain.AuthInvalid})
		return nil, false
	}

	sess, err := ctl.Gateway.Authenticate(p.Token, c)
	if err != nil {
		reason := domain.AuthInvalid
		var ae *domain.AuthError
		if errors.As(err, &ae) {
			reason = ae.Reason
		}
		log.Warn().Str("module", "signal").Str("reason", reason).Msg("auth rejected")
		ctl.writeDirect(c, map[string]any{"type": "error", "op": "auth", "reason": reason})
		return nil, false
	}

	pongWait := ctl.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Pumps are not running yet; the ack sits in the buffered send channel
	// until writePump starts.
	ctl.sendJSON(c, struct {
		Type      string         `json:"type"`
		SessionID core.SessionID `json:"sessionId"`
		UserID    domain.UserID  `json:"userId"`
	}{"auth:ok", sess.ID, sess.UserID})

	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("user", string(sess.UserID)).Msg("new WS session")
	return sess, true
}

// writeDirect is for the pre-session path only, before pumps exist.
func (ctl *Controller) writeDirect(c *wsConn, v any) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = c.conn.WriteJSON(v)
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendErr(c *wsConn, op, reason string) {
	ctl.sendJSON(c, struct {
		Type   string `json:"type"`
		Op     string `json:"op"`
		Reason string `json:"reason"`
	}{"error", op, reason})
}

// reasonOf extracts the wire reason from the recoverable error taxonomy.
func reasonOf(err error) string {
	var je *domain.JoinError
	if errors.As(err, &je) {
		return je.Reason
	}
	var ce *domain.CallError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	var he *domain.ChatError
	if errors.As(err, &he) {
		return he.Reason
	}
	return "internal"
}
