package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sess *core.Session, c *wsConn) {
	defer func() {
		cancel()
		ctl.Gateway.Disconnect(sess)
		c.Close()
		log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump read error")
				return
			}
			ctl.handle(ctx, sess, c, data)
		}
	}
}

// handle dispatches one client frame. Malformed or unknown frames are
// dropped with a logged warning; they never take the loop down.
func (ctl *Controller) handle(ctx context.Context, sess *core.Session, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "room:join":
		ctl.handleJoin(ctx, sess, c, data)
	case "room:leave":
		ctl.handleLeave(sess, c, data)
	case "call:initiate":
		ctl.handleInitiate(sess, c, data)
	case "call:answer":
		ctl.handleAnswer(sess, c, data)
	case "call:ice":
		ctl.handleCandidate(sess, data)
	case "call:renegotiate":
		ctl.handleRenegotiate(sess, c, data)
	case "call:end":
		ctl.handleEnd(sess, data)
	case "message:send":
		ctl.handleSend(ctx, sess, c, data)
	case "message:reaction":
		ctl.handleReaction(ctx, sess, c, data)
	case "typing":
		ctl.handleTyping(sess, data)
	case "ping":
		ctl.handlePing(c)
	case "auth":
		log.Warn().Str("module", "signal").Str("sid", string(sess.ID)).Msg("auth on established session")
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown frame")
	}
}
