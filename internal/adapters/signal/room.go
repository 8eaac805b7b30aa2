package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

type roomPayload struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func (ctl *Controller) handleJoin(
	ctx context.Context,
	sess *core.Session,
	conn *wsConn,
	data []byte,
) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		return
	}
	roomID, ok := domain.ParseRoomID(p.RoomID)
	if !ok {
		log.Warn().Str("module", "signal").Str("room", p.RoomID).Msg("malformed room id")
		return
	}

	if err := ctl.Gateway.JoinRoom(ctx, sess, roomID); err != nil {
		ctl.sendErr(conn, "room:join", reasonOf(err))
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("room", string(roomID)).Msg("join")
	ctl.sendJSON(conn, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}{"room:joined", roomID})
}

func (ctl *Controller) handleLeave(
	sess *core.Session,
	conn *wsConn,
	data []byte,
) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad leave payload")
		return
	}
	roomID, ok := domain.ParseRoomID(p.RoomID)
	if !ok {
		log.Warn().Str("module", "signal").Str("room", p.RoomID).Msg("malformed room id")
		return
	}

	ctl.Gateway.LeaveRoom(sess, roomID)
	ctl.sendJSON(conn, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}{"room:left", roomID})
}
