package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

func (ctl *Controller) handleSend(
	ctx context.Context,
	sess *core.Session,
	conn *wsConn,
	data []byte,
) {
	var p struct {
		Type      string `json:"type"`
		ChannelID string `json:"channelId"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		log.Warn().Str("module", "signal").Msg("bad message payload")
		return
	}

	// The sender's copy arrives through the channel room echo; no direct ack.
	if _, err := ctl.Chat.SendMessage(ctx, sess, p.ChannelID, p.Content); err != nil {
		ctl.sendErr(conn, "message:send", reasonOf(err))
	}
}

func (ctl *Controller) handleReaction(
	ctx context.Context,
	sess *core.Session,
	conn *wsConn,
	data []byte,
) {
	var p struct {
		Type      string `json:"type"`
		MessageID string `json:"messageId"`
		Emoji     string `json:"emoji"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" || p.Emoji == "" {
		log.Warn().Str("module", "signal").Msg("bad reaction payload")
		return
	}

	if _, err := ctl.Chat.ToggleReaction(ctx, sess, domain.MessageID(p.MessageID), p.Emoji); err != nil {
		ctl.sendErr(conn, "message:reaction", reasonOf(err))
	}
}

func (ctl *Controller) handleTyping(
	sess *core.Session,
	data []byte,
) {
	var p struct {
		Type      string `json:"type"`
		ChannelID string `json:"channelId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		log.Warn().Str("module", "signal").Msg("bad typing payload")
		return
	}
	if !ctl.typing.Allow(sess.UserID) {
		return
	}
	ctl.Chat.SendTyping(sess, p.ChannelID)
}
