package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

// ChatService validates channel membership, persists through the store,
// then fans out. Nothing is ever broadcast for a message that failed to
// persist.
type ChatService struct {
	store  core.MessageStore
	rooms  *Registry
	notify core.Notifier
}

func NewChatService(store core.MessageStore, rooms *Registry, notify core.Notifier) *ChatService {
	return &ChatService{store: store, rooms: rooms, notify: notify}
}

// SendMessage persists and broadcasts one message. The sender receives its
// own echo; clients use it to reconcile optimistic UI state. When nobody in
// the channel is connected, members are notified through the push
// collaborator instead.
func (cs *ChatService) SendMessage(ctx context.Context, sess *core.Session, channelID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &domain.ChatError{Reason: domain.ChatEmptyContent}
	}

	member, err := cs.store.IsChannelMember(ctx, channelID, sess.UserID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.chat").Str("channel", channelID).Msg("membership check")
		return nil, &domain.ChatError{Reason: domain.ChatPersistenceFailed}
	}
	if !member {
		return nil, &domain.ChatError{Reason: domain.ChatNotAMember}
	}

	msg, err := cs.store.CreateMessage(ctx, channelID, sess.UserID, content)
	if err != nil {
		log.Error().Err(err).Str("module", "app.chat").Str("channel", channelID).Msg("create message")
		return nil, &domain.ChatError{Reason: domain.ChatPersistenceFailed}
	}

	delivered := cs.rooms.Publish(domain.ChannelRoom(channelID), struct {
		Type    string          `json:"type"`
		Message *domain.Message `json:"message"`
	}{"message:new", msg}, "")

	if delivered == 0 {
		cs.notifyOffline(ctx, channelID, msg)
	}
	return msg, nil
}

func (cs *ChatService) notifyOffline(ctx context.Context, channelID string, msg *domain.Message) {
	members, err := cs.store.ListChannelMembers(ctx, channelID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.chat").Str("channel", channelID).Msg("list members for notify")
		return
	}
	for _, uid := range members {
		if uid == msg.UserID {
			continue
		}
		cs.notify.Notify(uid, "message:new", msg)
	}
}

// ToggleReaction flips the user's mark on the message for the given emoji
// and broadcasts the delta to the message's channel. Self-inverse: toggling
// twice restores the original set.
func (cs *ChatService) ToggleReaction(ctx context.Context, sess *core.Session, messageID domain.MessageID, emoji string) (*domain.ReactionDelta, error) {
	delta, err := cs.store.ToggleReaction(ctx, messageID, sess.UserID, emoji)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ChatError{Reason: domain.ChatNotFound}
		}
		log.Error().Err(err).Str("module", "app.chat").Str("message", string(messageID)).Msg("toggle reaction")
		return nil, &domain.ChatError{Reason: domain.ChatPersistenceFailed}
	}

	cs.rooms.Publish(domain.ChannelRoom(delta.ChannelID), struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"messageId"`
		Emoji     string           `json:"emoji"`
		UserID    domain.UserID    `json:"userId"`
		Removed   bool             `json:"removed"`
	}{"message:reaction:update", delta.MessageID, delta.Emoji, delta.UserID, delta.Removed}, "")

	return delta, nil
}

// SendTyping re-broadcasts a typing signal to the channel room. Ephemeral:
// no persistence, no TTL state on the server, sender excluded.
func (cs *ChatService) SendTyping(sess *core.Session, channelID string) {
	cs.rooms.Publish(domain.ChannelRoom(channelID), struct {
		Type      string        `json:"type"`
		ChannelID string        `json:"channelId"`
		UserID    domain.UserID `json:"userId"`
	}{"typing", channelID, sess.UserID}, sess.ID)
}
