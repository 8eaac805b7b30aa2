// Package store provides the MessageStore implementations: sqlite for
// durable single-node deployments and an in-memory store for dev mode.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dkeye/Pulse/internal/domain"
)

// Memory keeps channels, messages and reactions in maps. Used when no
// db_path is configured, and by tests.
type Memory struct {
	mu       sync.Mutex
	channels map[string]map[domain.UserID]struct{}
	messages map[domain.MessageID]*domain.Message
}

func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string]map[domain.UserID]struct{}),
		messages: make(map[domain.MessageID]*domain.Message),
	}
}

// AddChannelMember registers membership. Channel CRUD proper lives outside
// the gateway; this exists for dev seeding and tests.
func (m *Memory) AddChannelMember(channelID string, uid domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channels[channelID] == nil {
		m.channels[channelID] = make(map[domain.UserID]struct{})
	}
	m.channels[channelID][uid] = struct{}{}
}

func (m *Memory) IsChannelMember(_ context.Context, channelID string, uid domain.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[channelID][uid]
	return ok, nil
}

func (m *Memory) ListChannelMembers(_ context.Context, channelID string) ([]domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.UserID, 0, len(m.channels[channelID]))
	for uid := range m.channels[channelID] {
		out = append(out, uid)
	}
	return out, nil
}

func (m *Memory) CreateMessage(_ context.Context, channelID string, uid domain.UserID, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        domain.MessageID(ulid.Make().String()),
		ChannelID: channelID,
		UserID:    uid,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Reactions: map[string][]domain.UserID{},
	}
	m.mu.Lock()
	m.messages[msg.ID] = msg
	m.mu.Unlock()
	return msg, nil
}

func (m *Memory) GetMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *msg
	cp.Reactions = make(map[string][]domain.UserID, len(msg.Reactions))
	for e, users := range msg.Reactions {
		cp.Reactions[e] = append([]domain.UserID(nil), users...)
	}
	return &cp, nil
}

func (m *Memory) ToggleReaction(_ context.Context, id domain.MessageID, uid domain.UserID, emoji string) (*domain.ReactionDelta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	users := msg.Reactions[emoji]
	for i, u := range users {
		if u == uid {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(msg.Reactions, emoji)
			} else {
				msg.Reactions[emoji] = users
			}
			return &domain.ReactionDelta{
				MessageID: id, ChannelID: msg.ChannelID,
				Emoji: emoji, UserID: uid, Removed: true,
			}, nil
		}
	}
	msg.Reactions[emoji] = append(users, uid)
	return &domain.ReactionDelta{
		MessageID: id, ChannelID: msg.ChannelID,
		Emoji: emoji, UserID: uid, Removed: false,
	}, nil
}
