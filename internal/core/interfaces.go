package core

import (
	"context"

	"github.com/dkeye/Pulse/internal/domain"
)

// Frame is one marshaled wire event.
type Frame []byte

// SignalConnection abstracts the session's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Identity validates credential tokens against the identity collaborator.
// Failures are *domain.AuthError with reason "invalid" or "expired".
type Identity interface {
	Verify(token string) (domain.UserID, error)
}

// MessageStore is the durable persistence collaborator for channels,
// messages and reactions. Implementations must make ToggleReaction atomic
// per message so concurrent toggles settle as strict alternation.
type MessageStore interface {
	CreateMessage(ctx context.Context, channelID string, userID domain.UserID, content string) (*domain.Message, error)
	ToggleReaction(ctx context.Context, messageID domain.MessageID, userID domain.UserID, emoji string) (*domain.ReactionDelta, error)
	IsChannelMember(ctx context.Context, channelID string, userID domain.UserID) (bool, error)
	ListChannelMembers(ctx context.Context, channelID string) ([]domain.UserID, error)
}

// Notifier is the best-effort push collaborator for users with no connected
// session. Fire-and-forget: it never blocks the caller and never reports
// delivery.
type Notifier interface {
	Notify(userID domain.UserID, event string, payload any)
}
