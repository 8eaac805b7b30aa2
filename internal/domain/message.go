package domain

import "time"

type MessageID string

// Message is the persisted chat record. Reactions map an emoji to the set
// of users who marked it; the fan-out service mutates them only through
// reaction toggles.
type Message struct {
	ID        MessageID           `json:"id"`
	ChannelID string              `json:"channelId"`
	UserID    UserID              `json:"userId"`
	Content   string              `json:"content"`
	CreatedAt time.Time           `json:"createdAt"`
	Reactions map[string][]UserID `json:"reactions"`
}

// ReactionDelta reports one toggle outcome: Removed is true when the toggle
// took the user out of the emoji's set.
type ReactionDelta struct {
	MessageID MessageID `json:"messageId"`
	ChannelID string    `json:"channelId"`
	Emoji     string    `json:"emoji"`
	UserID    UserID    `json:"userId"`
	Removed   bool      `json:"removed"`
}
