package domain

import "errors"

// ErrNotFound is the store-level sentinel for a missing record.
var ErrNotFound = errors.New("not found")

// Auth failures are fatal to the connection attempt.
const (
	AuthInvalid = "invalid"
	AuthExpired = "expired"
)

type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "auth: " + e.Reason }

// Join, call and chat failures are recoverable: reported to the originating
// session only, no effect on anyone else.
const (
	JoinNotAMember = "not_a_member"

	CallCallerBusy   = "caller_busy"
	CallUnavailable  = "unavailable"
	CallInvalidState = "invalid_state"

	ChatNotAMember        = "not_a_member"
	ChatEmptyContent      = "empty_content"
	ChatPersistenceFailed = "persistence_failed"
	ChatNotFound          = "not_found"
)

type JoinError struct {
	Reason string
}

func (e *JoinError) Error() string { return "join: " + e.Reason }

type CallError struct {
	Reason string
}

func (e *CallError) Error() string { return "call: " + e.Reason }

type ChatError struct {
	Reason string
}

func (e *ChatError) Error() string { return "chat: " + e.Reason }
