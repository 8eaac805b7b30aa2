package core

import (
	"sync"

	"github.com/dkeye/Pulse/internal/domain"
)

type SessionID string

// Session binds one authenticated connection to its transport endpoint.
// A reconnect always produces a fresh SessionID; ids are never reused.
// Room membership is owned by the registry; the session only tracks the
// one call it may be a party to.
type Session struct {
	ID     SessionID
	UserID domain.UserID

	conn SignalConnection

	mu     sync.Mutex
	callID domain.CallID
}

func NewSession(id SessionID, uid domain.UserID, conn SignalConnection) *Session {
	return &Session{ID: id, UserID: uid, conn: conn}
}

func (s *Session) Signal() SignalConnection { return s.conn }

func (s *Session) CallID() domain.CallID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callID
}

// SetCall claims the session for a call. Returns false if the session is
// already party to another live call.
func (s *Session) SetCall(id domain.CallID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callID != "" && s.callID != id {
		return false
	}
	s.callID = id
	return true
}

// ClearCall releases the session, but only if it is still bound to the
// given call. Clearing twice is a no-op.
func (s *Session) ClearCall(id domain.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callID == id {
		s.callID = ""
	}
}
