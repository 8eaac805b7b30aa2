package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

// call is one call attempt. Its mutex serializes state transitions for this
// call only; unrelated calls never contend.
type call struct {
	mu sync.Mutex

	id        domain.CallID
	callerSID core.SessionID
	callerUID domain.UserID
	calleeUID domain.UserID
	calleeSID core.SessionID // set on answer

	state        domain.CallState
	createdAt    time.Time
	lastActivity time.Time
	ringTimer    *time.Timer
}

// Coordinator owns the call table and the call state machine. Every
// teardown path (hangup, reject, timeout, disconnect, unavailable callee)
// converges on End, which runs at most once per call because the record is
// taken out of the table before anything is published.
type Coordinator struct {
	mu    sync.RWMutex
	calls map[domain.CallID]*call

	rooms       *Registry
	notify      core.Notifier
	ringTimeout time.Duration
}

func NewCoordinator(rooms *Registry, notify core.Notifier, ringTimeout time.Duration) *Coordinator {
	return &Coordinator{
		calls:       make(map[domain.CallID]*call),
		rooms:       rooms,
		notify:      notify,
		ringTimeout: ringTimeout,
	}
}

func (co *Coordinator) Active() int {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return len(co.calls)
}

func (co *Coordinator) lookup(id domain.CallID) (*call, bool) {
	co.mu.RLock()
	defer co.mu.RUnlock()
	c, ok := co.calls[id]
	return c, ok
}

// Initiate starts a call and rings the callee's user room. A session can
// hold one outbound call at a time. If the callee has no connected session
// the call never rings: the caller gets unavailable and the callee a
// missed-call notification.
func (co *Coordinator) Initiate(caller *core.Session, calleeUID domain.UserID, offer webrtc.SessionDescription) (domain.CallID, error) {
	id := domain.CallID(uuid.NewString())
	if !caller.SetCall(id) {
		return "", &domain.CallError{Reason: domain.CallCallerBusy}
	}

	now := time.Now()
	c := &call{
		id:           id,
		callerSID:    caller.ID,
		callerUID:    caller.UserID,
		calleeUID:    calleeUID,
		state:        domain.CallRinging,
		createdAt:    now,
		lastActivity: now,
	}
	co.mu.Lock()
	co.calls[id] = c
	co.mu.Unlock()

	delivered := co.rooms.Publish(domain.UserRoom(calleeUID), struct {
		Type   string                    `json:"type"`
		CallID domain.CallID             `json:"callId"`
		From   domain.UserID             `json:"from"`
		Offer  webrtc.SessionDescription `json:"offer"`
	}{"call:incoming", id, caller.UserID, offer}, "")

	if delivered == 0 {
		co.mu.Lock()
		delete(co.calls, id)
		co.mu.Unlock()
		caller.ClearCall(id)
		co.notify.Notify(calleeUID, "call:missed", map[string]any{"from": caller.UserID})
		log.Info().Str("module", "app.calls").Str("call", string(id)).Str("callee", string(calleeUID)).Msg("callee offline")
		return "", &domain.CallError{Reason: domain.CallUnavailable}
	}

	c.mu.Lock()
	if c.state == domain.CallRinging {
		c.ringTimer = time.AfterFunc(co.ringTimeout, func() {
			co.End(id, domain.EndTimeout)
		})
	}
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(id)).Str("caller", string(caller.UserID)).Str("callee", string(calleeUID)).Msg("ringing")
	return id, nil
}

// Answer transitions a ringing call to connected and relays the answer to
// the caller's room. Valid only while ringing; anything else is
// invalid_state with no side effects.
func (co *Coordinator) Answer(callee *core.Session, id domain.CallID, answer webrtc.SessionDescription) error {
	c, ok := co.lookup(id)
	if !ok {
		return &domain.CallError{Reason: domain.CallInvalidState}
	}

	c.mu.Lock()
	if c.state != domain.CallRinging {
		c.mu.Unlock()
		return &domain.CallError{Reason: domain.CallInvalidState}
	}
	if callee.UserID != c.calleeUID {
		c.mu.Unlock()
		log.Warn().Str("module", "app.calls").Str("call", string(id)).Str("user", string(callee.UserID)).Msg("answer from non-callee")
		return &domain.CallError{Reason: domain.CallInvalidState}
	}
	if !callee.SetCall(id) {
		c.mu.Unlock()
		return &domain.CallError{Reason: domain.CallCallerBusy}
	}
	c.state = domain.CallConnected
	c.calleeSID = callee.ID
	c.lastActivity = time.Now()
	if c.ringTimer != nil {
		c.ringTimer.Stop()
	}
	callerUID := c.callerUID
	c.mu.Unlock()

	co.rooms.Publish(domain.UserRoom(callerUID), struct {
		Type   string                    `json:"type"`
		CallID domain.CallID             `json:"callId"`
		Answer webrtc.SessionDescription `json:"answer"`
	}{"call:answered", id, answer}, "")

	log.Info().Str("module", "app.calls").Str("call", string(id)).Msg("connected")
	return nil
}

// RelayCandidate forwards an ICE candidate verbatim to the other party.
// Candidates for a call that already ended are expected stragglers and are
// dropped without error.
func (co *Coordinator) RelayCandidate(id domain.CallID, from *core.Session, cand webrtc.ICECandidateInit) error {
	c, ok := co.lookup(id)
	if !ok {
		log.Debug().Str("module", "app.calls").Str("call", string(id)).Msg("late candidate dropped")
		return nil
	}

	target, ok := c.peerRoom(from)
	if !ok {
		log.Warn().Str("module", "app.calls").Str("call", string(id)).Str("sid", string(from.ID)).Msg("candidate from non-party")
		return nil
	}

	co.rooms.Publish(target, struct {
		Type      string                  `json:"type"`
		CallID    domain.CallID           `json:"callId"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}{"call:ice", id, cand}, "")
	return nil
}

// Renegotiate relays a mid-call offer/answer (toggle video, screen share)
// to the other party. Only a connected call can renegotiate; the call's
// state does not change, only its activity clock.
func (co *Coordinator) Renegotiate(id domain.CallID, from *core.Session, desc webrtc.SessionDescription) error {
	c, ok := co.lookup(id)
	if !ok {
		return &domain.CallError{Reason: domain.CallInvalidState}
	}

	c.mu.Lock()
	if c.state != domain.CallConnected {
		c.mu.Unlock()
		return &domain.CallError{Reason: domain.CallInvalidState}
	}
	c.mu.Unlock()

	target, ok := c.peerRoom(from)
	if !ok {
		return &domain.CallError{Reason: domain.CallInvalidState}
	}

	co.rooms.Publish(target, struct {
		Type        string                    `json:"type"`
		CallID      domain.CallID             `json:"callId"`
		Description webrtc.SessionDescription `json:"description"`
	}{"call:renegotiate", id, desc}, "")
	return nil
}

// peerRoom resolves the room of the party opposite from. Bumps the
// activity clock as a side effect of any relay.
func (c *call) peerRoom(from *core.Session) (domain.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
	switch {
	case from.ID == c.callerSID:
		return domain.UserRoom(c.calleeUID), true
	case from.UserID == c.calleeUID:
		return domain.UserRoom(c.callerUID), true
	default:
		return "", false
	}
}

// End tears the call down: discards the record, clears both sessions and
// publishes call:ended to both parties' rooms. Idempotent; ending an
// already-ended call is a no-op.
func (co *Coordinator) End(id domain.CallID, reason domain.EndReason) {
	co.mu.Lock()
	c, ok := co.calls[id]
	if ok {
		delete(co.calls, id)
	}
	co.mu.Unlock()
	if !ok {
		return
	}

	c.mu.Lock()
	if c.state == domain.CallEnded {
		c.mu.Unlock()
		return
	}
	c.state = domain.CallEnded
	if c.ringTimer != nil {
		c.ringTimer.Stop()
	}
	callerSID, calleeSID := c.callerSID, c.calleeSID
	callerUID, calleeUID := c.callerUID, c.calleeUID
	c.mu.Unlock()

	if s, ok := co.rooms.Get(callerSID); ok {
		s.ClearCall(id)
	}
	if calleeSID != "" {
		if s, ok := co.rooms.Get(calleeSID); ok {
			s.ClearCall(id)
		}
	}

	ended := struct {
		Type   string           `json:"type"`
		CallID domain.CallID    `json:"callId"`
		Reason domain.EndReason `json:"reason"`
	}{"call:ended", id, reason}
	co.rooms.Publish(domain.UserRoom(callerUID), ended, "")
	if calleeUID != callerUID {
		co.rooms.Publish(domain.UserRoom(calleeUID), ended, "")
	}

	log.Info().Str("module", "app.calls").Str("call", string(id)).Str("reason", string(reason)).Msg("ended")
}

// EndForSession ends whatever call the session is party to. Used by
// disconnect cleanup.
func (co *Coordinator) EndForSession(sess *core.Session, reason domain.EndReason) {
	if id := sess.CallID(); id != "" {
		co.End(id, reason)
	}
}
