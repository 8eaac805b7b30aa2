package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

// Gateway owns session lifecycle: authenticate on connect, join/leave
// rooms, full cleanup on disconnect.
type Gateway struct {
	identity core.Identity
	store    core.MessageStore
	rooms    *Registry
	calls    *Coordinator
}

func NewGateway(identity core.Identity, store core.MessageStore, rooms *Registry, calls *Coordinator) *Gateway {
	return &Gateway{identity: identity, store: store, rooms: rooms, calls: calls}
}

// Authenticate validates the credential token and, on success, creates a
// fresh session and auto-joins its user room. Auth failure means the
// connection is not established at all.
func (g *Gateway) Authenticate(token string, conn core.SignalConnection) (*core.Session, error) {
	uid, err := g.identity.Verify(token)
	if err != nil {
		return nil, err
	}
	sess := core.NewSession(core.SessionID(uuid.NewString()), uid, conn)
	g.rooms.Add(sess)
	g.rooms.Join(sess.ID, domain.UserRoom(uid))
	log.Info().Str("module", "app.gateway").Str("sid", string(sess.ID)).Str("user", string(uid)).Msg("authenticated")
	return sess, nil
}

// JoinRoom adds the session to a room. Channel rooms require confirmed
// channel membership; user rooms can only be joined by their owner (anyone
// else could eavesdrop on call signaling); project rooms are open to any
// authenticated session.
func (g *Gateway) JoinRoom(ctx context.Context, sess *core.Session, roomID domain.RoomID) error {
	switch roomID.Kind() {
	case domain.RoomUser:
		if roomID != domain.UserRoom(sess.UserID) {
			return &domain.JoinError{Reason: domain.JoinNotAMember}
		}
	case domain.RoomChannel:
		member, err := g.store.IsChannelMember(ctx, roomID.Suffix(), sess.UserID)
		if err != nil {
			// Fail closed: an unreachable store must not open the room.
			log.Error().Err(err).Str("module", "app.gateway").Str("room", string(roomID)).Msg("membership check")
			return &domain.JoinError{Reason: domain.JoinNotAMember}
		}
		if !member {
			return &domain.JoinError{Reason: domain.JoinNotAMember}
		}
	case domain.RoomProject:
		// Open: project event visibility is the publisher's concern.
	default:
		return &domain.JoinError{Reason: domain.JoinNotAMember}
	}

	g.rooms.Join(sess.ID, roomID)
	return nil
}

// LeaveRoom always succeeds, member or not.
func (g *Gateway) LeaveRoom(sess *core.Session, roomID domain.RoomID) {
	g.rooms.Leave(sess.ID, roomID)
}

// Disconnect runs the full cleanup cycle: the session's live call (if any)
// ends with peer_disconnected, then the session leaves every room and is
// released. Runs to completion before the session id is reusable as a
// reference.
func (g *Gateway) Disconnect(sess *core.Session) {
	g.calls.EndForSession(sess, domain.EndPeerDisconnected)
	g.rooms.Remove(sess.ID)
	log.Info().Str("module", "app.gateway").Str("sid", string(sess.ID)).Msg("disconnected")
}
