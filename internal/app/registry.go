package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

// room is one broadcast domain. Its members map is guarded by its own
// mutex so fan-out on unrelated rooms never contends.
type room struct {
	mu      sync.RWMutex
	members map[core.SessionID]*core.Session
}

func newRoom() *room {
	return &room{members: make(map[core.SessionID]*core.Session)}
}

func (r *room) snapshot(exclude core.SessionID) []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.members))
	for sid, s := range r.members {
		if sid == exclude {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (r *room) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

type sessionEntry struct {
	sess  *core.Session
	rooms map[domain.RoomID]struct{}
}

// Registry owns every live session and the room membership sets, and fans
// events out to rooms. Membership mutation takes the registry lock plus the
// room lock; publish only reads, so a session is either fully included in a
// given publish or fully excluded, never half-joined.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    map[domain.RoomID]*room
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    make(map[domain.RoomID]*room),
	}
}

func (r *Registry) Add(sess *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = &sessionEntry{
		sess:  sess,
		rooms: make(map[domain.RoomID]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID)).Str("user", string(sess.UserID)).Msg("session added")
}

func (r *Registry) Get(sid core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.sess, true
	}
	return nil, false
}

// Join adds the session to the room's member set. Idempotent: joining a
// room twice is a no-op. Joining with an unknown sid (cleanup already ran)
// is also a no-op. Lock order is registry then room, same as Sweep, so a
// freshly created room cannot be swept out from under its first member.
func (r *Registry) Join(sid core.SessionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = newRoom()
		r.rooms[roomID] = rm
	}
	e.rooms[roomID] = struct{}{}

	rm.mu.Lock()
	rm.members[sid] = e.sess
	rm.mu.Unlock()
}

// Leave removes the session from the room. Always succeeds; leaving a room
// the session never joined is a no-op.
func (r *Registry) Leave(sid core.SessionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.rooms, roomID)
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.members, sid)
	rm.mu.Unlock()
}

// Remove drops the session from every room it was in, then releases it.
// After Remove returns, no publish can reach the session id.
func (r *Registry) Remove(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return
	}
	delete(r.sessions, sid)
	for roomID := range e.rooms {
		rm, ok := r.rooms[roomID]
		if !ok {
			continue
		}
		rm.mu.Lock()
		delete(rm.members, sid)
		rm.mu.Unlock()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session removed")
}

// Publish marshals v once and sends it to every current member of the room
// except exclude. Delivery is at-most-once, best-effort: a member whose send
// buffer is full just misses the frame. Returns the count delivered.
func (r *Registry) Publish(roomID domain.RoomID, v any, exclude core.SessionID) int {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("room", string(roomID)).Msg("publish marshal")
		return 0
	}

	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	sent := 0
	for _, s := range rm.snapshot(exclude) {
		if err := s.Signal().TrySend(core.Frame(b)); err != nil {
			log.Debug().Str("module", "app.registry").Str("room", string(roomID)).Str("sid", string(s.ID)).Msg("dropped frame")
			continue
		}
		sent++
	}
	return sent
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// Occupancy is a read-only view for the ops API.
func (r *Registry) Occupancy() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: rm.count()})
	}
	return out
}

// Sweep evicts rooms with no members so long-running processes don't
// accumulate dead entries. Returns the number evicted.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, rm := range r.rooms {
		if rm.count() == 0 {
			delete(r.rooms, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debug().Str("module", "app.registry").Int("evicted", evicted).Msg("swept empty rooms")
	}
	return evicted
}
