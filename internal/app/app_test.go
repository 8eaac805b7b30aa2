package app

// Shared fixtures: an in-process SignalConnection that records frames, a
// notifier recorder, and deadline-driven wait helpers.

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errClosed
	}
	cp := make(core.Frame, len(fr))
	copy(cp, fr)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

var errClosed = &closedErr{}

type closedErr struct{}

func (*closedErr) Error() string { return "connection closed" }

// events decodes every recorded frame into a generic map.
func (f *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) countType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, ev := range f.events(t) {
		if ev["type"] == typ {
			n++
		}
	}
	return n
}

func (f *fakeConn) lastOfType(t *testing.T, typ string) map[string]any {
	t.Helper()
	var found map[string]any
	for _, ev := range f.events(t) {
		if ev["type"] == typ {
			found = ev
		}
	}
	if found == nil {
		t.Fatalf("no %q event recorded, have %v", typ, f.events(t))
	}
	return found
}

// addPeer registers a session for uid and joins its user room, the way the
// gateway does on authenticate.
func addPeer(reg *Registry, sid, uid string) (*core.Session, *fakeConn) {
	conn := &fakeConn{}
	sess := core.NewSession(core.SessionID(sid), domain.UserID(uid), conn)
	reg.Add(sess)
	reg.Join(sess.ID, domain.UserRoom(sess.UserID))
	return sess, conn
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

type notice struct {
	UID   domain.UserID
	Event string
}

type recNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recNotifier) Notify(uid domain.UserID, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{UID: uid, Event: event})
}

func (n *recNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}
