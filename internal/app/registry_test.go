package app

import (
	"sync"
	"testing"

	"github.com/dkeye/Pulse/internal/domain"
)

func TestJoinIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	sess, conn := addPeer(reg, "s1", "alice")

	room := domain.ChannelRoom("42")
	reg.Join(sess.ID, room)
	reg.Join(sess.ID, room)

	ev := struct {
		Type string `json:"type"`
	}{"test"}
	if got := reg.Publish(room, ev, ""); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
	if got := conn.countType(t, "test"); got != 1 {
		t.Fatalf("frames = %d, want 1", got)
	}
}

func TestLeaveNonMemberIsNoop(t *testing.T) {
	reg := NewRegistry()
	sess, _ := addPeer(reg, "s1", "alice")

	reg.Leave(sess.ID, domain.ChannelRoom("42"))
	reg.Leave(sess.ID, domain.ChannelRoom("42"))

	// The user room is untouched.
	if got := reg.Publish(domain.UserRoom("alice"), struct {
		Type string `json:"type"`
	}{"test"}, ""); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
}

func TestPublishExcludesSession(t *testing.T) {
	reg := NewRegistry()
	a, aConn := addPeer(reg, "s1", "alice")
	b, bConn := addPeer(reg, "s2", "bob")

	room := domain.ProjectRoom("p1")
	reg.Join(a.ID, room)
	reg.Join(b.ID, room)

	ev := struct {
		Type string `json:"type"`
	}{"test"}
	if got := reg.Publish(room, ev, a.ID); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
	if got := aConn.countType(t, "test"); got != 0 {
		t.Fatalf("excluded session got %d frames", got)
	}
	if got := bConn.countType(t, "test"); got != 1 {
		t.Fatalf("bob frames = %d, want 1", got)
	}
}

func TestPublishToUnknownRoom(t *testing.T) {
	reg := NewRegistry()
	if got := reg.Publish(domain.ChannelRoom("nope"), struct {
		Type string `json:"type"`
	}{"test"}, ""); got != 0 {
		t.Fatalf("delivered = %d, want 0", got)
	}
}

func TestRemoveClearsEveryRoom(t *testing.T) {
	reg := NewRegistry()
	sess, conn := addPeer(reg, "s1", "alice")
	reg.Join(sess.ID, domain.ProjectRoom("p1"))
	reg.Join(sess.ID, domain.ChannelRoom("42"))

	reg.Remove(sess.ID)

	for _, room := range []domain.RoomID{
		domain.UserRoom("alice"),
		domain.ProjectRoom("p1"),
		domain.ChannelRoom("42"),
	} {
		if got := reg.Publish(room, struct {
			Type string `json:"type"`
		}{"test"}, ""); got != 0 {
			t.Fatalf("room %s still delivers after remove", room)
		}
	}
	if got := conn.countType(t, "test"); got != 0 {
		t.Fatalf("removed session received %d frames", got)
	}
	if _, ok := reg.Get(sess.ID); ok {
		t.Fatal("session still resolvable after remove")
	}
}

func TestSweepEvictsEmptyRooms(t *testing.T) {
	reg := NewRegistry()
	sess, _ := addPeer(reg, "s1", "alice")
	reg.Join(sess.ID, domain.ChannelRoom("42"))
	reg.Remove(sess.ID)

	if got := reg.Sweep(); got != 2 {
		t.Fatalf("evicted = %d, want 2", got)
	}
	if got := len(reg.Occupancy()); got != 0 {
		t.Fatalf("occupancy = %d rooms, want 0", got)
	}
}

func TestConcurrentJoinLeavePublish(t *testing.T) {
	reg := NewRegistry()
	room := domain.ChannelRoom("busy")

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		sess, _ := addPeer(reg, string(rune('a'+i)), "u")
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				reg.Join(sess.ID, room)
				reg.Publish(room, struct {
					Type string `json:"type"`
				}{"test"}, sess.ID)
				reg.Leave(sess.ID, room)
			}
		}()
	}
	wg.Wait()

	if got := reg.Publish(room, struct {
		Type string `json:"type"`
	}{"test"}, ""); got != 0 {
		t.Fatalf("members remained after all left: delivered = %d", got)
	}
}
