package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Pulse/internal/auth"
	"github.com/dkeye/Pulse/internal/domain"
	"github.com/dkeye/Pulse/internal/store"
)

func gatewayFixture(t *testing.T) (*Gateway, *Registry, *store.Memory, *auth.TokenVerifier) {
	t.Helper()
	reg := NewRegistry()
	mem := store.NewMemory()
	verifier := auth.NewTokenVerifier("test-secret")
	calls := NewCoordinator(reg, &recNotifier{}, time.Minute)
	return NewGateway(verifier, mem, reg, calls), reg, mem, verifier
}

func authReason(t *testing.T, err error) string {
	t.Helper()
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("want AuthError, got %v", err)
	}
	return ae.Reason
}

func TestAuthenticateJoinsUserRoom(t *testing.T) {
	gw, reg, _, verifier := gatewayFixture(t)
	conn := &fakeConn{}

	sess, err := gw.Authenticate(verifier.Mint("alice", time.Minute), conn)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if sess.UserID != "alice" || sess.ID == "" {
		t.Fatalf("bad session: %+v", sess)
	}

	if got := reg.Publish(domain.UserRoom("alice"), struct {
		Type string `json:"type"`
	}{"test"}, ""); got != 1 {
		t.Fatalf("user room delivered = %d, want 1", got)
	}
}

func TestAuthenticateFreshSessionIDs(t *testing.T) {
	gw, _, _, verifier := gatewayFixture(t)
	token := verifier.Mint("alice", time.Minute)

	a, err := gw.Authenticate(token, &fakeConn{})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	b, err := gw.Authenticate(token, &fakeConn{})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("session id reused across connection attempts")
	}
}

func TestAuthenticateRejects(t *testing.T) {
	gw, _, _, verifier := gatewayFixture(t)

	if _, err := gw.Authenticate("garbage", &fakeConn{}); authReason(t, err) != domain.AuthInvalid {
		t.Fatal("garbage token must be invalid")
	}
	if _, err := gw.Authenticate(verifier.Mint("alice", -time.Minute), &fakeConn{}); authReason(t, err) != domain.AuthExpired {
		t.Fatal("stale token must be expired")
	}

	other := auth.NewTokenVerifier("other-secret")
	if _, err := gw.Authenticate(other.Mint("alice", time.Minute), &fakeConn{}); authReason(t, err) != domain.AuthInvalid {
		t.Fatal("cross-secret token must be invalid")
	}
}

func TestJoinChannelRequiresMembership(t *testing.T) {
	gw, reg, mem, verifier := gatewayFixture(t)
	mem.AddChannelMember("42", "alice")

	sess, err := gw.Authenticate(verifier.Mint("alice", time.Minute), &fakeConn{})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if err := gw.JoinRoom(context.Background(), sess, domain.ChannelRoom("42")); err != nil {
		t.Fatalf("member join: %v", err)
	}
	if got := reg.Publish(domain.ChannelRoom("42"), struct {
		Type string `json:"type"`
	}{"test"}, ""); got != 1 {
		t.Fatalf("channel delivered = %d, want 1", got)
	}

	err = gw.JoinRoom(context.Background(), sess, domain.ChannelRoom("other"))
	var je *domain.JoinError
	if !errors.As(err, &je) || je.Reason != domain.JoinNotAMember {
		t.Fatalf("non-member join = %v, want not_a_member", err)
	}
}

func TestJoinForeignUserRoomRejected(t *testing.T) {
	gw, _, _, verifier := gatewayFixture(t)
	sess, err := gw.Authenticate(verifier.Mint("alice", time.Minute), &fakeConn{})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	err = gw.JoinRoom(context.Background(), sess, domain.UserRoom("bob"))
	var je *domain.JoinError
	if !errors.As(err, &je) || je.Reason != domain.JoinNotAMember {
		t.Fatalf("foreign user room join = %v, want not_a_member", err)
	}

	if err := gw.JoinRoom(context.Background(), sess, domain.UserRoom("alice")); err != nil {
		t.Fatalf("own user room join: %v", err)
	}
}

func TestJoinProjectRoomOpen(t *testing.T) {
	gw, reg, _, verifier := gatewayFixture(t)
	sess, err := gw.Authenticate(verifier.Mint("alice", time.Minute), &fakeConn{})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := gw.JoinRoom(context.Background(), sess, domain.ProjectRoom("p7")); err != nil {
		t.Fatalf("project join: %v", err)
	}
	if got := reg.Publish(domain.ProjectRoom("p7"), struct {
		Type string `json:"type"`
	}{"test"}, ""); got != 1 {
		t.Fatalf("project delivered = %d, want 1", got)
	}
}

func TestDisconnectEndsCallAndClearsRooms(t *testing.T) {
	reg := NewRegistry()
	mem := store.NewMemory()
	verifier := auth.NewTokenVerifier("test-secret")
	calls := NewCoordinator(reg, &recNotifier{}, time.Minute)
	gw := NewGateway(verifier, mem, reg, calls)

	aliceConn := &fakeConn{}
	alice, err := gw.Authenticate(verifier.Mint("alice", time.Minute), aliceConn)
	if err != nil {
		t.Fatalf("authenticate alice: %v", err)
	}
	bobConn := &fakeConn{}
	bob, err := gw.Authenticate(verifier.Mint("bob", time.Minute), bobConn)
	if err != nil {
		t.Fatalf("authenticate bob: %v", err)
	}

	id, err := calls.Initiate(alice, "bob", offer())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := calls.Answer(bob, id, answer()); err != nil {
		t.Fatalf("answer: %v", err)
	}

	gw.Disconnect(alice)

	if got := bobConn.countType(t, "call:ended"); got != 1 {
		t.Fatalf("peer got %d call:ended, want exactly 1", got)
	}
	if got := bobConn.lastOfType(t, "call:ended")["reason"]; got != "peer_disconnected" {
		t.Fatalf("reason = %v, want peer_disconnected", got)
	}
	if bob.CallID() != "" {
		t.Fatal("peer activeCallId not cleared")
	}
	if calls.Active() != 0 {
		t.Fatal("call survived disconnect")
	}
	if got := reg.Publish(domain.UserRoom("alice"), struct {
		Type string `json:"type"`
	}{"test"}, ""); got != 0 {
		t.Fatal("disconnected session still reachable through its user room")
	}

	// Idempotent: a second disconnect cycle is harmless.
	gw.Disconnect(alice)
	if got := bobConn.countType(t, "call:ended"); got != 1 {
		t.Fatal("duplicate call:ended after repeated disconnect")
	}
}
