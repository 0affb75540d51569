package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

// fakeConn records frames and can be put into a saturated state.
type fakeConn struct {
	mu        sync.Mutex
	frames    []Frame
	saturated bool
	closed    bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saturated {
		return errors.New("send queue full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) received() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

func newTestRoom() RoomService {
	return NewRoomService(&domain.Room{
		ID:     domain.RoomID("room-1"),
		Name:   "Checkup",
		Status: domain.RoomActive,
	})
}

func addFake(t *testing.T, r RoomService, sid SessionID, role domain.Role) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	p, err := domain.NewParticipant(role, domain.UserInfo{Name: "p-" + string(sid)})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.AddParticipant(sid, NewParticipantSession(p, conn)); err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestBroadcastSkipsSender(t *testing.T) {
	r := newTestRoom()
	sender := addFake(t, r, "s1", domain.RoleDoctor)
	peer := addFake(t, r, "s2", domain.RolePatient)

	payload := Frame(`{"type":"offer","sdp":"v=0"}`)
	res := r.Broadcast("s1", payload)

	if res.SentTo != 1 {
		t.Errorf("sent_to: got %d, want 1", res.SentTo)
	}
	if len(sender.received()) != 0 {
		t.Error("sender must not receive its own broadcast")
	}
	got := peer.received()
	if len(got) != 1 || string(got[0]) != string(payload) {
		t.Errorf("peer payload mismatch: got %q", got)
	}
}

func TestBroadcastReportsDropped(t *testing.T) {
	r := newTestRoom()
	addFake(t, r, "s1", domain.RoleDoctor)
	slow := addFake(t, r, "s2", domain.RolePatient)
	slow.saturated = true

	res := r.Broadcast("s1", Frame(`{}`))
	if res.SentTo != 0 {
		t.Errorf("sent_to: got %d, want 0", res.SentTo)
	}
	if len(res.Dropped) != 1 {
		t.Fatalf("dropped: got %d, want 1", len(res.Dropped))
	}
}

func TestRoomCapacity(t *testing.T) {
	r := newTestRoom()
	for i := 0; i < domain.MaxRoomParticipants; i++ {
		addFake(t, r, SessionID(fmt.Sprintf("s%d", i)), domain.RolePatient)
	}

	p, _ := domain.NewParticipant(domain.RolePatient, domain.UserInfo{Name: "late"})
	err := r.AddParticipant("late", NewParticipantSession(p, &fakeConn{}))
	if !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("over-capacity join: got %v, want ErrRoomFull", err)
	}

	// Re-adding an existing session is not a capacity violation.
	if err := r.AddParticipant("s0", NewParticipantSession(p, &fakeConn{})); err != nil {
		t.Fatalf("rebind of existing session: %v", err)
	}
}

func TestSendTo(t *testing.T) {
	r := newTestRoom()
	conn := addFake(t, r, "s1", domain.RoleDoctor)

	if err := r.SendTo("s1", Frame(`{"type":"initiate-offer"}`)); err != nil {
		t.Fatal(err)
	}
	if len(conn.received()) != 1 {
		t.Error("direct send not delivered")
	}
	if err := r.SendTo("ghost", Frame(`{}`)); !errors.Is(err, ErrNoSuchSession) {
		t.Errorf("send to unknown session: got %v, want ErrNoSuchSession", err)
	}
}

func TestRoleQueries(t *testing.T) {
	r := newTestRoom()
	addFake(t, r, "d1", domain.RoleDoctor)
	addFake(t, r, "p1", domain.RolePatient)
	addFake(t, r, "p2", domain.RolePatient)

	if !r.HasRole(domain.RoleDoctor) {
		t.Error("HasRole(doctor) = false")
	}
	if got := r.SessionsOfRole(domain.RolePatient); len(got) != 2 {
		t.Errorf("patient sessions: got %d, want 2", len(got))
	}

	r.RemoveParticipant("d1")
	if r.HasRole(domain.RoleDoctor) {
		t.Error("HasRole(doctor) = true after removal")
	}
	if r.ParticipantCount() != 2 {
		t.Errorf("count after removal: got %d, want 2", r.ParticipantCount())
	}
}

func TestParticipantsSnapshot(t *testing.T) {
	r := newTestRoom()
	addFake(t, r, "d1", domain.RoleDoctor)

	snap := r.ParticipantsSnapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot size: got %d, want 1", len(snap))
	}
	if snap[0].SessionID != "d1" || snap[0].Role != domain.RoleDoctor {
		t.Errorf("snapshot entry mismatch: %+v", snap[0])
	}
}
