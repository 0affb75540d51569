package signal

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/app/orch"
	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store/storetest"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	c.frames = append(c.frames, f)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() {}

// events decodes every received frame into a generic map.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("non-JSON frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) lastOfType(t *testing.T, typ string) (map[string]any, bool) {
	t.Helper()
	evs := c.events(t)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i]["type"] == typ {
			return evs[i], true
		}
	}
	return nil, false
}

func (c *fakeConn) countOfType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			n++
		}
	}
	return n
}

type testRig struct {
	ctl *Controller
	db  *storetest.Fake
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	db := storetest.New()
	o := &orch.Orchestrator{
		Registry:    app.NewSessionRegistry(),
		Rooms:       app.NewRoomManager(),
		Streams:     app.NewStreamAssembler(time.Minute),
		Negotiation: app.NewNegotiationTracker(),
		Policy:      app.SimplePolicy{},
		Store:       db,
	}
	return &testRig{ctl: NewController(o, nil, 0, 0), db: db}
}

func (r *testRig) seedRoom(t *testing.T, id domain.RoomID) {
	t.Helper()
	err := r.db.CreateRoom(context.Background(), &domain.Room{
		ID: id, Name: "Checkup", DoctorID: 1, Status: domain.RoomActive,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// connect mirrors HandleSignal: the socket is bound anonymously before any
// signal is processed.
func (r *testRig) connect(sid core.SessionID) *fakeConn {
	conn := &fakeConn{}
	sess := core.NewParticipantSession(&domain.Participant{}, conn)
	r.ctl.Orch.Registry.BindSignal(sid, sess, nil)
	return conn
}

func (r *testRig) send(t *testing.T, sid core.SessionID, conn *fakeConn, raw string) {
	t.Helper()
	r.ctl.handleSignal(context.Background(), sid, conn, []byte(raw))
}

func (r *testRig) join(t *testing.T, sid core.SessionID, conn *fakeConn, roomID, role, name string) {
	t.Helper()
	r.send(t, sid, conn, `{"type":"join-room","roomId":"`+roomID+`","role":"`+role+`","userInfo":{"name":"`+name+`"}}`)
	if _, ok := conn.lastOfType(t, "room-joined"); !ok {
		t.Fatalf("%s did not receive room-joined: %v", sid, conn.events(t))
	}
}

func TestJoinUnknownRoomEmitsRoomNotFound(t *testing.T) {
	r := newRig(t)
	conn := r.connect("s1")
	r.send(t, "s1", conn, `{"type":"join-room","roomId":"ghost","role":"doctor"}`)

	ev, ok := conn.lastOfType(t, "room-not-found")
	if !ok {
		t.Fatalf("events: %v", conn.events(t))
	}
	if ev["roomId"] != "ghost" {
		t.Errorf("roomId: got %v", ev["roomId"])
	}
}

func TestJoinClosedRoomEmitsRoomClosed(t *testing.T) {
	r := newRig(t)
	if err := r.db.CreateRoom(context.Background(), &domain.Room{ID: "r1", Status: domain.RoomClosed}); err != nil {
		t.Fatal(err)
	}
	conn := r.connect("s1")
	r.send(t, "s1", conn, `{"type":"join-room","roomId":"r1","role":"patient","userInfo":{"name":"Pat"}}`)
	if _, ok := conn.lastOfType(t, "room-closed"); !ok {
		t.Fatalf("events: %v", conn.events(t))
	}
}

func TestJoinUnknownRole(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	conn := r.connect("s1")
	r.send(t, "s1", conn, `{"type":"join-room","roomId":"r1","role":"nurse"}`)
	if _, ok := conn.lastOfType(t, "join-error"); !ok {
		t.Fatalf("events: %v", conn.events(t))
	}
}

func TestInitiateOfferGoesToDoctorExactlyOnce(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")

	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	if n := doctor.countOfType(t, "initiate-offer"); n != 0 {
		t.Fatalf("doctor alone got %d initiate-offer events", n)
	}

	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	if n := doctor.countOfType(t, "initiate-offer"); n != 1 {
		t.Errorf("doctor initiate-offer count: got %d, want 1", n)
	}
	if n := patient.countOfType(t, "initiate-offer"); n != 0 {
		t.Errorf("patient must never receive initiate-offer, got %d", n)
	}
	// The doctor also learns who arrived.
	ev, ok := doctor.lastOfType(t, "user-joined")
	if !ok || ev["role"] != "patient" {
		t.Errorf("user-joined on doctor socket: %v, %v", ev, ok)
	}

	// room-joined told the patient it is not the initiator.
	ev, _ = patient.lastOfType(t, "room-joined")
	if ev["initiator"] != false {
		t.Errorf("patient initiator flag: %v", ev["initiator"])
	}
}

func TestDoctorJoiningSecondIsInitiator(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")

	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")

	ev, _ := doctor.lastOfType(t, "room-joined")
	if ev["initiator"] != true {
		t.Errorf("doctor initiator flag: %v", ev["initiator"])
	}
	if n := doctor.countOfType(t, "initiate-offer"); n != 1 {
		t.Errorf("doctor initiate-offer count: got %d, want 1", n)
	}
}

func TestOfferRelayedVerbatim(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	offer := `{"type":"offer","roomId":"r1","payload":{"type":"offer","sdp":"v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n"}}`
	r.send(t, "d1", doctor, offer)

	ev, ok := patient.lastOfType(t, "offer")
	if !ok {
		t.Fatalf("patient events: %v", patient.events(t))
	}
	payload, ok := ev["payload"].(map[string]any)
	if !ok || payload["sdp"] != "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n" {
		t.Errorf("offer payload not forwarded verbatim: %v", ev)
	}
	if n := doctor.countOfType(t, "offer"); n != 0 {
		t.Error("offer echoed back to its sender")
	}
}

func TestGlareRollsBackPatientOffer(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	r.send(t, "d1", doctor, `{"type":"offer","roomId":"r1","payload":{"type":"offer","sdp":"a"}}`)
	r.send(t, "p1", patient, `{"type":"offer","roomId":"r1","payload":{"type":"offer","sdp":"b"}}`)

	if _, ok := patient.lastOfType(t, "offer-rollback"); !ok {
		t.Fatalf("patient events: %v", patient.events(t))
	}
	// The doctor never sees the patient's losing offer.
	if n := doctor.countOfType(t, "offer"); n != 0 {
		t.Error("losing offer was still relayed to the doctor")
	}

	// After the answer the handshake is stable and either side may renegotiate.
	r.send(t, "p1", patient, `{"type":"answer","roomId":"r1","payload":{"type":"answer","sdp":"c"}}`)
	r.send(t, "p1", patient, `{"type":"offer","roomId":"r1","payload":{"type":"offer","sdp":"d"}}`)
	if n := doctor.countOfType(t, "offer"); n != 1 {
		t.Errorf("post-answer offer count on doctor socket: got %d, want 1", n)
	}
}

func TestCandidateRequiresRoom(t *testing.T) {
	r := newRig(t)
	conn := r.connect("s1")
	r.send(t, "s1", conn, `{"type":"ice-candidate","payload":{"candidate":"candidate:1"}}`)
	if len(conn.events(t)) != 0 {
		t.Errorf("loose candidate produced events: %v", conn.events(t))
	}
}

func TestPing(t *testing.T) {
	r := newRig(t)
	conn := r.connect("s1")
	r.send(t, "s1", conn, `{"type":"ping"}`)
	if _, ok := conn.lastOfType(t, "pong"); !ok {
		t.Fatalf("events: %v", conn.events(t))
	}
}

func TestChatRequiresRoom(t *testing.T) {
	r := newRig(t)
	conn := r.connect("s1")
	r.send(t, "s1", conn, `{"type":"chat-message","text":"hello"}`)
	ev, ok := conn.lastOfType(t, "chat-error")
	if !ok || ev["error"] != "not in a room" {
		t.Fatalf("events: %v", conn.events(t))
	}
}

func TestChatBroadcast(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	r.send(t, "d1", doctor, `{"type":"chat-message","roomId":"r1","text":"hello","sender":"Dr"}`)
	ev, ok := patient.lastOfType(t, "chat-message")
	if !ok {
		t.Fatalf("patient events: %v", patient.events(t))
	}
	if ev["text"] != "hello" || ev["role"] != "doctor" {
		t.Errorf("chat event: %v", ev)
	}
}

func TestStartRecordingWithoutPatientRow(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")

	r.send(t, "d1", doctor, `{"type":"start-recording","roomId":"r1","doctorId":1}`)
	ev, ok := doctor.lastOfType(t, "recording-start-error")
	if !ok {
		t.Fatalf("doctor events: %v", doctor.events(t))
	}
	msg, _ := ev["error"].(string)
	if !strings.Contains(msg, "no patient registered") {
		t.Errorf("error must name the missing patient, got %q", msg)
	}
}

func TestLiveStreamOverSocket(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	if _, err := r.db.CreatePatient(context.Background(), "Pat", "", "", "r1"); err != nil {
		t.Fatal(err)
	}
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	r.send(t, "d1", doctor, `{"type":"start-recording","roomId":"r1","recordingId":"rec-1","doctorId":1}`)
	if _, ok := doctor.lastOfType(t, "recording-start-success"); !ok {
		t.Fatalf("doctor events: %v", doctor.events(t))
	}
	if _, ok := patient.lastOfType(t, "recording-started"); !ok {
		t.Error("recording start not announced to the room")
	}
	if n := patient.countOfType(t, "recording-start-success"); n != 0 {
		t.Errorf("start ack leaked to a peer %d times", n)
	}

	r.send(t, "d1", doctor, `{"type":"live-base64-chunk","roomId":"r1","mediaId":"rec-1","chunkIndex":1,"base64Data":"BBB","totalChunks":2,"mimeType":"video/webm"}`)
	r.send(t, "d1", doctor, `{"type":"live-base64-chunk","roomId":"r1","mediaId":"rec-1","chunkIndex":0,"base64Data":"AAA","totalChunks":2}`)

	// Peers get the live preview payload.
	ev, ok := patient.lastOfType(t, "live-base64-chunk-received")
	if !ok || ev["base64Data"] != "AAA" {
		t.Errorf("live chunk relay: %v", ev)
	}

	r.send(t, "d1", doctor, `{"type":"get-live-stream-state","roomId":"r1","mediaId":"rec-1"}`)
	ev, ok = doctor.lastOfType(t, "live-stream-state")
	if !ok || ev["data"] != "AAABBB" {
		t.Errorf("stream state: %v", ev)
	}

	r.send(t, "d1", doctor, `{"type":"complete-live-base64-stream","roomId":"r1","mediaId":"rec-1"}`)
	ev, ok = doctor.lastOfType(t, "live-base64-stream-complete")
	if !ok || ev["size"] != float64(6) {
		t.Fatalf("stream complete: %v", ev)
	}

	media, err := r.db.GetMedia(context.Background(), "rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if media.Data != "AAABBB" || media.Status != domain.StatusCompleted {
		t.Errorf("persisted media: status=%q data=%q", media.Status, media.Data)
	}
}

func TestCompleteUnknownStream(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")

	r.send(t, "d1", doctor, `{"type":"complete-live-base64-stream","roomId":"r1","mediaId":"ghost"}`)
	ev, ok := doctor.lastOfType(t, "live-base64-stream-error")
	if !ok || ev["error"] != "stream not found" {
		t.Fatalf("events: %v", doctor.events(t))
	}
}

func TestSaveSignatureLive(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	r.send(t, "p1", patient, `{"type":"save-signature-live","roomId":"r1","mediaData":"c2ln","mimeType":"image/png"}`)
	ev, ok := patient.lastOfType(t, "signature-save-success")
	if !ok {
		t.Fatalf("patient events: %v", patient.events(t))
	}
	if ev["mediaId"] == "" {
		t.Error("save ack missing media id")
	}
	if _, ok := doctor.lastOfType(t, "signature-saved"); !ok {
		t.Error("signature save not announced to the room")
	}
}

func TestUserLeftOnLeave(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	r.send(t, "p1", patient, `{"type":"leave-room"}`)
	if _, ok := patient.lastOfType(t, "left"); !ok {
		t.Fatalf("patient events: %v", patient.events(t))
	}
	ev, ok := doctor.lastOfType(t, "user-left")
	if !ok || ev["role"] != "patient" {
		t.Errorf("user-left on doctor socket: %v, %v", ev, ok)
	}
}

func TestUserLeftOnRoomSwitch(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	r.seedRoom(t, "r2")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")
	patient := r.connect("p1")
	r.join(t, "p1", patient, "r1", "patient", "Pat")

	// The patient moves to another room without an explicit leave.
	r.join(t, "p1", patient, "r2", "patient", "Pat")

	ev, ok := doctor.lastOfType(t, "user-left")
	if !ok || ev["role"] != "patient" {
		t.Errorf("user-left on doctor socket after peer switched rooms: %v, %v", ev, ok)
	}
	if n := doctor.countOfType(t, "user-left"); n != 1 {
		t.Errorf("doctor user-left count after peer switched rooms: got %d, want 1", n)
	}
}

func TestStaleSocketCloseKeepsLiveSession(t *testing.T) {
	r := newRig(t)
	r.seedRoom(t, "r1")
	doctor := r.connect("d1")
	r.join(t, "d1", doctor, "r1", "doctor", "Dr")

	// A second tab reuses the client token, then joins the room.
	stale := r.connect("p1")
	live := r.connect("p1")
	r.join(t, "p1", live, "r1", "patient", "Pat")

	// The superseded socket closing must not evict the live session.
	r.ctl.handleDisconnect("p1", stale)
	if _, _, ok := r.ctl.Orch.Registry.RoomOf("p1"); !ok {
		t.Fatal("live session was evicted by the stale socket's close")
	}
	if n := doctor.countOfType(t, "user-left"); n != 0 {
		t.Errorf("stale close broadcast user-left %d times", n)
	}

	// The live socket closing still tears the session down.
	r.ctl.handleDisconnect("p1", live)
	if _, _, ok := r.ctl.Orch.Registry.RoomOf("p1"); ok {
		t.Error("session survived its own socket close")
	}
	if n := doctor.countOfType(t, "user-left"); n != 1 {
		t.Errorf("doctor user-left count: got %d, want 1", n)
	}
}

func TestJoinRateLimiter(t *testing.T) {
	rl := NewJoinRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("s1") {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if rl.Allow("s1") {
		t.Error("attempt over the limit allowed")
	}
	if !rl.Allow("s2") {
		t.Error("limiter must be per session")
	}
}
