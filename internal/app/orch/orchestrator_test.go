package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
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

func newOrchestrator(db store.DataStore) *Orchestrator {
	return &Orchestrator{
		Registry:    app.NewSessionRegistry(),
		Rooms:       app.NewRoomManager(),
		Streams:     app.NewStreamAssembler(time.Minute),
		Negotiation: app.NewNegotiationTracker(),
		Policy:      app.SimplePolicy{},
		Store:       db,
	}
}

func bindSession(t *testing.T, o *Orchestrator, sid core.SessionID, role domain.Role) core.ParticipantSession {
	t.Helper()
	p, err := domain.NewParticipant(role, domain.UserInfo{Name: string(sid)})
	if err != nil {
		t.Fatal(err)
	}
	sess := core.NewParticipantSession(p, &fakeConn{})
	o.Registry.BindSignal(sid, sess, nil)
	return sess
}

func seedRoom(t *testing.T, db *storetest.Fake, id domain.RoomID, status domain.RoomStatus) {
	t.Helper()
	err := db.CreateRoom(context.Background(), &domain.Room{
		ID:       id,
		Name:     "Checkup",
		DoctorID: 1,
		Status:   status,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	o := newOrchestrator(storetest.New())
	sess := bindSession(t, o, "s1", domain.RoleDoctor)

	_, err := o.Join(context.Background(), "s1", "ghost", sess)
	if !errors.Is(err, app.ErrRoomNotFound) {
		t.Fatalf("join unknown room: got %v, want ErrRoomNotFound", err)
	}
	if len(o.Rooms.List()) != 0 {
		t.Error("failed join must not fabricate runtime room state")
	}
}

func TestJoinClosedRoom(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomClosed)
	o := newOrchestrator(db)
	sess := bindSession(t, o, "s1", domain.RolePatient)

	_, err := o.Join(context.Background(), "s1", "r1", sess)
	if !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("join closed room: got %v, want ErrRoomClosed", err)
	}
}

func TestJoinRehydratesPersistedRoom(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)
	sess := bindSession(t, o, "s1", domain.RoleDoctor)

	res, err := o.Join(context.Background(), "s1", "r1", sess)
	if err != nil {
		t.Fatal(err)
	}
	if res.Room.ParticipantCount() != 1 {
		t.Errorf("participant count: got %d, want 1", res.Room.ParticipantCount())
	}
	if res.Initiate {
		t.Error("first doctor in an empty room must not initiate")
	}
	if _, ok := o.Rooms.Get("r1"); !ok {
		t.Error("persisted room not re-hydrated into runtime state")
	}
}

func TestDoctorJoiningSecondInitiates(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)

	patient := bindSession(t, o, "p1", domain.RolePatient)
	if _, err := o.Join(context.Background(), "p1", "r1", patient); err != nil {
		t.Fatal(err)
	}

	doctor := bindSession(t, o, "d1", domain.RoleDoctor)
	res, err := o.Join(context.Background(), "d1", "r1", doctor)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Initiate {
		t.Error("doctor joining a waiting patient must initiate")
	}
	if len(res.NotifyDoctors) != 0 {
		t.Error("doctor join must not target other sessions for initiation")
	}
	if len(res.Peers) != 1 || res.Peers[0].Role != domain.RolePatient {
		t.Errorf("peer snapshot: got %+v", res.Peers)
	}
}

func TestPatientJoiningSecondNotifiesDoctor(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)

	doctor := bindSession(t, o, "d1", domain.RoleDoctor)
	if _, err := o.Join(context.Background(), "d1", "r1", doctor); err != nil {
		t.Fatal(err)
	}

	patient := bindSession(t, o, "p1", domain.RolePatient)
	res, err := o.Join(context.Background(), "p1", "r1", patient)
	if err != nil {
		t.Fatal(err)
	}
	if res.Initiate {
		t.Error("a patient must never initiate the offer")
	}
	if len(res.NotifyDoctors) != 1 || res.NotifyDoctors[0] != core.SessionID("d1") {
		t.Errorf("NotifyDoctors: got %v, want [d1]", res.NotifyDoctors)
	}
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	seedRoom(t, db, "r2", domain.RoomActive)
	o := newOrchestrator(db)

	sess := bindSession(t, o, "s1", domain.RoleDoctor)
	if res, err := o.Join(context.Background(), "s1", "r1", sess); err != nil {
		t.Fatal(err)
	} else if res.Left != nil {
		t.Errorf("first join reported an implicit leave: %+v", res.Left)
	}
	res, err := o.Join(context.Background(), "s1", "r2", sess)
	if err != nil {
		t.Fatal(err)
	}
	if res.Left == nil || res.Left.RoomID != domain.RoomID("r1") {
		t.Errorf("implicit leave result: got %+v, want room r1", res.Left)
	}

	if _, ok := o.Rooms.Get("r1"); ok {
		t.Error("empty previous room should have been torn down")
	}
	roomID, _, ok := o.Registry.RoomOf("s1")
	if !ok || roomID != domain.RoomID("r2") {
		t.Errorf("RoomOf after rejoin: got (%q, %v)", roomID, ok)
	}
}

func TestJoinLeavesPeersBehindInformed(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	seedRoom(t, db, "r2", domain.RoomActive)
	o := newOrchestrator(db)

	doctor := bindSession(t, o, "d1", domain.RoleDoctor)
	patient := bindSession(t, o, "p1", domain.RolePatient)
	if _, err := o.Join(context.Background(), "d1", "r1", doctor); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Join(context.Background(), "p1", "r1", patient); err != nil {
		t.Fatal(err)
	}

	res, err := o.Join(context.Background(), "p1", "r2", patient)
	if err != nil {
		t.Fatal(err)
	}
	if res.Left == nil {
		t.Fatal("switching rooms must surface the implicit leave")
	}
	if res.Left.Remaining == nil {
		t.Error("old room still has the doctor; Remaining must be set")
	}
	if res.Left.Participant == nil || res.Left.Participant.Role != domain.RolePatient {
		t.Errorf("implicit leave participant: %+v", res.Left.Participant)
	}
}

func TestLeaveTearsDownEmptyRoom(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)

	doctor := bindSession(t, o, "d1", domain.RoleDoctor)
	patient := bindSession(t, o, "p1", domain.RolePatient)
	if _, err := o.Join(context.Background(), "d1", "r1", doctor); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Join(context.Background(), "p1", "r1", patient); err != nil {
		t.Fatal(err)
	}

	res, ok := o.Leave("p1")
	if !ok {
		t.Fatal("leave of joined session reported not found")
	}
	if res.Remaining == nil || res.Remaining.ParticipantCount() != 1 {
		t.Error("remaining room should still hold the doctor")
	}
	if res.Participant.Role != domain.RolePatient {
		t.Errorf("leave participant role: got %q", res.Participant.Role)
	}

	res, ok = o.Leave("d1")
	if !ok {
		t.Fatal("second leave reported not found")
	}
	if res.Remaining != nil {
		t.Error("last leave should tear the room down")
	}
	if _, ok := o.Rooms.Get("r1"); ok {
		t.Error("room runtime state survived the last leave")
	}

	if _, ok := o.Leave("d1"); ok {
		t.Error("leave of a session outside any room must report false")
	}
}

func TestDisconnectUnbinds(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)

	sess := bindSession(t, o, "s1", domain.RoleDoctor)
	if _, err := o.Join(context.Background(), "s1", "r1", sess); err != nil {
		t.Fatal(err)
	}
	o.Disconnect("s1")
	if _, ok := o.Registry.GetSession("s1"); ok {
		t.Error("session still bound after disconnect")
	}
}

func TestStartRecordingRequiresPatient(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)

	sess := bindSession(t, o, "d1", domain.RoleDoctor)
	if _, err := o.Join(context.Background(), "d1", "r1", sess); err != nil {
		t.Fatal(err)
	}

	_, err := o.StartRecording(context.Background(), "r1", "", 1)
	if !errors.Is(err, ErrNoPatient) {
		t.Fatalf("recording without patient: got %v, want ErrNoPatient", err)
	}

	if _, err := db.CreatePatient(context.Background(), "Pat", "", "", "r1"); err != nil {
		t.Fatal(err)
	}
	rec, err := o.StartRecording(context.Background(), "r1", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" {
		t.Error("recording must be assigned an identifier")
	}
	if rec.Status != domain.StatusRecording || !rec.IsLiveStreaming {
		t.Errorf("recording row: %+v", rec)
	}
	if rec.PatientID == nil {
		t.Error("recording must reference the room's patient")
	}
}

func TestStartRecordingUnknownRoom(t *testing.T) {
	o := newOrchestrator(storetest.New())
	_, err := o.StartRecording(context.Background(), "ghost", "", 1)
	if !errors.Is(err, app.ErrRoomNotFound) {
		t.Fatalf("got %v, want ErrRoomNotFound", err)
	}
}

func TestLiveStreamRoundTrip(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	if _, err := db.CreatePatient(context.Background(), "Pat", "", "", "r1"); err != nil {
		t.Fatal(err)
	}
	o := newOrchestrator(db)
	sess := bindSession(t, o, "d1", domain.RoleDoctor)
	if _, err := o.Join(context.Background(), "d1", "r1", sess); err != nil {
		t.Fatal(err)
	}

	rec, err := o.StartRecording(context.Background(), "r1", "rec-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	for i, chunk := range []string{"AAA", "BBB", "CCC"} {
		if err := o.AppendChunk("r1", rec.ID, i, chunk, 3); err != nil {
			t.Fatal(err)
		}
	}

	data, err := o.CompleteStream(context.Background(), "r1", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if data != "AAABBBCCC" {
		t.Errorf("assembled data: got %q", data)
	}

	stored, err := db.GetMedia(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.StatusCompleted || stored.Data != "AAABBBCCC" {
		t.Errorf("persisted media: status=%q size=%d", stored.Status, stored.SizeBytes)
	}
}

func TestCompleteStreamPersistFailureMarksFailed(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)
	sess := bindSession(t, o, "d1", domain.RoleDoctor)
	if _, err := o.Join(context.Background(), "d1", "r1", sess); err != nil {
		t.Fatal(err)
	}

	// Chunks for a media row that was never created: CompleteMedia fails
	// with not-found and the stream surfaces the error.
	if err := o.AppendChunk("r1", "orphan", 0, "AAA", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := o.CompleteStream(context.Background(), "r1", "orphan"); err == nil {
		t.Fatal("expected persistence error for orphan stream")
	}
}

func TestSaveMediaRequiresLiveRoom(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)

	rec := &domain.MediaRecord{RoomID: "r1", MediaType: domain.MediaSignature, DoctorID: 1, Data: "sig"}
	if err := o.SaveMedia(context.Background(), rec); !errors.Is(err, app.ErrRoomNotFound) {
		t.Fatalf("save into inactive room: got %v, want ErrRoomNotFound", err)
	}

	sess := bindSession(t, o, "d1", domain.RoleDoctor)
	if _, err := o.Join(context.Background(), "d1", "r1", sess); err != nil {
		t.Fatal(err)
	}
	if err := o.SaveMedia(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || rec.Status != domain.StatusCompleted || rec.SizeBytes != 3 {
		t.Errorf("saved record: %+v", rec)
	}
}

func TestRelayDeliversToRoomMates(t *testing.T) {
	db := storetest.New()
	seedRoom(t, db, "r1", domain.RoomActive)
	o := newOrchestrator(db)

	dConn := &fakeConn{}
	dp, _ := domain.NewParticipant(domain.RoleDoctor, domain.UserInfo{Name: "d"})
	doctor := core.NewParticipantSession(dp, dConn)
	o.Registry.BindSignal("d1", doctor, nil)
	if _, err := o.Join(context.Background(), "d1", "r1", doctor); err != nil {
		t.Fatal(err)
	}

	pConn := &fakeConn{}
	pp, _ := domain.NewParticipant(domain.RolePatient, domain.UserInfo{Name: "p"})
	patient := core.NewParticipantSession(pp, pConn)
	o.Registry.BindSignal("p1", patient, nil)
	if _, err := o.Join(context.Background(), "p1", "r1", patient); err != nil {
		t.Fatal(err)
	}

	payload := core.Frame(`{"type":"ice-candidate","candidate":"x"}`)
	o.Relay("d1", payload)

	pConn.mu.Lock()
	defer pConn.mu.Unlock()
	if len(pConn.frames) == 0 || string(pConn.frames[len(pConn.frames)-1]) != string(payload) {
		t.Errorf("patient frames: %q", pConn.frames)
	}
	dConn.mu.Lock()
	defer dConn.mu.Unlock()
	for _, f := range dConn.frames {
		if string(f) == string(payload) {
			t.Error("sender received its own relayed frame")
		}
	}
}
