package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

var ErrRoomClosed = errors.New("room closed")

// JoinResult tells the signal adapter what to emit after a successful join.
type JoinResult struct {
	Room  core.RoomService
	Peers []core.ParticipantDTO // snapshot before the joiner was added
	// Initiate is set when the joiner (a doctor) should create the offer.
	Initiate bool
	// NotifyDoctors lists doctor sessions that should be told to initiate
	// because a patient just arrived.
	NotifyDoctors []core.SessionID
	// Left is set when joining displaced the session from another room, so
	// that room's remaining peers can be told about the departure.
	Left *LeaveResult
}

// Join places a session into a room. Rooms are never fabricated here: an
// unknown identifier is looked up in the store and only an active persisted
// row is re-hydrated into runtime state.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, roomID domain.RoomID, sess core.ParticipantSession) (JoinResult, error) {
	var res JoinResult
	if fromRoom, _, ok := o.Registry.RoomOf(sid); ok {
		if left, lok := o.Leave(sid); lok {
			res.Left = &left
		}
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(fromRoom)).Msg("left previous room on join")
	}

	room, ok := o.Rooms.Get(roomID)
	if !ok {
		persisted, err := o.Store.GetRoom(ctx, roomID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return res, app.ErrRoomNotFound
			}
			return res, err
		}
		if !persisted.IsActive() {
			return res, ErrRoomClosed
		}
		room = o.Rooms.Register(persisted)
	}

	peers := room.ParticipantsSnapshot()
	if err := room.AddParticipant(sid, sess); err != nil {
		return res, err
	}
	o.Registry.ReplaceSession(sid, sess)
	o.Registry.UpdateRoom(sid, roomID)
	o.updateGauges()

	res.Room = room
	res.Peers = peers
	switch sess.Meta().Role {
	case domain.RoleDoctor:
		// The doctor initiates once a patient is already waiting.
		for _, p := range peers {
			if p.Role == domain.RolePatient {
				res.Initiate = true
				break
			}
		}
	case domain.RolePatient:
		// A patient never initiates; tell the waiting doctor instead.
		res.NotifyDoctors = room.SessionsOfRole(domain.RoleDoctor)
	}

	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("role", string(sess.Meta().Role)).Int("peers", len(peers)).Msg("joined room")
	return res, nil
}

// LeaveResult carries what the adapter needs to notify remaining peers.
type LeaveResult struct {
	RoomID      domain.RoomID
	Participant *domain.Participant
	Remaining   core.RoomService // nil when the room died with this leave
}

// Leave removes the session from its room and tears down empty rooms.
func (o *Orchestrator) Leave(sid core.SessionID) (LeaveResult, bool) {
	roomID, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return LeaveResult{}, false
	}
	res := LeaveResult{RoomID: roomID, Participant: sess.Meta()}

	if room, ok := o.Rooms.Get(roomID); ok {
		room.RemoveParticipant(sid)
		if room.ParticipantCount() == 0 {
			o.Rooms.Remove(roomID)
			o.Negotiation.Reset(roomID)
			log.Info().Str("module", "app.orch").Str("room", string(roomID)).Msg("room runtime state dropped")
		} else {
			res.Remaining = room
		}
	}
	o.Registry.ClearRoom(sid)
	o.updateGauges()
	return res, true
}

// KickBySID is Leave without caring about the notification payload.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	o.Leave(sid)
}

// Disconnect is the terminal cleanup for a closed socket.
func (o *Orchestrator) Disconnect(sid core.SessionID) (LeaveResult, bool) {
	res, ok := o.Leave(sid)
	o.Registry.Unbind(sid)
	return res, ok
}
