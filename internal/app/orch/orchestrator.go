package orch

import (
	"context"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/metrics"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

// Orchestrator wires the runtime services together. Every map-backed piece
// of state lives in an injected service; handlers never touch globals.
type Orchestrator struct {
	Registry    *app.SessionRegistry
	Rooms       *app.RoomManager
	Streams     *app.StreamAssembler
	Negotiation *app.NegotiationTracker
	Policy      app.Policy
	Store       store.DataStore
	Chat        *store.RedisStore
}

// Relay broadcasts a frame to the sender's room mates, applying the
// backpressure policy to slow consumers.
func (o *Orchestrator) Relay(sid core.SessionID, data core.Frame) {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}

	res := room.Broadcast(sid, data)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickParticipant:
			for _, snap := range o.Registry.SessionsInRoom(roomID) {
				if snap.Session == slow {
					o.KickBySID(snap.SID)
				}
			}
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

// RecordChat mirrors a chat message into the ephemeral history, when Redis
// is configured.
func (o *Orchestrator) RecordChat(ctx context.Context, msg *store.ChatMessage) {
	_ = o.Chat.AddChatMessage(ctx, msg)
}

func (o *Orchestrator) updateGauges() {
	rooms := o.Rooms.List()
	metrics.ActiveRooms.Set(float64(len(rooms)))
	total := 0
	for _, r := range rooms {
		total += r.ParticipantCount
	}
	metrics.ActiveParticipants.Set(float64(total))
}
