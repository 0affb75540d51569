package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/app/orch"
	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/metrics"
)

func (ctl *Controller) handleJoin(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	type joinPayload struct {
		Type     string          `json:"type"`
		RoomID   string          `json:"roomId"`
		Role     string          `json:"role"`
		UserInfo domain.UserInfo `json:"userInfo"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "join-error", "bad_payload")
		return
	}

	if !ctl.JoinLimiter.Allow(sid) {
		ctl.sendError(conn, "join-error", "too_many_join_attempts")
		return
	}

	role, err := domain.ParseRole(p.Role)
	if err != nil {
		ctl.sendError(conn, "join-error", "unknown role")
		return
	}
	participant, err := domain.NewParticipant(role, p.UserInfo)
	if err != nil {
		ctl.sendError(conn, "join-error", err.Error())
		return
	}

	sess := core.NewParticipantSession(participant, conn)
	roomID := domain.RoomID(p.RoomID)
	res, err := ctl.Orch.Join(ctx, sid, roomID, sess)
	// Switching rooms is an implicit leave; the old room hears about it
	// whether or not the new join succeeded.
	if res.Left != nil {
		ctl.notifyLeft(*res.Left)
	}
	if err != nil {
		switch {
		case errors.Is(err, app.ErrRoomNotFound):
			ctl.sendJSON(conn, map[string]any{"type": "room-not-found", "roomId": p.RoomID})
		case errors.Is(err, orch.ErrRoomClosed):
			ctl.sendJSON(conn, map[string]any{"type": "room-closed", "roomId": p.RoomID})
		case errors.Is(err, domain.ErrRoomFull):
			ctl.sendJSON(conn, map[string]any{"type": "room-full", "roomId": p.RoomID})
		default:
			log.Error().Err(err).Str("module", "signal").Str("room", p.RoomID).Msg("join failed")
			ctl.sendError(conn, "join-error", "internal error")
		}
		return
	}

	ctl.sendJSON(conn, struct {
		Type         string                `json:"type"`
		RoomID       string                `json:"roomId"`
		Role         domain.Role           `json:"role"`
		Participants []core.ParticipantDTO `json:"participants"`
		Initiator    bool                  `json:"initiator"`
		ICEServers   []ICEServer           `json:"iceServers,omitempty"`
	}{
		Type:         "room-joined",
		RoomID:       p.RoomID,
		Role:         role,
		Participants: res.Peers,
		Initiator:    res.Initiate,
		ICEServers:   ctl.ICEServers,
	})

	ctl.BroadcastFrom(sid, struct {
		Type      string          `json:"type"`
		RoomID    string          `json:"roomId"`
		SessionID string          `json:"sessionId"`
		Role      domain.Role     `json:"role"`
		UserInfo  domain.UserInfo `json:"userInfo"`
	}{
		Type:      "user-joined",
		RoomID:    p.RoomID,
		SessionID: string(sid),
		Role:      role,
		UserInfo:  p.UserInfo,
	})

	// Exactly one offer-initiation signal per completed pairing, always to
	// the doctor's socket.
	initiate := mustMarshal(map[string]any{"type": "initiate-offer", "roomId": p.RoomID})
	if res.Initiate {
		_ = conn.TrySend(initiate)
	}
	for _, doctorSID := range res.NotifyDoctors {
		_ = res.Room.SendTo(doctorSID, initiate)
	}
	metrics.SignalsRelayed.WithLabelValues("join-room").Inc()
}

// handleLeave is an explicit exit; the connection itself stays open.
func (ctl *Controller) handleLeave(sid core.SessionID, conn core.SignalConnection) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	res, ok := ctl.Orch.Leave(sid)
	ctl.sendJSON(conn, map[string]any{"type": "left"})
	if ok {
		ctl.notifyLeft(res)
	}
}

// handleDisconnect runs when a socket's reader exits. When the client token
// has since been rebound to a newer socket, the stale close must not evict
// the live session.
func (ctl *Controller) handleDisconnect(sid core.SessionID, conn core.SignalConnection) {
	if sess, ok := ctl.Orch.Registry.GetSession(sid); ok && sess.Signal() != conn {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("stale socket closed, session rebound elsewhere")
		return
	}
	res, ok := ctl.Orch.Disconnect(sid)
	if ok {
		ctl.notifyLeft(res)
	}
}

func (ctl *Controller) notifyLeft(res orch.LeaveResult) {
	if res.Remaining == nil {
		return
	}
	res.Remaining.Broadcast("", mustMarshal(struct {
		Type     string          `json:"type"`
		RoomID   domain.RoomID   `json:"roomId"`
		Role     domain.Role     `json:"role"`
		UserInfo domain.UserInfo `json:"userInfo"`
	}{
		Type:     "user-left",
		RoomID:   res.RoomID,
		Role:     res.Participant.Role,
		UserInfo: res.Participant.Info,
	}))
}
