package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/metrics"
)

// The relay never terminates a peer connection. SDP and ICE payloads are
// typed for shape only and forwarded verbatim to the other sockets in the
// room; media flows peer-to-peer afterwards.

type offerPayload struct {
	Type    string                    `json:"type"`
	RoomID  string                    `json:"roomId"`
	Payload webrtc.SessionDescription `json:"payload"`
}

type candidatePayload struct {
	Type    string                  `json:"type"`
	RoomID  string                  `json:"roomId"`
	Payload webrtc.ICECandidateInit `json:"payload"`
}

func (ctl *Controller) senderRole(sid core.SessionID) (domain.RoomID, domain.Role, bool) {
	roomID, sess, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return "", "", false
	}
	return roomID, sess.Meta().Role, true
}

func (ctl *Controller) handleOffer(sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Payload.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(conn, "offer-error", "bad_payload")
		return
	}
	roomID, role, ok := ctl.senderRole(sid)
	if !ok {
		ctl.sendError(conn, "offer-error", "not in a room")
		return
	}

	decision, displaced := ctl.Orch.Negotiation.Offer(roomID, role)
	if decision == app.OfferRollback {
		metrics.OffersRolledBack.Inc()
		ctl.sendJSON(conn, map[string]any{"type": "offer-rollback", "roomId": string(roomID)})
		return
	}
	if displaced {
		// The patient's outstanding offer lost the glare; tell that side to
		// roll back before the winning offer lands.
		metrics.OffersRolledBack.Inc()
		if room, ok := ctl.Orch.Rooms.Get(roomID); ok {
			rollback := mustMarshal(map[string]any{"type": "offer-rollback", "roomId": string(roomID)})
			for _, patientSID := range room.SessionsOfRole(domain.RolePatient) {
				_ = room.SendTo(patientSID, rollback)
			}
		}
	}

	ctl.BroadcastFrom(sid, p)
	metrics.SignalsRelayed.WithLabelValues("offer").Inc()
}

func (ctl *Controller) handleAnswer(sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Payload.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		ctl.sendError(conn, "answer-error", "bad_payload")
		return
	}
	roomID, _, ok := ctl.senderRole(sid)
	if !ok {
		ctl.sendError(conn, "answer-error", "not in a room")
		return
	}

	ctl.Orch.Negotiation.Answer(roomID)
	ctl.BroadcastFrom(sid, p)
	metrics.SignalsRelayed.WithLabelValues("answer").Inc()
}

func (ctl *Controller) handleCandidate(sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Payload.Candidate == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	if _, _, ok := ctl.senderRole(sid); !ok {
		return
	}
	ctl.BroadcastFrom(sid, p)
	metrics.SignalsRelayed.WithLabelValues("ice-candidate").Inc()
}
