package signal

import (
	"context"
	"encoding/json"

	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/metrics"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

func (ctl *Controller) handlePing(conn core.SignalConnection) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *Controller) handleChat(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	type chatPayload struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		Text   string `json:"text"`
		Sender string `json:"sender,omitempty"`
	}
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Text == "" {
		ctl.sendError(conn, "chat-error", "bad_payload")
		return
	}
	roomID, sess, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		ctl.sendError(conn, "chat-error", "not in a room")
		return
	}

	msg := &store.ChatMessage{
		RoomID: roomID,
		Role:   sess.Meta().Role,
		Sender: p.Sender,
		Text:   p.Text,
	}
	ctl.Orch.RecordChat(ctx, msg)

	ctl.BroadcastFrom(sid, struct {
		Type      string `json:"type"`
		RoomID    string `json:"roomId"`
		MessageID string `json:"messageId,omitempty"`
		Role      string `json:"role"`
		Sender    string `json:"sender,omitempty"`
		Text      string `json:"text"`
		Timestamp int64  `json:"timestamp"`
	}{
		Type:      "chat-message",
		RoomID:    string(roomID),
		MessageID: msg.ID,
		Role:      string(msg.Role),
		Sender:    msg.Sender,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	})
	metrics.SignalsRelayed.WithLabelValues("chat-message").Inc()
}

func (ctl *Controller) handleScreenShare(sid core.SessionID, conn core.SignalConnection, data []byte) {
	type screenPayload struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		Enabled bool   `json:"enabled"`
	}
	var p screenPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "screen-share-error", "bad_payload")
		return
	}
	if _, _, ok := ctl.Orch.Registry.RoomOf(sid); !ok {
		ctl.sendError(conn, "screen-share-error", "not in a room")
		return
	}
	ctl.BroadcastFrom(sid, p)
	metrics.SignalsRelayed.WithLabelValues("screen-share-toggle").Inc()
}
