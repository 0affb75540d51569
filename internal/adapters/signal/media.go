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

func (ctl *Controller) handleStartRecording(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	type startPayload struct {
		Type        string `json:"type"`
		RoomID      string `json:"roomId"`
		RecordingID string `json:"recordingId"`
		DoctorID    int64  `json:"doctorId"`
	}
	var p startPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(conn, "recording-start-error", "bad_payload")
		return
	}

	rec, err := ctl.Orch.StartRecording(ctx, domain.RoomID(p.RoomID), domain.MediaID(p.RecordingID), p.DoctorID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrRoomNotFound):
			ctl.sendError(conn, "recording-start-error", "room not found")
		case errors.Is(err, orch.ErrNoPatient):
			ctl.sendError(conn, "recording-start-error", err.Error())
		default:
			log.Error().Err(err).Str("module", "signal").Str("room", p.RoomID).Msg("start recording")
			ctl.sendError(conn, "recording-start-error", "internal error")
		}
		return
	}

	started := struct {
		Type    string         `json:"type"`
		RoomID  string         `json:"roomId"`
		MediaID domain.MediaID `json:"mediaId"`
	}{"recording-start-success", p.RoomID, rec.ID}
	ctl.sendJSON(conn, started)
	announce := started
	announce.Type = "recording-started"
	ctl.BroadcastFrom(sid, announce)
}

func (ctl *Controller) handleStopRecording(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	type stopPayload struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		MediaID string `json:"mediaId"`
	}
	var p stopPayload
	if err := json.Unmarshal(data, &p); err != nil || p.MediaID == "" {
		ctl.sendError(conn, "recording-stop-error", "bad_payload")
		return
	}
	if err := ctl.Orch.StopRecording(ctx, domain.MediaID(p.MediaID)); err != nil {
		ctl.sendError(conn, "recording-stop-error", "recording not found")
		return
	}
	stopped := map[string]any{"type": "recording-stopped", "roomId": p.RoomID, "mediaId": p.MediaID}
	ctl.sendJSON(conn, stopped)
	ctl.BroadcastFrom(sid, stopped)
}

type chunkPayload struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	MediaID     string `json:"mediaId"`
	ChunkIndex  int    `json:"chunkIndex"`
	ChunkData   string `json:"chunkData,omitempty"`
	Base64Data  string `json:"base64Data,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	TotalChunks int    `json:"totalChunks,omitempty"`
}

func (p *chunkPayload) payload() string {
	if p.Base64Data != "" {
		return p.Base64Data
	}
	return p.ChunkData
}

func (ctl *Controller) appendChunk(sid core.SessionID, conn core.SignalConnection, data []byte, ackEvent string, relayPayload bool) {
	var p chunkPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.MediaID == "" {
		ctl.sendError(conn, ackEvent+"-error", "bad_payload")
		return
	}
	err := ctl.Orch.AppendChunk(domain.RoomID(p.RoomID), domain.MediaID(p.MediaID), p.ChunkIndex, p.payload(), p.TotalChunks)
	if err != nil {
		if errors.Is(err, app.ErrRoomNotFound) {
			ctl.sendError(conn, ackEvent+"-error", "room not found")
		} else {
			ctl.sendError(conn, ackEvent+"-error", err.Error())
		}
		return
	}

	notify := struct {
		Type       string `json:"type"`
		RoomID     string `json:"roomId"`
		MediaID    string `json:"mediaId"`
		ChunkIndex int    `json:"chunkIndex"`
		Base64Data string `json:"base64Data,omitempty"`
		MimeType   string `json:"mimeType,omitempty"`
	}{
		Type:       ackEvent + "-received",
		RoomID:     p.RoomID,
		MediaID:    p.MediaID,
		ChunkIndex: p.ChunkIndex,
	}
	if relayPayload {
		// Live preview path: peers render chunks as they arrive.
		notify.Base64Data = p.payload()
		notify.MimeType = p.MimeType
	}
	ctl.BroadcastFrom(sid, notify)
	metrics.SignalsRelayed.WithLabelValues(ackEvent).Inc()
}

func (ctl *Controller) handleRecordingChunk(sid core.SessionID, conn core.SignalConnection, data []byte) {
	ctl.appendChunk(sid, conn, data, "recording-chunk", false)
}

func (ctl *Controller) handleLiveChunk(sid core.SessionID, conn core.SignalConnection, data []byte) {
	ctl.appendChunk(sid, conn, data, "live-base64-chunk", true)
}

func (ctl *Controller) handleCompleteStream(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	type completePayload struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		MediaID string `json:"mediaId"`
	}
	var p completePayload
	if err := json.Unmarshal(data, &p); err != nil || p.MediaID == "" {
		ctl.sendError(conn, "live-base64-stream-error", "bad_payload")
		return
	}

	assembled, err := ctl.Orch.CompleteStream(ctx, domain.RoomID(p.RoomID), domain.MediaID(p.MediaID))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrStreamNotFound):
			ctl.sendError(conn, "live-base64-stream-error", "stream not found")
		case errors.Is(err, app.ErrStreamIncomplete):
			ctl.sendError(conn, "live-base64-stream-error", err.Error())
		default:
			log.Error().Err(err).Str("module", "signal").Str("media", p.MediaID).Msg("complete stream")
			ctl.sendError(conn, "live-base64-stream-error", "persistence failed")
		}
		return
	}

	done := struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		MediaID string `json:"mediaId"`
		Size    int    `json:"size"`
	}{"live-base64-stream-complete", p.RoomID, p.MediaID, len(assembled)}
	ctl.sendJSON(conn, done)
	ctl.BroadcastFrom(sid, done)
	metrics.SignalsRelayed.WithLabelValues("complete-live-base64-stream").Inc()
}

func (ctl *Controller) handleStreamState(sid core.SessionID, conn core.SignalConnection, data []byte) {
	type statePayload struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		MediaID string `json:"mediaId"`
	}
	var p statePayload
	if err := json.Unmarshal(data, &p); err != nil || p.MediaID == "" {
		ctl.sendError(conn, "live-stream-state-error", "bad_payload")
		return
	}
	assembled, chunks, ok := ctl.Orch.StreamSnapshot(domain.RoomID(p.RoomID), domain.MediaID(p.MediaID))
	if !ok {
		ctl.sendError(conn, "live-stream-state-error", "stream not found")
		return
	}
	ctl.sendJSON(conn, struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		MediaID string `json:"mediaId"`
		Chunks  int    `json:"chunks"`
		Data    string `json:"data"`
	}{"live-stream-state", p.RoomID, p.MediaID, chunks, assembled})
}

type savePayload struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	MediaType string `json:"mediaType,omitempty"`
	DoctorID  int64  `json:"doctorId"`
	PatientID *int64 `json:"patientId,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	MediaData string `json:"mediaData"`
}

func (ctl *Controller) saveMedia(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte, mediaType domain.MediaType, event string) {
	var p savePayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.MediaData == "" {
		ctl.sendError(conn, event+"-save-error", "bad_payload")
		return
	}
	if mediaType == "" {
		mt, err := domain.ParseMediaType(p.MediaType)
		if err != nil {
			ctl.sendError(conn, event+"-save-error", "unknown media type")
			return
		}
		mediaType = mt
	}

	rec := &domain.MediaRecord{
		RoomID:    domain.RoomID(p.RoomID),
		MediaType: mediaType,
		DoctorID:  p.DoctorID,
		PatientID: p.PatientID,
		MimeType:  p.MimeType,
		Data:      p.MediaData,
	}
	if err := ctl.Orch.SaveMedia(ctx, rec); err != nil {
		if errors.Is(err, app.ErrRoomNotFound) {
			ctl.sendError(conn, event+"-save-error", "room not found")
		} else {
			log.Error().Err(err).Str("module", "signal").Str("room", p.RoomID).Msg("save media")
			ctl.sendError(conn, event+"-save-error", "persistence failed")
		}
		return
	}

	saved := struct {
		Type    string         `json:"type"`
		RoomID  string         `json:"roomId"`
		MediaID domain.MediaID `json:"mediaId"`
	}{event + "-save-success", p.RoomID, rec.ID}
	ctl.sendJSON(conn, saved)
	ctl.BroadcastFrom(sid, struct {
		Type      string           `json:"type"`
		RoomID    string           `json:"roomId"`
		MediaID   domain.MediaID   `json:"mediaId"`
		MediaType domain.MediaType `json:"mediaType"`
	}{event + "-saved", p.RoomID, rec.ID, mediaType})
}

func (ctl *Controller) handleSaveMedia(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	ctl.saveMedia(ctx, sid, conn, data, "", "media")
}

func (ctl *Controller) handleSaveSignature(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	ctl.saveMedia(ctx, sid, conn, data, domain.MediaSignature, "signature")
}

func (ctl *Controller) handleSaveImage(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	ctl.saveMedia(ctx, sid, conn, data, domain.MediaImage, "image")
}
