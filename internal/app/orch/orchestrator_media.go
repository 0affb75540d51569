package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

var ErrNoPatient = errors.New("no patient registered in room")

// StartRecording validates the room and its patient, then opens the durable
// media row the live stream will complete into.
func (o *Orchestrator) StartRecording(ctx context.Context, roomID domain.RoomID, mediaID domain.MediaID, doctorID int64) (*domain.MediaRecord, error) {
	if _, ok := o.Rooms.Get(roomID); !ok {
		return nil, app.ErrRoomNotFound
	}
	patient, err := o.Store.GetPatientByRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrNoPatient)
		}
		return nil, err
	}

	if mediaID == "" {
		mediaID = domain.MediaID(ulid.Make().String())
	}
	rec := &domain.MediaRecord{
		ID:              mediaID,
		RoomID:          roomID,
		MediaType:       domain.MediaRecording,
		Status:          domain.StatusRecording,
		DoctorID:        doctorID,
		PatientID:       &patient.ID,
		IsLiveStreaming: true,
	}
	if err := o.Store.CreateMedia(ctx, rec); err != nil {
		return nil, err
	}

	o.Streams.Begin(app.StreamKey{Room: roomID, Media: mediaID}, app.StreamMeta{
		MediaType: domain.MediaRecording,
		DoctorID:  doctorID,
		PatientID: &patient.ID,
	})
	log.Info().Str("module", "app.orch").Str("room", string(roomID)).Str("media", string(mediaID)).Msg("recording started")
	return rec, nil
}

// StopRecording moves the media row out of the live state; the payload
// arrives separately through CompleteStream.
func (o *Orchestrator) StopRecording(ctx context.Context, mediaID domain.MediaID) error {
	return o.Store.UpdateMediaStatus(ctx, mediaID, domain.StatusProcessing)
}

// AppendChunk buffers one base64 chunk of a live stream.
func (o *Orchestrator) AppendChunk(roomID domain.RoomID, mediaID domain.MediaID, index int, payload string, totalChunks int) error {
	if _, ok := o.Rooms.Get(roomID); !ok {
		return app.ErrRoomNotFound
	}
	return o.Streams.Append(app.StreamKey{Room: roomID, Media: mediaID}, index, payload, totalChunks)
}

// CompleteStream assembles the buffered chunks and persists the payload. A
// persistence failure marks the row failed and is reported to the caller.
func (o *Orchestrator) CompleteStream(ctx context.Context, roomID domain.RoomID, mediaID domain.MediaID) (string, error) {
	data, _, err := o.Streams.Complete(app.StreamKey{Room: roomID, Media: mediaID})
	if err != nil {
		return "", err
	}
	if err := o.Store.CompleteMedia(ctx, mediaID, data, int64(len(data))); err != nil {
		if statusErr := o.Store.UpdateMediaStatus(ctx, mediaID, domain.StatusFailed); statusErr != nil {
			log.Error().Err(statusErr).Str("module", "app.orch").Str("media", string(mediaID)).Msg("failed to mark media failed")
		}
		return "", err
	}
	return data, nil
}

// StreamSnapshot returns the data assembled so far without consuming it.
func (o *Orchestrator) StreamSnapshot(roomID domain.RoomID, mediaID domain.MediaID) (string, int, bool) {
	return o.Streams.Snapshot(app.StreamKey{Room: roomID, Media: mediaID})
}

// SaveMedia persists a complete one-shot capture (signature or image sent
// whole over the socket).
func (o *Orchestrator) SaveMedia(ctx context.Context, rec *domain.MediaRecord) error {
	if _, ok := o.Rooms.Get(rec.RoomID); !ok {
		return app.ErrRoomNotFound
	}
	if rec.ID == "" {
		rec.ID = domain.MediaID(ulid.Make().String())
	}
	rec.Status = domain.StatusCompleted
	rec.SizeBytes = int64(len(rec.Data))
	return o.Store.CreateMedia(ctx, rec)
}
