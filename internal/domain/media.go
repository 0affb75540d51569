package domain

import (
	"errors"
	"time"
)

type (
	MediaID     string
	MediaType   string
	MediaStatus string
)

const (
	MediaRecording MediaType = "recording"
	MediaSignature MediaType = "signature"
	MediaImage     MediaType = "image"
)

const (
	StatusRecording  MediaStatus = "recording"
	StatusProcessing MediaStatus = "processing"
	StatusCompleted  MediaStatus = "completed"
	StatusFailed     MediaStatus = "failed"
)

var ErrUnknownMediaType = errors.New("unknown media type")

func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaRecording, MediaSignature, MediaImage:
		return MediaType(s), nil
	}
	return "", ErrUnknownMediaType
}

// MediaRecord is the durable counterpart of an assembled stream: one row in
// room_media, polymorphic over MediaType.
type MediaRecord struct {
	ID              MediaID     `json:"id"`
	RoomID          RoomID      `json:"roomId"`
	MediaType       MediaType   `json:"mediaType"`
	Status          MediaStatus `json:"status"`
	DoctorID        int64       `json:"doctorId"`
	PatientID       *int64      `json:"patientId,omitempty"`
	MimeType        string      `json:"mimeType,omitempty"`
	Data            string      `json:"data,omitempty"`
	SizeBytes       int64       `json:"sizeBytes"`
	IsLiveStreaming bool        `json:"isLiveStreaming"`
	CreatedAt       time.Time   `json:"createdAt"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
}
