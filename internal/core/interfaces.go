package core

import "github.com/sks2025/werbrtc-sub000/internal/domain"

// Frame is a raw outbound payload, already marshaled to JSON.
type Frame []byte

type SessionID string

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ParticipantSession binds domain.Participant and its transport endpoint.
// This is what a room stores and fans out to.
type ParticipantSession interface {
	Meta() *domain.Participant
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []ParticipantSession
}

// ParticipantDTO is a read-only view for APIs (no transport fields).
type ParticipantDTO struct {
	SessionID string          `json:"sessionId"`
	Role      domain.Role     `json:"role"`
	Info      domain.UserInfo `json:"userInfo"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	ParticipantCount() int
	ParticipantsSnapshot() []ParticipantDTO
	HasRole(role domain.Role) bool
	SessionsOfRole(role domain.Role) []SessionID

	AddParticipant(sid SessionID, ps ParticipantSession) error
	RemoveParticipant(sid SessionID)
	Broadcast(from SessionID, data Frame) PublishResult
	SendTo(sid SessionID, data Frame) error
}

type RoomInfo struct {
	ID               domain.RoomID `json:"id"`
	Name             string        `json:"name"`
	ParticipantCount int           `json:"participantCount"`
}
