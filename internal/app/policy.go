package app

import "github.com/sks2025/werbrtc-sub000/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickParticipant
	DropFrame
)

// Policy decides what happens to a participant whose send buffer is full.
type Policy interface {
	OnBackPressure(room core.RoomService, participant core.ParticipantSession) BackpressureAction
}

// SimplePolicy drops the frame for slow consumers. A consultation must not
// lose a participant over one missed relay notification.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, participant core.ParticipantSession) BackpressureAction {
	return DropFrame
}
