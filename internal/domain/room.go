package domain

import "time"

type (
	RoomID     string
	RoomStatus string
)

const (
	RoomActive RoomStatus = "active"
	RoomClosed RoomStatus = "closed"
)

// MaxRoomParticipants caps a consultation room: one doctor, one patient
// and up to two observers on the patient side.
const MaxRoomParticipants = 4

type Room struct {
	ID        RoomID     `json:"id"`
	Name      string     `json:"name"`
	DoctorID  int64      `json:"doctorId"`
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (r *Room) IsActive() bool { return r.Status == RoomActive }
