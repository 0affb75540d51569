package domain

import "time"

type Patient struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	RoomID    RoomID    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
}

type ConsultationStatus string

const (
	ConsultationScheduled  ConsultationStatus = "scheduled"
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
	ConsultationCancelled  ConsultationStatus = "cancelled"
)

type Consultation struct {
	ID           int64              `json:"id"`
	RoomID       RoomID             `json:"roomId"`
	DoctorID     int64              `json:"doctorId"`
	PatientID    *int64             `json:"patientId,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	Prescription string             `json:"prescription,omitempty"`
	Status       ConsultationStatus `json:"status"`
	StartedAt    *time.Time         `json:"startedAt,omitempty"`
	EndedAt      *time.Time         `json:"endedAt,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Location is a one-shot geolocation capture tied to a room, taken when a
// participant consents to share it (e.g. for home-visit dispatch).
type Location struct {
	ID         int64     `json:"id"`
	RoomID     RoomID    `json:"roomId"`
	Role       Role      `json:"role"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}
