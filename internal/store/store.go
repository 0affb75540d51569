package store

import (
	"context"
	"errors"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

var ErrNotFound = errors.New("not found")

// DataStore defines the persistence surface used by the HTTP handlers and
// the signaling orchestrator. PostgresStore implements it; tests supply
// in-memory fakes.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Doctor operations
	CreateDoctor(ctx context.Context, name, email, phone, passwordHash, specialization string) (*domain.Doctor, error)
	GetDoctorByEmail(ctx context.Context, email string) (*domain.Doctor, error)
	GetDoctorByID(ctx context.Context, id int64) (*domain.Doctor, error)
	GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error)

	// Patient operations
	CreatePatient(ctx context.Context, name, email, phone string, roomID domain.RoomID) (*domain.Patient, error)
	GetPatientByRoom(ctx context.Context, roomID domain.RoomID) (*domain.Patient, error)

	// Room operations
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	ListRoomsByDoctor(ctx context.Context, doctorID int64) ([]domain.Room, error)
	CloseRoom(ctx context.Context, id domain.RoomID) error

	// Consultation operations
	CreateConsultation(ctx context.Context, c *domain.Consultation) (*domain.Consultation, error)
	GetConsultation(ctx context.Context, id int64) (*domain.Consultation, error)
	ListConsultationsByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Consultation, error)
	UpdateConsultation(ctx context.Context, id int64, notes, prescription *string, status *domain.ConsultationStatus) (*domain.Consultation, error)

	// Media operations
	CreateMedia(ctx context.Context, m *domain.MediaRecord) error
	CompleteMedia(ctx context.Context, id domain.MediaID, data string, sizeBytes int64) error
	UpdateMediaStatus(ctx context.Context, id domain.MediaID, status domain.MediaStatus) error
	GetMedia(ctx context.Context, id domain.MediaID) (*domain.MediaRecord, error)
	ListMediaByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.MediaRecord, error)

	// Location operations
	SaveLocation(ctx context.Context, l *domain.Location) (*domain.Location, error)
	ListLocationsByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Location, error)
}
