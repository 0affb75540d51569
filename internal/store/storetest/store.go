// Package storetest provides an in-memory DataStore for handler and
// orchestrator tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

// Fake is a map-backed store.DataStore. Zero value is not usable; call New.
// Err, when set, is returned by every method to simulate a dead database.
type Fake struct {
	mu sync.Mutex

	Err error

	doctors       map[int64]*domain.Doctor
	admins        map[string]*domain.Admin
	patients      map[int64]*domain.Patient
	rooms         map[domain.RoomID]*domain.Room
	consultations map[int64]*domain.Consultation
	media         map[domain.MediaID]*domain.MediaRecord
	locations     []domain.Location

	nextID int64
}

var _ store.DataStore = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		doctors:       make(map[int64]*domain.Doctor),
		admins:        make(map[string]*domain.Admin),
		patients:      make(map[int64]*domain.Patient),
		rooms:         make(map[domain.RoomID]*domain.Room),
		consultations: make(map[int64]*domain.Consultation),
		media:         make(map[domain.MediaID]*domain.MediaRecord),
	}
}

func (f *Fake) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *Fake) Close() {}

func (f *Fake) Ping(ctx context.Context) error { return f.Err }

func (f *Fake) CreateDoctor(ctx context.Context, name, email, phone, passwordHash, specialization string) (*domain.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	d := &domain.Doctor{
		ID:             f.id(),
		Name:           name,
		Email:          email,
		Phone:          phone,
		PasswordHash:   passwordHash,
		Specialization: specialization,
		CreatedAt:      time.Now(),
	}
	f.doctors[d.ID] = d
	return d, nil
}

func (f *Fake) GetDoctorByEmail(ctx context.Context, email string) (*domain.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for _, d := range f.doctors {
		if d.Email == email {
			return d, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *Fake) GetDoctorByID(ctx context.Context, id int64) (*domain.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	d, ok := f.doctors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (f *Fake) GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	a, ok := f.admins[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

// SeedAdmin registers an admin for login tests.
func (f *Fake) SeedAdmin(email, passwordHash string) *domain.Admin {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &domain.Admin{ID: f.id(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.admins[email] = a
	return a
}

func (f *Fake) CreatePatient(ctx context.Context, name, email, phone string, roomID domain.RoomID) (*domain.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p := &domain.Patient{ID: f.id(), Name: name, Email: email, Phone: phone, RoomID: roomID, CreatedAt: time.Now()}
	f.patients[p.ID] = p
	return p, nil
}

func (f *Fake) GetPatientByRoom(ctx context.Context, roomID domain.RoomID) (*domain.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for _, p := range f.patients {
		if p.RoomID == roomID {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *Fake) CreateRoom(ctx context.Context, room *domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	cp := *room
	f.rooms[room.ID] = &cp
	return nil
}

func (f *Fake) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	r, ok := f.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *Fake) ListRoomsByDoctor(ctx context.Context, doctorID int64) ([]domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Room
	for _, r := range f.rooms {
		if r.DoctorID == doctorID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *Fake) CloseRoom(ctx context.Context, id domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	r, ok := f.rooms[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = domain.RoomClosed
	return nil
}

func (f *Fake) CreateConsultation(ctx context.Context, c *domain.Consultation) (*domain.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	cp := *c
	cp.ID = f.id()
	cp.CreatedAt = time.Now()
	f.consultations[cp.ID] = &cp
	return &cp, nil
}

func (f *Fake) GetConsultation(ctx context.Context, id int64) (*domain.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	c, ok := f.consultations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *Fake) ListConsultationsByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Consultation
	for _, c := range f.consultations {
		if c.RoomID == roomID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *Fake) UpdateConsultation(ctx context.Context, id int64, notes, prescription *string, status *domain.ConsultationStatus) (*domain.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	c, ok := f.consultations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if notes != nil {
		c.Notes = *notes
	}
	if prescription != nil {
		c.Prescription = *prescription
	}
	if status != nil {
		c.Status = *status
		if *status == domain.ConsultationCompleted && c.EndedAt == nil {
			now := time.Now()
			c.EndedAt = &now
		}
	}
	cp := *c
	return &cp, nil
}

func (f *Fake) CreateMedia(ctx context.Context, m *domain.MediaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	cp := *m
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.media[cp.ID] = &cp
	return nil
}

func (f *Fake) CompleteMedia(ctx context.Context, id domain.MediaID, data string, sizeBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	m, ok := f.media[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Data = data
	m.SizeBytes = sizeBytes
	m.Status = domain.StatusCompleted
	now := time.Now()
	m.CompletedAt = &now
	return nil
}

func (f *Fake) UpdateMediaStatus(ctx context.Context, id domain.MediaID, status domain.MediaStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	m, ok := f.media[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Status = status
	return nil
}

func (f *Fake) GetMedia(ctx context.Context, id domain.MediaID) (*domain.MediaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	m, ok := f.media[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *Fake) ListMediaByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.MediaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.MediaRecord
	for _, m := range f.media {
		if m.RoomID == roomID {
			cp := *m
			cp.Data = ""
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *Fake) SaveLocation(ctx context.Context, l *domain.Location) (*domain.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	cp := *l
	cp.ID = f.id()
	cp.CapturedAt = time.Now()
	f.locations = append(f.locations, cp)
	return &cp, nil
}

func (f *Fake) ListLocationsByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Location
	for _, l := range f.locations {
		if l.RoomID == roomID {
			out = append(out, l)
		}
	}
	return out, nil
}
