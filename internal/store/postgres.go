package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/metrics"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observe(start time.Time) {
	metrics.PostgresLatency.Observe(time.Since(start).Seconds())
}

// CreateDoctor inserts a doctor row and returns it.
func (s *PostgresStore) CreateDoctor(ctx context.Context, name, email, phone, passwordHash, specialization string) (*domain.Doctor, error) {
	defer observe(time.Now())
	d := &domain.Doctor{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO doctors (name, email, phone, password_hash, specialization)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, email, phone, password_hash, specialization, created_at, updated_at
	`, name, email, phone, passwordHash, specialization).Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.PasswordHash, &d.Specialization, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) GetDoctorByEmail(ctx context.Context, email string) (*domain.Doctor, error) {
	defer observe(time.Now())
	d := &domain.Doctor{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, password_hash, specialization, created_at, updated_at
		FROM doctors WHERE email = $1
	`, email).Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.PasswordHash, &d.Specialization, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) GetDoctorByID(ctx context.Context, id int64) (*domain.Doctor, error) {
	defer observe(time.Now())
	d := &domain.Doctor{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, password_hash, specialization, created_at, updated_at
		FROM doctors WHERE id = $1
	`, id).Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.PasswordHash, &d.Specialization, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	defer observe(time.Now())
	a := &domain.Admin{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM admins WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *PostgresStore) CreatePatient(ctx context.Context, name, email, phone string, roomID domain.RoomID) (*domain.Patient, error) {
	defer observe(time.Now())
	p := &domain.Patient{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO patients (name, email, phone, room_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, phone, room_id, created_at
	`, name, email, phone, string(roomID)).Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.RoomID, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) GetPatientByRoom(ctx context.Context, roomID domain.RoomID) (*domain.Patient, error) {
	defer observe(time.Now())
	p := &domain.Patient{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, room_id, created_at
		FROM patients WHERE room_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, string(roomID)).Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.RoomID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	defer observe(time.Now())
	return s.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, name, doctor_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, string(room.ID), room.Name, room.DoctorID, string(room.Status)).Scan(&room.CreatedAt)
}

func (s *PostgresStore) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	defer observe(time.Now())
	r := &domain.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, doctor_id, status, created_at FROM rooms WHERE id = $1
	`, string(id)).Scan(&r.ID, &r.Name, &r.DoctorID, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListRoomsByDoctor(ctx context.Context, doctorID int64) ([]domain.Room, error) {
	defer observe(time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, doctor_id, status, created_at
		FROM rooms WHERE doctor_id = $1
		ORDER BY created_at DESC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.DoctorID, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CloseRoom(ctx context.Context, id domain.RoomID) error {
	defer observe(time.Now())
	tag, err := s.pool.Exec(ctx, `UPDATE rooms SET status = 'closed' WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateConsultation(ctx context.Context, c *domain.Consultation) (*domain.Consultation, error) {
	defer observe(time.Now())
	out := &domain.Consultation{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO consultations (room_id, doctor_id, patient_id, notes, prescription, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, room_id, doctor_id, patient_id, notes, prescription, status, started_at, ended_at, created_at
	`, string(c.RoomID), c.DoctorID, c.PatientID, c.Notes, c.Prescription, string(c.Status), c.StartedAt).Scan(
		&out.ID, &out.RoomID, &out.DoctorID, &out.PatientID, &out.Notes, &out.Prescription, &out.Status, &out.StartedAt, &out.EndedAt, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetConsultation(ctx context.Context, id int64) (*domain.Consultation, error) {
	defer observe(time.Now())
	c := &domain.Consultation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, room_id, doctor_id, patient_id, notes, prescription, status, started_at, ended_at, created_at
		FROM consultations WHERE id = $1
	`, id).Scan(
		&c.ID, &c.RoomID, &c.DoctorID, &c.PatientID, &c.Notes, &c.Prescription, &c.Status, &c.StartedAt, &c.EndedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListConsultationsByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Consultation, error) {
	defer observe(time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, doctor_id, patient_id, notes, prescription, status, started_at, ended_at, created_at
		FROM consultations WHERE room_id = $1
		ORDER BY created_at DESC
	`, string(roomID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Consultation
	for rows.Next() {
		var c domain.Consultation
		if err := rows.Scan(&c.ID, &c.RoomID, &c.DoctorID, &c.PatientID, &c.Notes, &c.Prescription, &c.Status, &c.StartedAt, &c.EndedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConsultation patches the nullable fields that were supplied. A status
// change to completed also stamps ended_at.
func (s *PostgresStore) UpdateConsultation(ctx context.Context, id int64, notes, prescription *string, status *domain.ConsultationStatus) (*domain.Consultation, error) {
	defer observe(time.Now())
	c := &domain.Consultation{}
	err := s.pool.QueryRow(ctx, `
		UPDATE consultations SET
			notes        = COALESCE($2, notes),
			prescription = COALESCE($3, prescription),
			status       = COALESCE($4, status),
			ended_at     = CASE WHEN $4 = 'completed' THEN now() ELSE ended_at END
		WHERE id = $1
		RETURNING id, room_id, doctor_id, patient_id, notes, prescription, status, started_at, ended_at, created_at
	`, id, notes, prescription, (*string)(status)).Scan(
		&c.ID, &c.RoomID, &c.DoctorID, &c.PatientID, &c.Notes, &c.Prescription, &c.Status, &c.StartedAt, &c.EndedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) CreateMedia(ctx context.Context, m *domain.MediaRecord) error {
	defer observe(time.Now())
	return s.pool.QueryRow(ctx, `
		INSERT INTO room_media (id, room_id, media_type, status, doctor_id, patient_id, mime_type, data, size_bytes, is_live_streaming)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, string(m.ID), string(m.RoomID), string(m.MediaType), string(m.Status), m.DoctorID, m.PatientID, m.MimeType, m.Data, m.SizeBytes, m.IsLiveStreaming).Scan(&m.CreatedAt)
}

func (s *PostgresStore) CompleteMedia(ctx context.Context, id domain.MediaID, data string, sizeBytes int64) error {
	defer observe(time.Now())
	tag, err := s.pool.Exec(ctx, `
		UPDATE room_media SET data = $2, size_bytes = $3, status = 'completed', completed_at = now()
		WHERE id = $1
	`, string(id), data, sizeBytes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateMediaStatus(ctx context.Context, id domain.MediaID, status domain.MediaStatus) error {
	defer observe(time.Now())
	tag, err := s.pool.Exec(ctx, `UPDATE room_media SET status = $2 WHERE id = $1`, string(id), string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetMedia(ctx context.Context, id domain.MediaID) (*domain.MediaRecord, error) {
	defer observe(time.Now())
	m := &domain.MediaRecord{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, room_id, media_type, status, doctor_id, patient_id, mime_type, data, size_bytes, is_live_streaming, created_at, completed_at
		FROM room_media WHERE id = $1
	`, string(id)).Scan(
		&m.ID, &m.RoomID, &m.MediaType, &m.Status, &m.DoctorID, &m.PatientID, &m.MimeType, &m.Data, &m.SizeBytes, &m.IsLiveStreaming, &m.CreatedAt, &m.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListMediaByRoom returns media rows without their payloads; blobs are
// fetched one at a time via GetMedia.
func (s *PostgresStore) ListMediaByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.MediaRecord, error) {
	defer observe(time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, media_type, status, doctor_id, patient_id, mime_type, size_bytes, is_live_streaming, created_at, completed_at
		FROM room_media WHERE room_id = $1
		ORDER BY created_at DESC
	`, string(roomID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MediaRecord
	for rows.Next() {
		var m domain.MediaRecord
		if err := rows.Scan(&m.ID, &m.RoomID, &m.MediaType, &m.Status, &m.DoctorID, &m.PatientID, &m.MimeType, &m.SizeBytes, &m.IsLiveStreaming, &m.CreatedAt, &m.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveLocation(ctx context.Context, l *domain.Location) (*domain.Location, error) {
	defer observe(time.Now())
	out := &domain.Location{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO locations (room_id, role, latitude, longitude, accuracy)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, room_id, role, latitude, longitude, accuracy, captured_at
	`, string(l.RoomID), string(l.Role), l.Latitude, l.Longitude, l.Accuracy).Scan(
		&out.ID, &out.RoomID, &out.Role, &out.Latitude, &out.Longitude, &out.Accuracy, &out.CapturedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListLocationsByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Location, error) {
	defer observe(time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, role, latitude, longitude, accuracy, captured_at
		FROM locations WHERE room_id = $1
		ORDER BY captured_at DESC
	`, string(roomID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.ID, &l.RoomID, &l.Role, &l.Latitude, &l.Longitude, &l.Accuracy, &l.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
