package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. There is no migration framework;
// the schema is additive and guarded by IF NOT EXISTS.
const schema = `
CREATE TABLE IF NOT EXISTS doctors (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL UNIQUE,
	phone          TEXT NOT NULL DEFAULT '',
	password_hash  TEXT NOT NULL,
	specialization TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS admins (
	id            BIGSERIAL PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	doctor_id  BIGINT NOT NULL REFERENCES doctors(id),
	status     TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'closed')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patients (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_patients_room ON patients(room_id);

CREATE TABLE IF NOT EXISTS consultations (
	id           BIGSERIAL PRIMARY KEY,
	room_id      TEXT NOT NULL REFERENCES rooms(id),
	doctor_id    BIGINT NOT NULL REFERENCES doctors(id),
	patient_id   BIGINT REFERENCES patients(id),
	notes        TEXT NOT NULL DEFAULT '',
	prescription TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'scheduled'
	             CHECK (status IN ('scheduled', 'in_progress', 'completed', 'cancelled')),
	started_at   TIMESTAMPTZ,
	ended_at     TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_consultations_room ON consultations(room_id);

CREATE TABLE IF NOT EXISTS room_media (
	id                TEXT PRIMARY KEY,
	room_id           TEXT NOT NULL REFERENCES rooms(id),
	media_type        TEXT NOT NULL CHECK (media_type IN ('recording', 'signature', 'image')),
	status            TEXT NOT NULL DEFAULT 'processing'
	                  CHECK (status IN ('recording', 'processing', 'completed', 'failed')),
	doctor_id         BIGINT NOT NULL DEFAULT 0,
	patient_id        BIGINT REFERENCES patients(id),
	mime_type         TEXT NOT NULL DEFAULT '',
	data              TEXT NOT NULL DEFAULT '',
	size_bytes        BIGINT NOT NULL DEFAULT 0,
	is_live_streaming BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_room_media_room ON room_media(room_id);

CREATE TABLE IF NOT EXISTS locations (
	id          BIGSERIAL PRIMARY KEY,
	room_id     TEXT NOT NULL REFERENCES rooms(id),
	role        TEXT NOT NULL CHECK (role IN ('doctor', 'patient')),
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	accuracy    DOUBLE PRECISION NOT NULL DEFAULT 0,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_locations_room ON locations(room_id);
`

// RunMigrations applies the schema against the given database.
func RunMigrations(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, schema)
	return err
}
