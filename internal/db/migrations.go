package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS parking_locations (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL,
		address         TEXT NOT NULL,
		hourly_price    NUMERIC(10,2) NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                  BIGSERIAL PRIMARY KEY,
		plate               TEXT NOT NULL,
		status              TEXT NOT NULL,
		start_time          TIMESTAMPTZ NOT NULL,
		end_time            TIMESTAMPTZ NOT NULL,
		booking_date        TIMESTAMPTZ,
		amount              NUMERIC(10,2) NOT NULL DEFAULT 0,
		time_offset_minutes INT NOT NULL DEFAULT 0,
		location_id         BIGINT REFERENCES parking_locations(id),
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_plate_status ON bookings(plate, status);`,
	`CREATE TABLE IF NOT EXISTS detection_records (
		id                BIGSERIAL PRIMARY KEY,
		plate             TEXT NOT NULL,
		timestamp         TIMESTAMPTZ NOT NULL,
		address           TEXT NOT NULL,
		zone_name         TEXT,
		vehicle_color     TEXT,
		vehicle_type      TEXT,
		has_booking       BOOLEAN NOT NULL DEFAULT false,
		booking_id        BIGINT REFERENCES bookings(id),
		is_violation      BOOLEAN NOT NULL DEFAULT false,
		camera_id         TEXT,
		location_id       TEXT,
		duration_minutes  INT,
		duration_hours    INT,
		is_within_booking BOOLEAN,
		is_overstayed     BOOLEAN,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_records_plate ON detection_records(plate, timestamp DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_records_violation ON detection_records(is_violation, timestamp DESC);`,
	`CREATE TABLE IF NOT EXISTS threat_records (
		id              BIGSERIAL PRIMARY KEY,
		detection_id    BIGINT REFERENCES detection_records(id),
		timestamp       TIMESTAMPTZ NOT NULL,
		address         TEXT NOT NULL,
		zone_name       TEXT,
		plate           TEXT,
		vehicle_color   TEXT,
		vehicle_type    TEXT,
		findings        JSONB,
		alert_text      TEXT NOT NULL,
		has_audio       BOOLEAN NOT NULL DEFAULT false,
		camera_id       TEXT,
		location_id     TEXT,
		image_base64    TEXT,
		acknowledged    BOOLEAN NOT NULL DEFAULT false,
		acknowledged_at TIMESTAMPTZ,
		acknowledged_by TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_threat_records_plate ON threat_records(plate, timestamp DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_threat_records_ack ON threat_records(acknowledged, timestamp DESC);`,
	`CREATE TABLE IF NOT EXISTS fire_records (
		id              BIGSERIAL PRIMARY KEY,
		detection_id    BIGINT REFERENCES detection_records(id),
		timestamp       TIMESTAMPTZ NOT NULL,
		address         TEXT NOT NULL,
		zone_name       TEXT,
		plate           TEXT,
		vehicle_color   TEXT,
		vehicle_type    TEXT,
		findings        JSONB,
		alert_text      TEXT NOT NULL,
		has_audio       BOOLEAN NOT NULL DEFAULT false,
		camera_id       TEXT,
		location_id     TEXT,
		image_base64    TEXT,
		acknowledged    BOOLEAN NOT NULL DEFAULT false,
		acknowledged_at TIMESTAMPTZ,
		acknowledged_by TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fire_records_plate ON fire_records(plate, timestamp DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_fire_records_ack ON fire_records(acknowledged, timestamp DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
