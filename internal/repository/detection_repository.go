package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DetectionRecord is the persisted copy of one sighting and its correlation
// outcome. Rows are append-only; the serial id strictly increases with
// creation order and doubles as the change-feed cursor.
type DetectionRecord struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	Plate           string    `gorm:"not null;index" json:"plate"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
	Address         string    `gorm:"not null" json:"address"`
	ZoneName        *string   `json:"zoneName,omitempty"`
	VehicleColor    *string   `json:"vehicleColor,omitempty"`
	VehicleType     *string   `json:"vehicleType,omitempty"`
	HasBooking      bool      `gorm:"not null" json:"hasBooking"`
	BookingID       *int64    `json:"bookingId,omitempty"`
	IsViolation     bool      `gorm:"not null" json:"isViolation"`
	CameraID        *string   `json:"cameraId,omitempty"`
	LocationID      *string   `json:"locationId,omitempty"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	DurationHours   *int      `json:"durationHours,omitempty"`
	IsWithinBooking *bool     `json:"isWithinBooking,omitempty"`
	IsOverstayed    *bool     `json:"isOverstayed,omitempty"`
	CreatedAt       time.Time `json:"-"`
}

type DetectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

func (r *DetectionRepository) Create(ctx context.Context, record *DetectionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindAfter returns up to limit records with id strictly greater than the
// cursor, oldest first.
func (r *DetectionRepository) FindAfter(ctx context.Context, cursor int64, limit int) ([]DetectionRecord, error) {
	var records []DetectionRecord
	err := r.db.WithContext(ctx).
		Where("id > ?", cursor).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Ping verifies the store is reachable; the change-feed publisher refuses
// to start a stream against a dead connection.
func (r *DetectionRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.WithContext(ctx).DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
