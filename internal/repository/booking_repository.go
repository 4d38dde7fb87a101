package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	BookingStatusBooked    = "booked"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

type ParkingLocation struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Address     string `gorm:"not null"`
	HourlyPrice float64
	CreatedAt   time.Time
}

type Booking struct {
	ID int64 `gorm:"primaryKey"`
	// Plate is stored normalized (lowercase, no whitespace).
	Plate             string `gorm:"not null"`
	Status            string `gorm:"not null"`
	StartTime         time.Time
	EndTime           time.Time
	BookingDate       time.Time
	Amount            float64
	TimeOffsetMinutes int
	LocationID        *int64
	Location          *ParkingLocation `gorm:"foreignKey:LocationID"`
	CreatedAt         time.Time
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindActiveByPlate returns the single booked reservation for a normalized
// plate, with its parking location preloaded. Returns (nil, nil) when no
// active booking exists.
func (r *BookingRepository) FindActiveByPlate(ctx context.Context, normalizedPlate string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Location").
		Where("plate = ? AND status = ?", normalizedPlate, BookingStatusBooked).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindLocation resolves a parking location by id, used when a booking row
// carries a location reference that was not preloaded.
func (r *BookingRepository) FindLocation(ctx context.Context, id int64) (*ParkingLocation, error) {
	var location ParkingLocation
	err := r.db.WithContext(ctx).First(&location, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}
