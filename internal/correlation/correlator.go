package correlation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"parkwatch-service/internal/domain/sighting"
	"parkwatch-service/internal/repository"
)

// BookingSource is the slice of the booking repository the correlator
// needs.
type BookingSource interface {
	FindActiveByPlate(ctx context.Context, normalizedPlate string) (*repository.Booking, error)
	FindLocation(ctx context.Context, id int64) (*repository.ParkingLocation, error)
}

// Result extends the correlation outcome with the context the orchestrator
// needs for notifications.
type Result struct {
	sighting.Outcome
	// LocationAddress is the parking location's address when resolvable,
	// otherwise empty.
	LocationAddress string
	// AdjustedNow is the instant all duration math was computed against.
	AdjustedNow time.Time
	// BookingEnd is the booking's end time; zero when no booking exists.
	BookingEnd time.Time
}

// Correlator classifies a sighted plate against the reservation store.
type Correlator struct {
	bookings BookingSource
	log      zerolog.Logger
	now      func() time.Time
}

func New(bookings BookingSource, log zerolog.Logger) *Correlator {
	return &Correlator{
		bookings: bookings,
		log:      log,
		now:      time.Now,
	}
}

// Correlate looks up the active booking for a normalized plate and derives
// duration, overstay and charge. A lookup failure propagates; the whole
// sighting response depends on it.
func (c *Correlator) Correlate(ctx context.Context, normalizedPlate string) (*Result, error) {
	booking, err := c.bookings.FindActiveByPlate(ctx, normalizedPlate)
	if err != nil {
		return nil, fmt.Errorf("booking lookup for plate %q: %w", normalizedPlate, err)
	}

	if booking == nil {
		return &Result{
			Outcome: sighting.Outcome{
				HasBooking:  false,
				IsViolation: true,
			},
		}, nil
	}

	// All arithmetic runs in one adjusted time frame so duration and
	// overstay can never drift apart.
	adjustedNow := c.now().Add(-time.Duration(booking.TimeOffsetMinutes) * time.Minute)

	durationMinutes := clampMinutes(adjustedNow.Sub(booking.StartTime))
	remainingMinutes := clampMinutes(booking.EndTime.Sub(adjustedNow))

	isWithinBooking := !adjustedNow.Before(booking.StartTime) && !adjustedNow.After(booking.EndTime)
	isOverstayed := adjustedNow.After(booking.EndTime)

	duration := &sighting.Duration{
		Minutes:                   durationMinutes,
		Hours:                     durationMinutes / 60,
		MinutesRemainder:          durationMinutes % 60,
		RemainingMinutes:          remainingMinutes,
		RemainingHours:            remainingMinutes / 60,
		RemainingMinutesRemainder: remainingMinutes % 60,
		IsWithinBooking:           isWithinBooking,
		IsOverstayed:              isOverstayed,
	}

	result := &Result{
		Outcome: sighting.Outcome{
			HasBooking:  true,
			IsViolation: false,
			Booking: &sighting.BookingSummary{
				ID:          booking.ID,
				Plate:       booking.Plate,
				StartTime:   booking.StartTime,
				EndTime:     booking.EndTime,
				BookingDate: booking.BookingDate,
				Amount:      booking.Amount,
				Status:      booking.Status,
			},
			Duration: duration,
		},
		AdjustedNow: adjustedNow,
		BookingEnd:  booking.EndTime,
	}

	location := booking.Location
	if location == nil && booking.LocationID != nil {
		location, err = c.bookings.FindLocation(ctx, *booking.LocationID)
		if err != nil {
			c.log.Warn().Err(err).Int64("location_id", *booking.LocationID).Msg("parking location lookup failed, charging zero rate")
			location = nil
		}
	}
	if location != nil {
		result.LocationAddress = location.Address
	}

	if isOverstayed {
		result.Overstay = computeOverstay(adjustedNow, booking.EndTime, location)
	}

	return result, nil
}

func computeOverstay(adjustedNow, end time.Time, location *repository.ParkingLocation) *sighting.Overstay {
	totalMinutes := clampMinutes(adjustedNow.Sub(end))
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	var hourlyRate float64
	if location != nil {
		hourlyRate = location.HourlyPrice
	}

	// Any minute remainder rounds the chargeable time up to the next whole
	// hour.
	chargeableHours := hours
	if minutes > 0 {
		chargeableHours = hours + 1
	}

	return &sighting.Overstay{
		OverstayHours:        hours,
		OverstayMinutes:      minutes,
		OverstayTotalMinutes: totalMinutes,
		AdditionalCharge:     float64(chargeableHours) * hourlyRate,
		HourlyRate:           hourlyRate,
		ChargeableHours:      chargeableHours,
	}
}

func clampMinutes(d time.Duration) int {
	minutes := int(math.Floor(d.Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}
