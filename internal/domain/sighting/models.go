package sighting

import (
	"time"
)

type VehicleInfo struct {
	Color string `json:"color,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Payload is one inbound plate observation from an edge camera. Immutable
// once received; a Detection record is persisted for it regardless of
// outcome.
type Payload struct {
	Plate        string     `json:"plate" binding:"required,min=1,max=20"`
	Address      string     `json:"address" binding:"required,min=1"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	ImageBase64  string     `json:"imageBase64,omitempty"`
	ZoneName     string     `json:"zoneName,omitempty"`
	VehicleColor string     `json:"vehicleColor,omitempty"`
	VehicleType  string     `json:"vehicleType,omitempty"`
	CameraID     string     `json:"cameraId,omitempty"`
	LocationID   string     `json:"locationId,omitempty"`
}

// Zone returns the zone the sighting belongs to, falling back to the street
// address when no zone name was supplied.
func (p *Payload) Zone() string {
	if p.ZoneName != "" {
		return p.ZoneName
	}
	return p.Address
}

// Duration describes how a sighting relates in time to an active booking.
// All values are computed in the booking's adjusted time frame.
type Duration struct {
	Minutes                   int  `json:"minutes"`
	Hours                     int  `json:"hours"`
	MinutesRemainder          int  `json:"minutesRemainder"`
	RemainingMinutes          int  `json:"remainingMinutes"`
	RemainingHours            int  `json:"remainingHours"`
	RemainingMinutesRemainder int  `json:"remainingMinutesRemainder"`
	IsWithinBooking           bool `json:"isWithinBooking"`
	IsOverstayed              bool `json:"isOverstayed"`
}

// Overstay carries the billing arithmetic for time spent past a booking's
// end. ChargeableHours rounds up whenever a minute remainder exists.
type Overstay struct {
	OverstayHours        int     `json:"overstayHours"`
	OverstayMinutes      int     `json:"overstayMinutes"`
	OverstayTotalMinutes int     `json:"overstayTotalMinutes"`
	AdditionalCharge     float64 `json:"additionalCharge"`
	HourlyRate           float64 `json:"hourlyRate"`
	ChargeableHours      int     `json:"chargeableHours"`
}

type BookingSummary struct {
	ID          int64     `json:"id"`
	Plate       string    `json:"plate"`
	StartTime   time.Time `json:"starttime"`
	EndTime     time.Time `json:"endtime"`
	BookingDate time.Time `json:"bookingdate"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
}

// Outcome is the correlation result for one sighting. IsViolation and
// HasBooking are always complementary; Overstay is set exactly when
// Duration.IsOverstayed is true.
type Outcome struct {
	HasBooking  bool
	IsViolation bool
	Booking     *BookingSummary
	Duration    *Duration
	Overstay    *Overstay
}
