package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"parkwatch-service/internal/correlation"
	"parkwatch-service/internal/detector"
	"parkwatch-service/internal/domain/sighting"
	"parkwatch-service/internal/metrics"
	"parkwatch-service/internal/repository"
	"parkwatch-service/internal/security"
	"parkwatch-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Persisted image snapshots are truncated; full frames are too large for
// record storage.
const imageSnapshotLimit = 1000

type ThreatAssessor interface {
	Assess(ctx context.Context, image []byte, format detector.ImageFormat, vehicle security.VehicleContext) security.ThreatAssessment
}

type FireAssessor interface {
	Assess(ctx context.Context, image []byte, format detector.ImageFormat) security.FireAssessment
}

type Correlator interface {
	Correlate(ctx context.Context, normalizedPlate string) (*correlation.Result, error)
}

type DetectionStore interface {
	Create(ctx context.Context, record *repository.DetectionRecord) error
}

type AlarmStore interface {
	CreateThreat(ctx context.Context, record *repository.ThreatRecord) error
	CreateFire(ctx context.Context, record *repository.FireRecord) error
	AcknowledgeThreat(ctx context.Context, id int64, operator string) error
	AcknowledgeFire(ctx context.Context, id int64, operator string) error
}

type NotificationSender interface {
	Violation(plate, address string, observedAt time.Time) error
	Overstay(plate, address string, overstay *sighting.Overstay, bookedUntil, observedAt time.Time, bookingID int64) error
	FireAlert(address, zone, plate, severity string, fires []detector.Detection, observedAt time.Time, cameraID string) error
}

// SightingResult is the full orchestration outcome returned to the caller.
type SightingResult struct {
	Message       string                     `json:"message"`
	HasBooking    bool                       `json:"hasBooking"`
	Plate         string                     `json:"plate"`
	Timestamp     time.Time                  `json:"timestamp"`
	Booking       *sighting.BookingSummary   `json:"booking,omitempty"`
	Duration      *sighting.Duration         `json:"duration,omitempty"`
	Overstay      *sighting.Overstay         `json:"overstay,omitempty"`
	SecurityAlert *security.ThreatAssessment `json:"securityAlert,omitempty"`
	ThreatID      *int64                     `json:"threatId,omitempty"`
	FireAlert     *security.FireAssessment   `json:"fireAlert,omitempty"`
	FireID        *int64                     `json:"fireId,omitempty"`
}

// SightingService sequences correlation, the detection pipelines,
// persistence and notifications for one inbound sighting. Only plate
// normalization and booking correlation are hard failures; every other
// step degrades to a log line without touching the response.
type SightingService struct {
	correlator Correlator
	threats    ThreatAssessor
	fires      FireAssessor
	detections DetectionStore
	alarms     AlarmStore
	notifier   NotificationSender
	log        zerolog.Logger
	now        func() time.Time
}

func NewSightingService(
	correlator Correlator,
	threats ThreatAssessor,
	fires FireAssessor,
	detections DetectionStore,
	alarms AlarmStore,
	notifier NotificationSender,
	log zerolog.Logger,
) *SightingService {
	return &SightingService{
		correlator: correlator,
		threats:    threats,
		fires:      fires,
		detections: detections,
		alarms:     alarms,
		notifier:   notifier,
		log:        log,
		now:        time.Now,
	}
}

// ProcessSighting handles one plate observation end to end. Re-submitting
// the same sighting creates a new record and may re-trigger notifications;
// repeated camera sightings of a lingering vehicle are meaningful, so no
// deduplication happens here.
func (s *SightingService) ProcessSighting(ctx context.Context, payload sighting.Payload) (*SightingResult, error) {
	if payload.Plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if len(payload.Plate) > 20 {
		return nil, fmt.Errorf("%w: plate must be at most 20 characters", ErrInvalidInput)
	}
	if payload.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}

	normalized := utils.NormalizePlate(payload.Plate)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate cannot be empty after normalization", ErrInvalidInput)
	}

	observedAt := s.now()
	if payload.Timestamp != nil {
		observedAt = *payload.Timestamp
	}

	metrics.SightingsTotal.Inc()

	s.log.Info().
		Str("plate", normalized).
		Str("raw_plate", payload.Plate).
		Str("address", payload.Address).
		Bool("has_image", payload.ImageBase64 != "").
		Str("camera_id", payload.CameraID).
		Msg("processing sighting")

	result := &SightingResult{
		Plate:     normalized,
		Timestamp: observedAt,
	}

	if payload.ImageBase64 != "" {
		s.runDetectionPipelines(ctx, &payload, normalized, observedAt, result)
	}

	outcome, err := s.correlator.Correlate(ctx, normalized)
	if err != nil {
		s.log.Error().Err(err).Str("plate", normalized).Msg("booking correlation failed")
		return nil, fmt.Errorf("correlate sighting: %w", err)
	}

	result.HasBooking = outcome.HasBooking
	result.Booking = outcome.Booking
	result.Duration = outcome.Duration
	result.Overstay = outcome.Overstay

	if outcome.Overstay != nil {
		metrics.OverstaysTotal.Inc()
		address := outcome.LocationAddress
		if address == "" {
			address = payload.Address
		}
		if err := s.notifier.Overstay(normalized, address, outcome.Overstay, outcome.BookingEnd, outcome.AdjustedNow, outcome.Booking.ID); err != nil {
			s.log.Error().Err(err).Str("plate", normalized).Msg("overstay notification failed (non-fatal)")
		} else {
			s.log.Info().
				Str("plate", normalized).
				Int("overstay_hours", outcome.Overstay.OverstayHours).
				Int("overstay_minutes", outcome.Overstay.OverstayMinutes).
				Float64("charge", outcome.Overstay.AdditionalCharge).
				Msg("overstay notification sent")
		}
	}

	if err := s.persistDetection(ctx, &payload, normalized, observedAt, outcome); err != nil {
		s.log.Error().Err(err).Str("plate", normalized).Msg("failed to store detection record (non-fatal)")
	}

	if outcome.IsViolation {
		metrics.ViolationsTotal.Inc()
		result.Message = "violation"
		if err := s.notifier.Violation(normalized, payload.Address, observedAt); err != nil {
			s.log.Error().Err(err).Str("plate", normalized).Msg("violation notification failed (non-fatal)")
		}
	} else {
		result.Message = "ok"
	}

	return result, nil
}

// runDetectionPipelines executes the threat and fire pipelines over the
// sighting image. Each pipeline, each record write and the fire
// notification fail independently; none can abort the sighting.
func (s *SightingService) runDetectionPipelines(ctx context.Context, payload *sighting.Payload, normalized string, observedAt time.Time, result *SightingResult) {
	image := []byte(payload.ImageBase64)

	threat := s.threats.Assess(ctx, image, detector.FormatBase64, security.VehicleContext{
		ZoneName:     payload.Zone(),
		VehicleColor: payload.VehicleColor,
		VehicleType:  payload.VehicleType,
		PlateNumber:  normalized,
	})
	if threat.HasThreat {
		metrics.ThreatsTotal.Inc()
		result.SecurityAlert = &threat

		record, err := s.buildThreatRecord(payload, normalized, observedAt, &threat)
		if err == nil {
			err = s.alarms.CreateThreat(ctx, record)
		}
		if err != nil {
			s.log.Error().Err(err).Str("plate", normalized).Msg("failed to store threat record (non-fatal)")
		} else {
			result.ThreatID = &record.ID
			s.log.Info().Int64("threat_id", record.ID).Str("plate", normalized).Msg("threat record stored")
		}
	}

	fire := s.fires.Assess(ctx, image, detector.FormatBase64)
	if !fire.HasFire {
		return
	}
	metrics.FiresTotal.Inc()
	result.FireAlert = &fire

	record, err := s.buildFireRecord(payload, normalized, observedAt, &fire)
	if err == nil {
		err = s.alarms.CreateFire(ctx, record)
	}
	if err != nil {
		s.log.Error().Err(err).Str("plate", normalized).Msg("failed to store fire record (non-fatal)")
	} else {
		result.FireID = &record.ID
		s.log.Info().Int64("fire_id", record.ID).Str("plate", normalized).Msg("fire record stored")
	}

	severity := security.FireSeverity(fire.Fires)
	if err := s.notifier.FireAlert(payload.Address, payload.Zone(), normalized, severity, fire.Fires, observedAt, payload.CameraID); err != nil {
		s.log.Error().Err(err).Str("plate", normalized).Msg("fire notification failed (non-fatal)")
	} else {
		s.log.Info().Str("severity", severity).Int("fire_count", len(fire.Fires)).Msg("fire notification sent")
	}
}

func (s *SightingService) buildThreatRecord(payload *sighting.Payload, normalized string, observedAt time.Time, threat *security.ThreatAssessment) (*repository.ThreatRecord, error) {
	findings, err := repository.MarshalFindings(threat.Threats)
	if err != nil {
		return nil, fmt.Errorf("marshal threat findings: %w", err)
	}
	zone := payload.Zone()
	return &repository.ThreatRecord{
		Timestamp:    observedAt,
		Address:      payload.Address,
		ZoneName:     &zone,
		Plate:        &normalized,
		VehicleColor: optional(payload.VehicleColor),
		VehicleType:  optional(payload.VehicleType),
		Findings:     findings,
		AlertText:    threat.AlertText,
		HasAudio:     threat.Audio.Base64 != "",
		CameraID:     optional(payload.CameraID),
		LocationID:   optional(payload.LocationID),
		ImageBase64:  optional(truncate(payload.ImageBase64, imageSnapshotLimit)),
	}, nil
}

func (s *SightingService) buildFireRecord(payload *sighting.Payload, normalized string, observedAt time.Time, fire *security.FireAssessment) (*repository.FireRecord, error) {
	findings, err := repository.MarshalFindings(fire.Fires)
	if err != nil {
		return nil, fmt.Errorf("marshal fire findings: %w", err)
	}
	zone := payload.Zone()
	return &repository.FireRecord{
		Timestamp:    observedAt,
		Address:      payload.Address,
		ZoneName:     &zone,
		Plate:        &normalized,
		VehicleColor: optional(payload.VehicleColor),
		VehicleType:  optional(payload.VehicleType),
		Findings:     findings,
		AlertText:    security.FireAlertText(payload.Zone(), len(fire.Fires)),
		HasAudio:     false,
		CameraID:     optional(payload.CameraID),
		LocationID:   optional(payload.LocationID),
		ImageBase64:  optional(truncate(payload.ImageBase64, imageSnapshotLimit)),
	}, nil
}

func (s *SightingService) persistDetection(ctx context.Context, payload *sighting.Payload, normalized string, observedAt time.Time, outcome *correlation.Result) error {
	zone := payload.Zone()
	record := &repository.DetectionRecord{
		Plate:        normalized,
		Timestamp:    observedAt,
		Address:      payload.Address,
		ZoneName:     &zone,
		VehicleColor: optional(payload.VehicleColor),
		VehicleType:  optional(payload.VehicleType),
		HasBooking:   outcome.HasBooking,
		IsViolation:  outcome.IsViolation,
		CameraID:     optional(payload.CameraID),
		LocationID:   optional(payload.LocationID),
	}
	if outcome.Booking != nil {
		record.BookingID = &outcome.Booking.ID
	}
	if d := outcome.Duration; d != nil {
		record.DurationMinutes = &d.Minutes
		record.DurationHours = &d.Hours
		record.IsWithinBooking = &d.IsWithinBooking
		record.IsOverstayed = &d.IsOverstayed
	}
	return s.detections.Create(ctx, record)
}

// AcknowledgeThreat marks a stored threat record as handled by an operator.
func (s *SightingService) AcknowledgeThreat(ctx context.Context, id int64, operator string) error {
	return s.translateAckErr(s.alarms.AcknowledgeThreat(ctx, id, operator), id)
}

// AcknowledgeFire marks a stored fire record as handled by an operator.
func (s *SightingService) AcknowledgeFire(ctx context.Context, id int64, operator string) error {
	return s.translateAckErr(s.alarms.AcknowledgeFire(ctx, id, operator), id)
}

func (s *SightingService) translateAckErr(err error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: record %d", ErrNotFound, id)
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
