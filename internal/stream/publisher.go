package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"parkwatch-service/internal/metrics"
	"parkwatch-service/internal/repository"
)

type DetectionSource interface {
	FindAfter(ctx context.Context, cursor int64, limit int) ([]repository.DetectionRecord, error)
	Ping(ctx context.Context) error
}

type ThreatSource interface {
	FindThreatsAfter(ctx context.Context, cursor int64, limit int) ([]repository.ThreatRecord, error)
}

// Event is one change-feed message. Type is one of connected, detection,
// threat, heartbeat, error.
type Event struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Data      any    `json:"data,omitempty"`
	// Lag marks a poll that returned a full batch; more rows are already
	// waiting behind the cursor.
	Lag bool `json:"lag,omitempty"`
}

type DetectionEvent struct {
	ID          int64     `json:"id"`
	Plate       string    `json:"plate"`
	Timestamp   time.Time `json:"timestamp"`
	Address     string    `json:"address"`
	HasBooking  bool      `json:"hasBooking"`
	IsViolation bool      `json:"isViolation"`
}

type ThreatEvent struct {
	ID        int64           `json:"id"`
	Plate     *string         `json:"plate,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Address   string          `json:"address"`
	Threats   json.RawMessage `json:"threats"`
	AlertText string          `json:"alertText"`
}

// Sink delivers one event to the connected client. A sink error means the
// client is gone and the stream must end.
type Sink func(Event) error

// Cursors are the client's resume tokens. A zero cursor replays the feed
// from the start of the dataset; clients that only want new records must
// pass the last ids they have already seen.
type Cursors struct {
	LastDetectionID int64
	LastThreatID    int64
}

// Publisher republishes newly persisted detection and threat records to one
// connected client by polling past its cursors. Each record is emitted at
// most once: the cursors only ever advance past records already delivered.
type Publisher struct {
	detections        DetectionSource
	threats           ThreatSource
	heartbeatInterval time.Duration
	batchSize         int
	log               zerolog.Logger
}

func NewPublisher(detections DetectionSource, threats ThreatSource, heartbeatInterval time.Duration, batchSize int, log zerolog.Logger) *Publisher {
	return &Publisher{
		detections:        detections,
		threats:           threats,
		heartbeatInterval: heartbeatInterval,
		batchSize:         batchSize,
		log:               log,
	}
}

// Serve runs one client's stream until the context is cancelled or the sink
// fails. Both interval timers are released together on every exit path.
func (p *Publisher) Serve(ctx context.Context, clientID string, cursors Cursors, pollInterval time.Duration, sink Sink) error {
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	p.log.Info().
		Str("client_id", clientID).
		Int64("last_detection_id", cursors.LastDetectionID).
		Int64("last_threat_id", cursors.LastThreatID).
		Dur("poll_interval", pollInterval).
		Msg("change-feed client connected")
	defer p.log.Info().Str("client_id", clientID).Msg("change-feed client disconnected")

	if err := sink(Event{Type: "connected", Message: "Real-time stream connected", Mode: "polling"}); err != nil {
		return err
	}

	if err := p.detections.Ping(ctx); err != nil {
		p.log.Error().Err(err).Str("client_id", clientID).Msg("change-feed store unreachable")
		// Best effort: the client gets one error event before the close.
		_ = sink(Event{Type: "error", Message: "Database connection failed"})
		return err
	}

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	heartbeatTicker := time.NewTicker(p.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-pollTicker.C:
			if err := p.poll(ctx, clientID, &cursors, sink); err != nil {
				return err
			}

		case <-heartbeatTicker.C:
			if err := sink(Event{Type: "heartbeat", Timestamp: time.Now().Format(time.RFC3339)}); err != nil {
				return err
			}
		}
	}
}

// poll emits one batch of detections, then one batch of threats. Query
// failures surface as an error event and the stream keeps running; only a
// dead sink ends it.
func (p *Publisher) poll(ctx context.Context, clientID string, cursors *Cursors, sink Sink) error {
	detections, err := p.detections.FindAfter(ctx, cursors.LastDetectionID, p.batchSize)
	if err != nil {
		p.log.Error().Err(err).Str("client_id", clientID).Msg("detection poll failed")
		return sink(Event{Type: "error", Message: "Polling failed"})
	}
	for _, record := range detections {
		event := Event{
			Type: "detection",
			Data: DetectionEvent{
				ID:          record.ID,
				Plate:       record.Plate,
				Timestamp:   record.Timestamp,
				Address:     record.Address,
				HasBooking:  record.HasBooking,
				IsViolation: record.IsViolation,
			},
			Lag: len(detections) == p.batchSize,
		}
		if err := sink(event); err != nil {
			return err
		}
		cursors.LastDetectionID = record.ID
	}

	threats, err := p.threats.FindThreatsAfter(ctx, cursors.LastThreatID, p.batchSize)
	if err != nil {
		p.log.Error().Err(err).Str("client_id", clientID).Msg("threat poll failed")
		return sink(Event{Type: "error", Message: "Polling failed"})
	}
	for _, record := range threats {
		event := Event{
			Type: "threat",
			Data: ThreatEvent{
				ID:        record.ID,
				Plate:     record.Plate,
				Timestamp: record.Timestamp,
				Address:   record.Address,
				Threats:   json.RawMessage(record.Findings),
				AlertText: record.AlertText,
			},
			Lag: len(threats) == p.batchSize,
		}
		if err := sink(event); err != nil {
			return err
		}
		cursors.LastThreatID = record.ID
	}

	return nil
}
