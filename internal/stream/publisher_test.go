package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwatch-service/internal/repository"
)

type fakeFeedStore struct {
	mu         sync.Mutex
	detections []repository.DetectionRecord
	threats    []repository.ThreatRecord
	pingErr    error
	pollErrs   int
}

func (f *fakeFeedStore) FindAfter(ctx context.Context, cursor int64, limit int) ([]repository.DetectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErrs > 0 {
		f.pollErrs--
		return nil, errors.New("query failed")
	}
	var out []repository.DetectionRecord
	for _, r := range f.detections {
		if r.ID > cursor {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeFeedStore) FindThreatsAfter(ctx context.Context, cursor int64, limit int) ([]repository.ThreatRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ThreatRecord
	for _, r := range f.threats {
		if r.ID > cursor {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeFeedStore) Ping(ctx context.Context) error {
	return f.pingErr
}

type eventCollector struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

func (c *eventCollector) sink(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.events = append(c.events, e)
	return nil
}

func (c *eventCollector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func detectionRecords(ids ...int64) []repository.DetectionRecord {
	var out []repository.DetectionRecord
	for _, id := range ids {
		out = append(out, repository.DetectionRecord{ID: id, Plate: "ka01ab1234", Address: "12 Dock Rd"})
	}
	return out
}

func serveFor(t *testing.T, p *Publisher, cursors Cursors, collector *eventCollector, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.Serve(ctx, "client-1", cursors, 5*time.Millisecond, collector.sink)
}

func TestServeEmitsConnectedFirst(t *testing.T) {
	store := &fakeFeedStore{}
	p := NewPublisher(store, store, time.Hour, 10, zerolog.Nop())
	collector := &eventCollector{}

	err := serveFor(t, p, Cursors{}, collector, 30*time.Millisecond)
	require.NoError(t, err)

	events := collector.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, "connected", events[0].Type)
	assert.Equal(t, "polling", events[0].Mode)
}

func TestServeUnreachableStoreEndsStream(t *testing.T) {
	store := &fakeFeedStore{pingErr: errors.New("connection refused")}
	p := NewPublisher(store, store, time.Hour, 10, zerolog.Nop())
	collector := &eventCollector{}

	err := serveFor(t, p, Cursors{}, collector, 100*time.Millisecond)
	require.Error(t, err)

	events := collector.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].Type)
	assert.Equal(t, "Database connection failed", events[1].Message)
}

func TestServeEmitsEachRecordOnce(t *testing.T) {
	store := &fakeFeedStore{
		detections: detectionRecords(1, 2, 3),
		threats: []repository.ThreatRecord{
			{ID: 1, Address: "12 Dock Rd", Findings: []byte(`[]`), AlertText: "Attention security."},
			{ID: 2, Address: "12 Dock Rd", Findings: []byte(`[]`), AlertText: "Attention security."},
		},
	}
	p := NewPublisher(store, store, time.Hour, 10, zerolog.Nop())
	collector := &eventCollector{}

	// Long enough for many polls; every record must still appear exactly once.
	err := serveFor(t, p, Cursors{}, collector, 60*time.Millisecond)
	require.NoError(t, err)

	seenDetections := map[int64]int{}
	seenThreats := map[int64]int{}
	for _, e := range collector.snapshot() {
		switch e.Type {
		case "detection":
			seenDetections[e.Data.(DetectionEvent).ID]++
		case "threat":
			seenThreats[e.Data.(ThreatEvent).ID]++
		}
	}

	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, seenDetections)
	assert.Equal(t, map[int64]int{1: 1, 2: 1}, seenThreats)
}

func TestServeZeroCursorsReplayDataset(t *testing.T) {
	// Rows persisted before the client connected are replayed to a client
	// presenting zero cursors, oldest first.
	store := &fakeFeedStore{detections: detectionRecords(1, 2, 3)}
	p := NewPublisher(store, store, time.Hour, 10, zerolog.Nop())
	collector := &eventCollector{}

	err := serveFor(t, p, Cursors{}, collector, 30*time.Millisecond)
	require.NoError(t, err)

	var ids []int64
	for _, e := range collector.snapshot() {
		if e.Type == "detection" {
			ids = append(ids, e.Data.(DetectionEvent).ID)
		}
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestServeHeartbeatWithoutDataActivity(t *testing.T) {
	store := &fakeFeedStore{}
	p := NewPublisher(store, store, 10*time.Millisecond, 10, zerolog.Nop())
	collector := &eventCollector{}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	// Polling is effectively disabled; only heartbeats can tick.
	err := p.Serve(ctx, "client-1", Cursors{}, time.Hour, collector.sink)
	require.NoError(t, err)

	var heartbeats int
	for _, e := range collector.snapshot() {
		if e.Type != "heartbeat" {
			continue
		}
		heartbeats++
		_, parseErr := time.Parse(time.RFC3339, e.Timestamp)
		assert.NoError(t, parseErr)
	}
	assert.GreaterOrEqual(t, heartbeats, 1)
}

func TestServeResumesPastCursor(t *testing.T) {
	store := &fakeFeedStore{detections: detectionRecords(1, 2, 3)}
	p := NewPublisher(store, store, time.Hour, 10, zerolog.Nop())
	collector := &eventCollector{}

	err := serveFor(t, p, Cursors{LastDetectionID: 2}, collector, 30*time.Millisecond)
	require.NoError(t, err)

	var ids []int64
	for _, e := range collector.snapshot() {
		if e.Type == "detection" {
			ids = append(ids, e.Data.(DetectionEvent).ID)
		}
	}
	assert.Equal(t, []int64{3}, ids)
}

func TestServeFlagsLagOnFullBatch(t *testing.T) {
	store := &fakeFeedStore{detections: detectionRecords(1, 2, 3)}
	p := NewPublisher(store, store, time.Hour, 2, zerolog.Nop())
	collector := &eventCollector{}

	err := serveFor(t, p, Cursors{}, collector, 60*time.Millisecond)
	require.NoError(t, err)

	byID := map[int64]bool{}
	for _, e := range collector.snapshot() {
		if e.Type == "detection" {
			byID[e.Data.(DetectionEvent).ID] = e.Lag
		}
	}
	require.Len(t, byID, 3)
	assert.True(t, byID[1])
	assert.True(t, byID[2])
	// The trailing partial batch carries no lag marker.
	assert.False(t, byID[3])
}

func TestServeSurvivesPollFailure(t *testing.T) {
	store := &fakeFeedStore{
		detections: detectionRecords(1),
		pollErrs:   1,
	}
	p := NewPublisher(store, store, time.Hour, 10, zerolog.Nop())
	collector := &eventCollector{}

	err := serveFor(t, p, Cursors{}, collector, 60*time.Millisecond)
	require.NoError(t, err)

	var sawError, sawDetection bool
	for _, e := range collector.snapshot() {
		switch e.Type {
		case "error":
			assert.Equal(t, "Polling failed", e.Message)
			sawError = true
		case "detection":
			sawDetection = true
		}
	}
	assert.True(t, sawError)
	// The next poll after the failure still delivers the record.
	assert.True(t, sawDetection)
}

func TestServeDeadSinkEndsStream(t *testing.T) {
	store := &fakeFeedStore{}
	p := NewPublisher(store, store, time.Hour, 10, zerolog.Nop())
	collector := &eventCollector{fail: errors.New("client gone")}

	err := serveFor(t, p, Cursors{}, collector, 100*time.Millisecond)
	require.EqualError(t, err, "client gone")
}
