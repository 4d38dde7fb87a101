package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwatch-service/internal/config"
	"parkwatch-service/internal/repository"
	"parkwatch-service/internal/stream"
)

type stubFeedSource struct {
	detections []repository.DetectionRecord
}

func (s *stubFeedSource) FindAfter(ctx context.Context, cursor int64, limit int) ([]repository.DetectionRecord, error) {
	var out []repository.DetectionRecord
	for _, r := range s.detections {
		if r.ID > cursor {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *stubFeedSource) FindThreatsAfter(ctx context.Context, cursor int64, limit int) ([]repository.ThreatRecord, error) {
	return nil, nil
}

func (s *stubFeedSource) Ping(ctx context.Context) error {
	return nil
}

func newStreamRouter(records ...repository.DetectionRecord) *gin.Engine {
	gin.SetMode(gin.TestMode)
	src := &stubFeedSource{detections: records}
	publisher := stream.NewPublisher(src, src, time.Hour, 10, zerolog.Nop())
	cfg := &config.Config{
		Server: config.ServerConfig{APIKey: testAPIKey},
		Stream: config.StreamConfig{PollInterval: 5 * time.Millisecond},
	}
	h := NewHandler(
		&fakeProcessor{}, &fakeThreatAssessor{}, &fakeFireAssessor{},
		&fakeSynthesizer{}, &fakeAcknowledger{}, publisher, cfg, zerolog.Nop(),
	)
	r := gin.New()
	h.Register(r)
	return r
}

func streamEvents(t *testing.T, body string) []stream.Event {
	t.Helper()
	var events []stream.Event
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event stream.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestStreamChangesServesSSE(t *testing.T) {
	router := newStreamRouter(
		repository.DetectionRecord{ID: 1, Plate: "ka01ab1234", Address: "12 Dock Rd"},
		repository.DetectionRecord{ID: 2, Plate: "ka01ab1234", Address: "12 Dock Rd"},
		repository.DetectionRecord{ID: 3, Plate: "mh12cd5678", Address: "12 Dock Rd", IsViolation: true},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/realtime?lastDetectionId=1&interval=5", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	events := streamEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "connected", events[0].Type)

	var ids []float64
	for _, e := range events {
		if e.Type == "detection" {
			data := e.Data.(map[string]any)
			ids = append(ids, data["id"].(float64))
		}
	}
	// The lastDetectionId cursor skips record 1.
	assert.Equal(t, []float64{2, 3}, ids)
}

func TestStreamChangesIgnoresBadCursor(t *testing.T) {
	router := newStreamRouter(
		repository.DetectionRecord{ID: 1, Plate: "ka01ab1234", Address: "12 Dock Rd"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/realtime?lastDetectionId=junk&interval=5", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var sawFirst bool
	for _, e := range streamEvents(t, rec.Body.String()) {
		if e.Type == "detection" {
			sawFirst = true
		}
	}
	// An unparseable cursor falls back to zero and replays from the start.
	assert.True(t, sawFirst)
}

func TestParseCursor(t *testing.T) {
	assert.Equal(t, int64(0), parseCursor(""))
	assert.Equal(t, int64(0), parseCursor("junk"))
	assert.Equal(t, int64(0), parseCursor("-5"))
	assert.Equal(t, int64(42), parseCursor("42"))
}
