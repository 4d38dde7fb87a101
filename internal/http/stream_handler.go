package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parkwatch-service/internal/stream"
)

// streamChanges serves the change feed as a long-lived SSE connection. The
// client may resume with lastDetectionId / lastThreatId cursors and tune
// the poll cadence with an interval (milliseconds) parameter.
func (h *Handler) streamChanges(c *gin.Context) {
	cursors := stream.Cursors{
		LastDetectionID: parseCursor(c.Query("lastDetectionId")),
		LastThreatID:    parseCursor(c.Query("lastThreatId")),
	}

	pollInterval := h.config.Stream.PollInterval
	if raw := c.Query("interval"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			pollInterval = time.Duration(ms) * time.Millisecond
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse("streaming unsupported"))
		return
	}

	sink := func(event stream.Event) error {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal stream event: %w", err)
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return fmt.Errorf("write stream event: %w", err)
		}
		flusher.Flush()
		return nil
	}

	clientID := uuid.NewString()
	if err := h.publisher.Serve(c.Request.Context(), clientID, cursors, pollInterval, sink); err != nil {
		h.log.Debug().Err(err).Str("client_id", clientID).Msg("change-feed stream ended")
	}
}

func parseCursor(raw string) int64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
