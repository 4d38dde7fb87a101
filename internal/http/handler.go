package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"parkwatch-service/internal/config"
	"parkwatch-service/internal/domain/sighting"
	"parkwatch-service/internal/security"
	"parkwatch-service/internal/service"
	"parkwatch-service/internal/stream"
)

type SightingProcessor interface {
	ProcessSighting(ctx context.Context, payload sighting.Payload) (*service.SightingResult, error)
}

type AlarmAcknowledger interface {
	AcknowledgeThreat(ctx context.Context, id int64, operator string) error
	AcknowledgeFire(ctx context.Context, id int64, operator string) error
}

type Handler struct {
	sightings SightingProcessor
	threats   service.ThreatAssessor
	fires     service.FireAssessor
	tts       security.SpeechSynthesizer
	alarms    AlarmAcknowledger
	publisher *stream.Publisher
	config    *config.Config
	log       zerolog.Logger
}

func NewHandler(
	sightings SightingProcessor,
	threats service.ThreatAssessor,
	fires service.FireAssessor,
	tts security.SpeechSynthesizer,
	alarms AlarmAcknowledger,
	publisher *stream.Publisher,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		sightings: sightings,
		threats:   threats,
		fires:     fires,
		tts:       tts,
		alarms:    alarms,
		publisher: publisher,
		config:    cfg,
		log:       log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.OPTIONS("/plate", h.preflight)
		api.POST("/plate", TokenAuth(h.config.Server.APIKey, h.log), h.createSighting)

		api.OPTIONS("/security/alert", h.preflight)
		api.POST("/security/alert", h.assessThreat)
		api.OPTIONS("/security/fire-detection", h.preflight)
		api.POST("/security/fire-detection", h.assessFire)
		api.OPTIONS("/security/text-to-speech", h.preflight)
		api.POST("/security/text-to-speech", h.synthesizeSpeech)

		api.GET("/realtime", h.streamChanges)
	}

	protected := r.Group("/api/v1")
	protected.Use(OperatorAuth(h.config.Server.APIKey, h.log))
	{
		protected.POST("/threats/:id/acknowledge", h.acknowledgeThreat)
		protected.POST("/fires/:id/acknowledge", h.acknowledgeFire)
	}
}

// preflight answers CORS preflight probes that arrive without an Origin
// header and therefore bypass the CORS middleware.
func (h *Handler) preflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Max-Age", "86400")
	c.Status(http.StatusOK)
}

func (h *Handler) createSighting(c *gin.Context) {
	var payload sighting.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Invalid input",
			"error":   validationDetail(err),
		})
		return
	}

	result, err := h.sightings.ProcessSighting(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid input", "error": err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("failed to process sighting")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) acknowledgeThreat(c *gin.Context) {
	h.acknowledge(c, h.alarms.AcknowledgeThreat)
}

func (h *Handler) acknowledgeFire(c *gin.Context) {
	h.acknowledge(c, h.alarms.AcknowledgeFire)
}

func (h *Handler) acknowledge(c *gin.Context, ack func(context.Context, int64, string) error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid record id"))
		return
	}

	operator := c.GetString("operator")
	if err := ack(c.Request.Context(), id, operator); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("record not found"))
			return
		}
		h.log.Error().Err(err).Int64("record_id", id).Msg("failed to acknowledge record")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "acknowledged",
		"acknowledgedBy": operator,
		"acknowledgedAt": time.Now().Format(time.RFC3339),
	})
}

// validationDetail renders one "field: message" entry per violation so a
// camera integrator can see exactly which fields were rejected.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s: failed %q validation", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(details, ", ")
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
