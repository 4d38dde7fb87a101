package security

import (
	"context"

	"github.com/rs/zerolog"

	"parkwatch-service/internal/detector"
)

// Labels emitted by the weapon-detection models.
var threatKeywords = []string{"gun", "handgun", "pistol", "rifle", "knife", "weapon", "firearm"}

// ObjectDetector is the slice of the detector client the pipelines use.
type ObjectDetector interface {
	Detect(ctx context.Context, image []byte, format detector.ImageFormat, cfg detector.Config) []detector.Detection
}

type ThreatAssessment struct {
	HasThreat bool                 `json:"hasThreat"`
	Threats   []detector.Detection `json:"threats"`
	AlertText string               `json:"alertText"`
	Audio     AudioPayload         `json:"audio"`
}

// ThreatPipeline runs weapon detection over a sighting image and, on a
// positive finding, produces a spoken alert.
type ThreatPipeline struct {
	detector ObjectDetector
	tts      SpeechSynthesizer
	cfg      detector.Config
	log      zerolog.Logger
}

func NewThreatPipeline(det ObjectDetector, tts SpeechSynthesizer, model string, threshold, fallback float64, log zerolog.Logger) *ThreatPipeline {
	return &ThreatPipeline{
		detector: det,
		tts:      tts,
		cfg: detector.Config{
			Model:             model,
			Keywords:          threatKeywords,
			Threshold:         threshold,
			FallbackThreshold: fallback,
		},
		log: log,
	}
}

// Assess runs detection and alert generation. With no findings it returns
// immediately without touching the synthesizer. A synthesis failure never
// suppresses the finding itself; the assessment still carries the alert
// text with empty audio.
func (p *ThreatPipeline) Assess(ctx context.Context, image []byte, format detector.ImageFormat, vehicle VehicleContext) ThreatAssessment {
	threats := p.detector.Detect(ctx, image, format, p.cfg)
	if len(threats) == 0 {
		return ThreatAssessment{
			HasThreat: false,
			Threats:   []detector.Detection{},
			Audio:     emptyAudio(),
		}
	}

	alertText := BuildAlertText(threats, vehicle)

	audio, err := p.tts.Synthesize(ctx, alertText)
	if err != nil {
		p.log.Warn().Err(err).Msg("speech synthesis failed, returning alert text only")
		audio = emptyAudio()
	}

	p.log.Info().
		Int("threat_count", len(threats)).
		Str("zone", vehicle.ZoneName).
		Str("plate", vehicle.PlateNumber).
		Msg("threat detected")

	return ThreatAssessment{
		HasThreat: true,
		Threats:   threats,
		AlertText: alertText,
		Audio:     audio,
	}
}
