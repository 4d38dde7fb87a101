package security

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"parkwatch-service/internal/detector"
)

var fireKeywords = []string{"fire", "flame", "smoke", "burning", "blaze", "flames"}

type FireAssessment struct {
	HasFire bool                 `json:"hasFire"`
	Fires   []detector.Detection `json:"fires"`
}

// FirePipeline runs fire/smoke detection over a sighting image. Its
// threshold defaults lower than the threat pipeline's to favor recall.
type FirePipeline struct {
	detector ObjectDetector
	cfg      detector.Config
	log      zerolog.Logger
}

func NewFirePipeline(det ObjectDetector, model string, threshold, fallback float64, log zerolog.Logger) *FirePipeline {
	return &FirePipeline{
		detector: det,
		cfg: detector.Config{
			Model:             model,
			Keywords:          fireKeywords,
			Threshold:         threshold,
			FallbackThreshold: fallback,
		},
		log: log,
	}
}

func (p *FirePipeline) Assess(ctx context.Context, image []byte, format detector.ImageFormat) FireAssessment {
	fires := p.detector.Detect(ctx, image, format, p.cfg)
	if len(fires) > 0 {
		p.log.Info().Int("fire_count", len(fires)).Msg("fire detected")
	}
	return FireAssessment{
		HasFire: len(fires) > 0,
		Fires:   fires,
	}
}

// FireSeverity classifies a fire finding set by its strongest confidence.
func FireSeverity(fires []detector.Detection) string {
	var highest float64
	for _, f := range fires {
		if f.Score > highest {
			highest = f.Score
		}
	}
	switch {
	case highest > 0.8:
		return "CRITICAL"
	case highest > 0.5:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}

// FireAlertText renders the stored alert line for a fire record.
func FireAlertText(zone string, count int) string {
	return fmt.Sprintf("Fire detected at %s. %d fire instance(s) detected.", zone, count)
}
