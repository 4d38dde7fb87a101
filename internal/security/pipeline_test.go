package security

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"parkwatch-service/internal/detector"
)

type stubDetector struct {
	detections []detector.Detection
}

func (s *stubDetector) Detect(ctx context.Context, image []byte, format detector.ImageFormat, cfg detector.Config) []detector.Detection {
	return s.detections
}

type stubSynthesizer struct {
	audio  AudioPayload
	err    error
	called int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string) (AudioPayload, error) {
	s.called++
	return s.audio, s.err
}

func TestThreatPipelineNoFindingsSkipsSynthesis(t *testing.T) {
	tts := &stubSynthesizer{}
	p := NewThreatPipeline(&stubDetector{}, tts, "m", 0.3, 0.7, zerolog.Nop())

	result := p.Assess(context.Background(), []byte("img"), detector.FormatBase64, VehicleContext{ZoneName: "Gate 1"})

	assert.False(t, result.HasThreat)
	assert.Empty(t, result.Threats)
	assert.Empty(t, result.AlertText)
	assert.Equal(t, "", result.Audio.Base64)
	assert.Equal(t, 0, tts.called)
}

func TestThreatPipelinePositiveFinding(t *testing.T) {
	tts := &stubSynthesizer{audio: AudioPayload{Base64: "YXVkaW8=", MimeType: "audio/wav"}}
	det := &stubDetector{detections: []detector.Detection{{Label: "gun", Score: 0.9}}}
	p := NewThreatPipeline(det, tts, "m", 0.3, 0.7, zerolog.Nop())

	result := p.Assess(context.Background(), []byte("img"), detector.FormatBase64, VehicleContext{ZoneName: "Gate 1"})

	assert.True(t, result.HasThreat)
	assert.Len(t, result.Threats, 1)
	assert.Contains(t, result.AlertText, "Possible gun detected.")
	assert.Equal(t, "YXVkaW8=", result.Audio.Base64)
	assert.Equal(t, 1, tts.called)
}

func TestThreatPipelineSynthesisFailureKeepsFinding(t *testing.T) {
	tts := &stubSynthesizer{err: errors.New("model unavailable")}
	det := &stubDetector{detections: []detector.Detection{{Label: "knife", Score: 0.8}}}
	p := NewThreatPipeline(det, tts, "m", 0.3, 0.7, zerolog.Nop())

	result := p.Assess(context.Background(), []byte("img"), detector.FormatBase64, VehicleContext{ZoneName: "Gate 1"})

	assert.True(t, result.HasThreat)
	assert.NotEmpty(t, result.AlertText)
	assert.Equal(t, "", result.Audio.Base64)
	assert.Equal(t, "audio/wav", result.Audio.MimeType)
}

func TestFirePipelineAssess(t *testing.T) {
	det := &stubDetector{detections: []detector.Detection{{Label: "flame", Score: 0.6}}}
	p := NewFirePipeline(det, "m", 0.2, 0.7, zerolog.Nop())

	result := p.Assess(context.Background(), []byte("img"), detector.FormatBase64)
	assert.True(t, result.HasFire)
	assert.Len(t, result.Fires, 1)

	empty := NewFirePipeline(&stubDetector{}, "m", 0.2, 0.7, zerolog.Nop())
	assert.False(t, empty.Assess(context.Background(), []byte("img"), detector.FormatBase64).HasFire)
}

func TestFireSeverity(t *testing.T) {
	tests := []struct {
		name  string
		fires []detector.Detection
		want  string
	}{
		{"critical above 0.8", []detector.Detection{{Score: 0.81}}, "CRITICAL"},
		{"high above 0.5", []detector.Detection{{Score: 0.6}, {Score: 0.3}}, "HIGH"},
		{"medium otherwise", []detector.Detection{{Score: 0.5}}, "MEDIUM"},
		{"medium when empty", nil, "MEDIUM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FireSeverity(tt.fires))
		})
	}
}

func TestFireAlertText(t *testing.T) {
	assert.Equal(t, "Fire detected at Gate 2. 3 fire instance(s) detected.", FireAlertText("Gate 2", 3))
}
