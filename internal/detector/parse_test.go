package detector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBareArray(t *testing.T) {
	raw := json.RawMessage(`[
		{"label": "gun", "score": 0.91, "box": {"xmin": 10, "ymin": 20, "xmax": 110, "ymax": 70}},
		{"class": "knife", "confidence": 0.45, "bbox": {"x": 5, "y": 6, "width": 30, "height": 40}}
	]`)

	detections, ok := parseDetections(raw)
	require.True(t, ok)
	require.Len(t, detections, 2)

	assert.Equal(t, "gun", detections[0].Label)
	assert.Equal(t, 0.91, detections[0].Score)
	assert.Equal(t, Box{X: 10, Y: 20, Width: 100, Height: 50}, detections[0].Box)

	assert.Equal(t, "knife", detections[1].Label)
	assert.Equal(t, 0.45, detections[1].Score)
	assert.Equal(t, Box{X: 5, Y: 6, Width: 30, Height: 40}, detections[1].Box)
}

func TestParsePredictionsWrapper(t *testing.T) {
	raw := json.RawMessage(`{"predictions": [{"label": "fire", "score": 0.6}]}`)

	detections, ok := parseDetections(raw)
	require.True(t, ok)
	require.Len(t, detections, 1)
	assert.Equal(t, "fire", detections[0].Label)
}

func TestParseResultsWrapper(t *testing.T) {
	raw := json.RawMessage(`{"results": [{"name": "smoke", "probability": 0.55}]}`)

	detections, ok := parseDetections(raw)
	require.True(t, ok)
	require.Len(t, detections, 1)
	assert.Equal(t, "smoke", detections[0].Label)
	assert.Equal(t, 0.55, detections[0].Score)
}

func TestParseParallelArrays(t *testing.T) {
	raw := json.RawMessage(`{
		"boxes": [[0, 0, 50, 50], [10, 10, 20, 30]],
		"labels": ["fire", "smoke"],
		"scores": [0.8, 0.6]
	}`)

	detections, ok := parseDetections(raw)
	require.True(t, ok)
	require.Len(t, detections, 2)
	assert.Equal(t, "fire", detections[0].Label)
	assert.Equal(t, 0.8, detections[0].Score)
	assert.Equal(t, Box{X: 0, Y: 0, Width: 50, Height: 50}, detections[0].Box)
	assert.Equal(t, Box{X: 10, Y: 10, Width: 10, Height: 20}, detections[1].Box)
}

func TestParseParallelArraysMissingScoresDefaults(t *testing.T) {
	raw := json.RawMessage(`{"boxes": [[0, 0, 10, 10]], "labels": ["flame"]}`)

	detections, ok := parseDetections(raw)
	require.True(t, ok)
	require.Len(t, detections, 1)
	assert.Equal(t, 0.5, detections[0].Score)
}

func TestParseUnknownShape(t *testing.T) {
	_, ok := parseDetections(json.RawMessage(`{"status": "queued"}`))
	assert.False(t, ok)

	_, ok = parseDetections(json.RawMessage(`"not detections"`))
	assert.False(t, ok)
}

func TestParseFirstMatcherWins(t *testing.T) {
	// A bare array is claimed by the array matcher even when its objects
	// carry unusual keys.
	raw := json.RawMessage(`[{"weird": true}]`)
	detections, ok := parseDetections(raw)
	require.True(t, ok)
	require.Len(t, detections, 1)
	assert.Equal(t, "unknown", detections[0].Label)
	assert.Equal(t, 0.0, detections[0].Score)
}

func TestFilterDetections(t *testing.T) {
	cfg := Config{
		Keywords:          []string{"gun", "knife"},
		Threshold:         0.3,
		FallbackThreshold: 0.7,
	}
	input := []Detection{
		{Label: "gun", Score: 0.9},       // keyword + above floor
		{Label: "backpack", Score: 0.25}, // non-matching, below floor
		{Label: "backpack", Score: 0.75}, // non-matching, high-confidence fallback
		{Label: "knife", Score: 0.2},     // keyword but below floor
		{Label: "Handgun", Score: 0.5},   // lowercased label contains "gun"
	}

	kept := filterDetections(input, cfg)
	require.Len(t, kept, 3)
	assert.Equal(t, "gun", kept[0].Label)
	assert.Equal(t, "backpack", kept[1].Label)
	assert.Equal(t, "Handgun", kept[2].Label)
}
