package detector

import (
	"encoding/json"
)

// The inference endpoint answers in one of several shapes depending on the
// model: a bare array of detections, an object wrapping them under
// "predictions" or "results", or parallel boxes/labels/scores arrays. Each
// shape has a matcher; the first one that applies wins.

type shapeMatcher func(json.RawMessage) ([]Detection, bool)

var shapeMatchers = []shapeMatcher{
	matchBareArray,
	matchPredictions,
	matchResults,
	matchParallelArrays,
}

func parseDetections(raw json.RawMessage) ([]Detection, bool) {
	for _, match := range shapeMatchers {
		if detections, ok := match(raw); ok {
			return detections, true
		}
	}
	return nil, false
}

func matchBareArray(raw json.RawMessage) ([]Detection, bool) {
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return convertItems(items), true
}

func matchPredictions(raw json.RawMessage) ([]Detection, bool) {
	return matchWrapped(raw, "predictions")
}

func matchResults(raw json.RawMessage) ([]Detection, bool) {
	return matchWrapped(raw, "results")
}

func matchWrapped(raw json.RawMessage, key string) ([]Detection, bool) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	inner, ok := wrapper[key]
	if !ok {
		return nil, false
	}
	var items []map[string]any
	if err := json.Unmarshal(inner, &items); err != nil {
		// Some models wrap a single object rather than an array.
		var single map[string]any
		if err := json.Unmarshal(inner, &single); err != nil {
			return nil, false
		}
		items = []map[string]any{single}
	}
	return convertItems(items), true
}

// matchParallelArrays handles the YOLO-style split encoding where boxes,
// labels and scores arrive as separate same-length arrays.
func matchParallelArrays(raw json.RawMessage) ([]Detection, bool) {
	var wrapper struct {
		Boxes  []json.RawMessage `json:"boxes"`
		Labels []string          `json:"labels"`
		Scores []float64         `json:"scores"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	if len(wrapper.Boxes) == 0 && len(wrapper.Labels) == 0 {
		return nil, false
	}

	detections := make([]Detection, 0, len(wrapper.Boxes))
	for i, rawBox := range wrapper.Boxes {
		d := Detection{Label: "unknown", Score: 0.5}
		if i < len(wrapper.Labels) {
			d.Label = wrapper.Labels[i]
		}
		if i < len(wrapper.Scores) {
			d.Score = wrapper.Scores[i]
		}
		d.Box = convertRawBox(rawBox)
		detections = append(detections, d)
	}
	return detections, true
}

func convertItems(items []map[string]any) []Detection {
	detections := make([]Detection, 0, len(items))
	for _, item := range items {
		detections = append(detections, convertItem(item))
	}
	return detections
}

func convertItem(item map[string]any) Detection {
	d := Detection{
		Label: pickString(item, "label", "class", "name"),
		Score: pickNumber(item, "score", "confidence", "probability"),
	}
	if d.Label == "" {
		d.Label = "unknown"
	}
	if box, ok := pickMap(item, "box", "bbox", "bounding_box"); ok {
		d.Box = convertBox(box)
	}
	return d
}

// convertBox normalizes either the corner encoding (xmin/ymin/xmax/ymax,
// with x1/y1/x2/y2 and left/top/right/bottom aliases) or the extent
// encoding (x/y/width/height) into x/y/width/height.
func convertBox(box map[string]any) Box {
	x := pickNumber(box, "xmin", "x", "x1", "left")
	y := pickNumber(box, "ymin", "y", "y1", "top")

	out := Box{X: x, Y: y}
	if xmax, ok := pickNumberOK(box, "xmax", "x2", "right"); ok {
		out.Width = xmax - x
	} else if w, ok := pickNumberOK(box, "width"); ok {
		out.Width = w
	}
	if ymax, ok := pickNumberOK(box, "ymax", "y2", "bottom"); ok {
		out.Height = ymax - y
	} else if h, ok := pickNumberOK(box, "height"); ok {
		out.Height = h
	}
	return out
}

func convertRawBox(raw json.RawMessage) Box {
	// Corner quadruple [xmin, ymin, xmax, ymax].
	var corners []float64
	if err := json.Unmarshal(raw, &corners); err == nil && len(corners) == 4 {
		return Box{
			X:      corners[0],
			Y:      corners[1],
			Width:  corners[2] - corners[0],
			Height: corners[3] - corners[1],
		}
	}
	var box map[string]any
	if err := json.Unmarshal(raw, &box); err == nil {
		return convertBox(box)
	}
	return Box{}
}

func pickString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func pickNumber(m map[string]any, keys ...string) float64 {
	v, _ := pickNumberOK(m, keys...)
	return v
}

func pickNumberOK(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := m[key].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

func pickMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		if v, ok := m[key].(map[string]any); ok {
			return v, true
		}
	}
	return nil, false
}
