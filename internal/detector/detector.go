package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ImageFormat identifies how the image payload passed to Detect is encoded.
type ImageFormat string

const (
	FormatBase64 ImageFormat = "base64"
	FormatBytes  ImageFormat = "bytes"
	FormatURL    ImageFormat = "url"
)

type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   Box     `json:"box"`
}

// Config selects the model and filtering rules for one detection domain.
type Config struct {
	Model string
	// Keywords are matched as substrings of the lowercased label.
	Keywords []string
	// Threshold is the minimum score any detection must exceed.
	Threshold float64
	// FallbackThreshold accepts detections whose label matches no keyword
	// when the score alone is convincing enough.
	FallbackThreshold float64
}

// Client calls an external object-detection inference endpoint and
// normalizes its heterogeneous response shapes into a flat detection list.
// Transport failures, cold-start responses and unparseable bodies all
// degrade to an empty list; absence of detections is never an error to the
// caller.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// Detect runs one inference call and returns the filtered detection list.
func (c *Client) Detect(ctx context.Context, image []byte, format ImageFormat, cfg Config) []Detection {
	if c.token == "" {
		c.log.Warn().Str("model", cfg.Model).Msg("inference token not configured, skipping detection")
		return nil
	}

	input := encodeImageInput(image, format)

	raw, err := c.query(ctx, cfg.Model, input)
	if err != nil {
		c.log.Error().Err(err).Str("model", cfg.Model).Msg("detection request failed")
		return nil
	}
	if raw == nil {
		// Model cold start, treated as no detections.
		return nil
	}

	detections, ok := parseDetections(raw)
	if !ok {
		c.log.Error().Str("model", cfg.Model).Msg("unrecognized detection response shape")
		return nil
	}

	return filterDetections(detections, cfg)
}

func encodeImageInput(image []byte, format ImageFormat) string {
	switch format {
	case FormatURL:
		return string(image)
	case FormatBytes:
		return base64.StdEncoding.EncodeToString(image)
	default:
		return dataURLPrefix.ReplaceAllString(string(image), "")
	}
}

func (c *Client) query(ctx context.Context, model, input string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"inputs": input})
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		c.log.Warn().Str("model", model).Msg("inference model is still loading")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference returned %d: %s", resp.StatusCode, string(detail))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	return raw, nil
}

func filterDetections(detections []Detection, cfg Config) []Detection {
	var kept []Detection
	for _, d := range detections {
		if d.Score <= cfg.Threshold {
			continue
		}
		if matchesKeyword(d.Label, cfg.Keywords) || d.Score > cfg.FallbackThreshold {
			kept = append(kept, d)
		}
	}
	return kept
}

func matchesKeyword(label string, keywords []string) bool {
	label = strings.ToLower(label)
	for _, kw := range keywords {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}
