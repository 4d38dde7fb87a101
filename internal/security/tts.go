package security

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type AudioPayload struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
}

func emptyAudio() AudioPayload {
	return AudioPayload{Base64: "", MimeType: "audio/wav"}
}

// SpeechSynthesizer turns alert text into audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (AudioPayload, error)
}

// TTSClient synthesizes speech via an external inference endpoint.
type TTSClient struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewTTSClient(baseURL, token, model string, timeout time.Duration, log zerolog.Logger) *TTSClient {
	return &TTSClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *TTSClient) Synthesize(ctx context.Context, text string) (AudioPayload, error) {
	if c.token == "" {
		c.log.Warn().Msg("inference token not configured, speech synthesis disabled")
		return emptyAudio(), fmt.Errorf("inference token not configured")
	}

	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return emptyAudio(), fmt.Errorf("marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return emptyAudio(), fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return emptyAudio(), fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return emptyAudio(), fmt.Errorf("synthesis returned %d: %s", resp.StatusCode, string(detail))
	}

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return emptyAudio(), fmt.Errorf("read synthesis response: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "audio/") {
		mimeType = "audio/wav"
	}

	return AudioPayload{
		Base64:   base64.StdEncoding.EncodeToString(audioBytes),
		MimeType: mimeType,
	}, nil
}
