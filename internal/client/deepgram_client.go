package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/videorecap/api/internal/config"
)

// DeepgramClient transcribes prerecorded audio with the Deepgram REST API
type DeepgramClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// DeepgramUtterance is one speaker turn with timing
type DeepgramUtterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// DeepgramResponse is the subset of /v1/listen used for transcripts
type DeepgramResponse struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []DeepgramUtterance `json:"utterances"`
	} `json:"results"`
}

// Transcript returns the first alternative of the first channel
func (r *DeepgramResponse) Transcript() string {
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return r.Results.Channels[0].Alternatives[0].Transcript
}

// Language returns the detected language, if any
func (r *DeepgramResponse) Language() string {
	if len(r.Results.Channels) == 0 {
		return ""
	}
	return r.Results.Channels[0].DetectedLanguage
}

// NewDeepgramClient creates a new Deepgram API client
func NewDeepgramClient(cfg *config.DeepgramConfig) *DeepgramClient {
	return &DeepgramClient{
		httpClient: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *DeepgramClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Transcribe posts raw audio bytes and returns utterance-level results
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (*DeepgramResponse, error) {
	if !c.IsConfigured() {
		return nil, &ConfigError{Provider: "deepgram"}
	}

	ctx, span := tracer.Start(ctx, "deepgram.listen")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.audio_bytes", len(audio)),
	)

	q := url.Values{}
	q.Set("model", c.model)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	q.Set("utterances", "true")
	if language != "" {
		q.Set("language", language)
	} else {
		q.Set("detect_language", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/listen?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to send request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: "deepgram", StatusCode: resp.StatusCode, Body: string(respBody)}
		span.RecordError(apiErr)
		return nil, apiErr
	}

	var dr DeepgramResponse
	if err := json.Unmarshal(respBody, &dr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &dr, nil
}
