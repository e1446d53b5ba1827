package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/videorecap/api/internal/config"
)

// GroqClient handles communication with the Groq OpenAI-compatible API
type GroqClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	chatModel    string
	whisperModel string
}

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tunes a single completion
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat requests structured output from the model
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema names the schema the response must satisfy
type JSONSchema struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TranscriptionSegment is one timed segment of a verbose_json transcription
type TranscriptionSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResponse is the verbose_json body of /audio/transcriptions
type TranscriptionResponse struct {
	Text     string                 `json:"text"`
	Language string                 `json:"language"`
	Duration float64                `json:"duration"`
	Segments []TranscriptionSegment `json:"segments"`
}

// NewGroqClient creates a new Groq API client
func NewGroqClient(cfg *config.GroqConfig) *GroqClient {
	return &GroqClient{
		httpClient: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		chatModel:    cfg.ChatModel,
		whisperModel: cfg.WhisperModel,
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}

// StructuredCompletion asks for output that satisfies schema and returns
// the raw JSON content
func (c *GroqClient) StructuredCompletion(ctx context.Context, system, user string, schema *JSONSchema, opts ChatOptions) (string, error) {
	return c.complete(ctx, ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_schema", JSONSchema: schema},
	})
}

// SchemaFor reflects the JSON schema of T for structured output
func SchemaFor[T any]() *JSONSchema {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return &JSONSchema{
		Name:   typ.Name(),
		Schema: reflector.ReflectFromType(typ),
		Strict: true,
	}
}

func (c *GroqClient) complete(ctx context.Context, reqBody ChatCompletionRequest) (string, error) {
	if !c.IsConfigured() {
		return "", &ConfigError{Provider: "groq"}
	}

	ctx, span := tracer.Start(ctx, "groq.chat_completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", reqBody.Model),
		attribute.Bool("request.structured", reqBody.ResponseFormat != nil),
	)

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	respBody, err := c.do(req, span)
	if err != nil {
		return "", err
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	span.SetAttributes(attribute.Int("response.total_tokens", chatResp.Usage.TotalTokens))
	return chatResp.Choices[0].Message.Content, nil
}

// Transcribe uploads one audio file to the Whisper endpoint
func (c *GroqClient) Transcribe(ctx context.Context, filename string, audio []byte, language string) (*TranscriptionResponse, error) {
	if !c.IsConfigured() {
		return nil, &ConfigError{Provider: "groq"}
	}

	ctx, span := tracer.Start(ctx, "groq.transcription")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.whisperModel),
		attribute.Int("request.audio_bytes", len(audio)),
	)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	fields := map[string]string{
		"model":                     c.whisperModel,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	respBody, err := c.do(req, span)
	if err != nil {
		return nil, err
	}

	var tr TranscriptionResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcription: %w", err)
	}
	return &tr, nil
}

func (c *GroqClient) do(req *http.Request, span trace.Span) ([]byte, error) {
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
		apiErr := &APIError{Provider: "groq", StatusCode: resp.StatusCode, Body: string(respBody)}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.FaultReason())
		return nil, apiErr
	}
	return respBody, nil
}
