package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"github.com/videorecap/api/internal/config"
)

// GeminiClient generates JSON content with the Gemini API
type GeminiClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiClient creates a new Gemini client. The SDK client is created
// per call so an unconfigured key never fails at startup.
func NewGeminiClient(cfg *config.GeminiConfig) *GeminiClient {
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateJSON asks the model for an application/json response
func (c *GeminiClient) GenerateJSON(ctx context.Context, system, prompt string, opts ChatOptions) (string, error) {
	if !c.IsConfigured() {
		return "", &ConfigError{Provider: "gemini"}
	}

	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     c.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	})
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("generate content: %w", ctx.Err())
		}
		span.RecordError(err)
		return "", &providerError{provider: "gemini", reason: classifyMessage(err.Error()), err: err}
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var text strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		if text.Len() > 0 {
			return text.String(), nil
		}
	}
	return "", fmt.Errorf("empty response from Gemini")
}
