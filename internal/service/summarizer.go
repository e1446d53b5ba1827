package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/videorecap/api/internal/client"
	"github.com/videorecap/api/internal/config"
	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/pipeline"
)

const summarySystemPrompt = `You are an expert at distilling video content into clear, structured summaries.
You extract the core thesis, key insights, and important terminology while
preserving the logical flow of the original content. You write in clear,
direct prose without filler or redundancy.`

const summaryPrompt = `Analyze this video transcript and produce a structured summary.

Return a JSON object with exactly these fields:

{
  "headline": "One sentence capturing the core thesis or main argument (max 200 chars)",

  "key_points": [
    "3-5 key takeaways, each one sentence, capturing actionable insights or important claims"
  ],

  "concepts": [
    {"term": "Important Term", "definition": "Brief explanation (1-2 sentences)"}
  ],

  "narrative": [
    "First paragraph: Context and main argument",
    "Second paragraph: Supporting evidence or elaboration",
    "Third paragraph: Conclusions or implications"
  ]
}

Guidelines:
- headline: The single most important point. If someone reads nothing else, this is it.
- key_points:
    - Concrete takeaways, not vague observations.
    - "X does Y because Z" not "The video discusses X"
- concepts:
    - Only include terms that are central to understanding the content.
    - Skip obvious terms.
- narrative:
    - 2-4 paragraphs that flow naturally.
    - Capture the arc of the argument, not a list of topics.

Return ONLY the JSON object, no markdown code blocks or other text.

Transcript:
%s`

// MalformedOutputError is model output that does not decode into a summary
type MalformedOutputError struct {
	Preview string // leading runes of the raw output
	Err     error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("failed to parse model response as summary: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error       { return e.Err }
func (e *MalformedOutputError) FaultReason() string { return pipeline.ReasonMalformedOutput }

// LLM returns the raw JSON text of a completion
type LLM interface {
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// Summarizer turns transcripts into structured summaries
type Summarizer struct {
	llm    LLM
	logger *slog.Logger
}

// NewSummarizer creates a summarizer over llm
func NewSummarizer(llm LLM, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{llm: llm, logger: logger}
}

// Summarize prompts the model and validates its answer
func (s *Summarizer) Summarize(ctx context.Context, transcript *model.Transcript) (*model.SummaryResult, error) {
	text := transcript.Text()
	s.logger.Debug("requesting summary", "transcript_chars", len(text))

	raw, err := s.llm.CompleteJSON(ctx, summarySystemPrompt, fmt.Sprintf(summaryPrompt, text))
	if err != nil {
		return nil, err
	}

	summary, err := parseSummary(raw)
	var malformed *MalformedOutputError
	if errors.As(err, &malformed) {
		s.logger.Warn("model returned a malformed summary", "error", malformed.Err, "preview", malformed.Preview)
	}
	return summary, err
}

// parseSummary decodes model output, tolerating markdown code fences
func parseSummary(raw string) (*model.SummaryResult, error) {
	content := stripCodeFence(raw)

	var summary model.SummaryResult
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return nil, &MalformedOutputError{Preview: preview(raw), Err: err}
	}
	if err := summary.Validate(); err != nil {
		return nil, &MalformedOutputError{Preview: preview(raw), Err: err}
	}
	return &summary, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag, e.g. ```json
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

const previewRunes = 200

func preview(s string) string {
	n := 0
	for i := range s {
		if n == previewRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// groqLLM requests json_schema structured output from Groq
type groqLLM struct {
	client *client.GroqClient
	schema *client.JSONSchema
	opts   client.ChatOptions
}

// NewGroqLLM returns an LLM that asks Groq for schema-conforming output
func NewGroqLLM(c *client.GroqClient, cfg config.SummarizerConfig) LLM {
	return &groqLLM{
		client: c,
		schema: client.SchemaFor[model.SummaryResult](),
		opts:   client.ChatOptions{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
	}
}

func (l *groqLLM) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	return l.client.StructuredCompletion(ctx, system, prompt, l.schema, l.opts)
}

// geminiLLM requests an application/json response from Gemini
type geminiLLM struct {
	client *client.GeminiClient
	opts   client.ChatOptions
}

// NewGeminiLLM returns an LLM backed by Gemini
func NewGeminiLLM(c *client.GeminiClient, cfg config.SummarizerConfig) LLM {
	return &geminiLLM{
		client: c,
		opts:   client.ChatOptions{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
	}
}

func (l *geminiLLM) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	return l.client.GenerateJSON(ctx, system, prompt, l.opts)
}
