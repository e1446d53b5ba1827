package model

import (
	"fmt"
	"strings"
	"time"
)

// SummaryRequest is the inbound request to summarize one video
type SummaryRequest struct {
	VideoID string `json:"videoId" validate:"required,max=64,videoid"`
}

// Audio is the raw audio acquired for a video
type Audio struct {
	VideoID  string
	Data     []byte
	Format   string // container extension, e.g. "mp3"
	Title    string
	Channel  string
	Duration float64 // seconds, 0 when unknown
}

// Filename returns the name used when uploading the audio to an engine
func (a *Audio) Filename() string {
	format := a.Format
	if format == "" {
		format = "mp3"
	}
	return fmt.Sprintf("%s.%s", a.VideoID, format)
}

// Segment is one ordered piece of transcribed speech
type Segment struct {
	Text  string   `json:"text"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// Transcript is the speech-to-text output for one pipeline run
type Transcript struct {
	Segments      []Segment
	Language      string
	Duration      float64
	TranscribedAt time.Time
}

// Text joins all segments into a single block of text
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// Concept is a term and its definition extracted from a transcript
type Concept struct {
	Term       string `json:"term" jsonschema:"required"`
	Definition string `json:"definition" jsonschema:"required"`
}

// SummaryResult is the structured summary produced by the language model
type SummaryResult struct {
	Headline  string    `json:"headline" jsonschema:"required,description=One sentence capturing the core thesis"`
	KeyPoints []string  `json:"key_points" jsonschema:"required,description=3-5 key takeaways"`
	Concepts  []Concept `json:"concepts" jsonschema:"required,description=Terms central to understanding the content"`
	Narrative []string  `json:"narrative" jsonschema:"required,description=2-4 narrative paragraphs"`
}

// Validate checks the fields every rendered summary relies on
func (s *SummaryResult) Validate() error {
	if strings.TrimSpace(s.Headline) == "" {
		return fmt.Errorf("summary headline is empty")
	}
	if len(s.KeyPoints) == 0 {
		return fmt.Errorf("summary has no key points")
	}
	if len(s.Narrative) == 0 {
		return fmt.Errorf("summary has no narrative")
	}
	return nil
}

// Metadata describes the source video for the rendered document
type Metadata struct {
	VideoID       string
	Title         string
	Channel       string
	Duration      float64
	TranscribedAt time.Time
	GeneratedAt   time.Time
}

// HumanDuration formats the duration as "1h 2m 3s", "2m 3s" or "3s"
func (m Metadata) HumanDuration() string {
	total := int(m.Duration)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Artifact is the rendered document delivered in the terminal event
type Artifact struct {
	Bytes     []byte
	Filename  string
	MediaType string
}

// ArtifactFilename follows the <video_id>_summary.<extension> convention
func ArtifactFilename(videoID, extension string) string {
	return fmt.Sprintf("%s_summary.%s", videoID, extension)
}
