package pipeline

import (
	"context"
	"regexp"

	"github.com/videorecap/api/internal/model"
)

// Stage is one of the four ordered pipeline phases
type Stage string

const (
	StageDownloading  Stage = "downloading"
	StageTranscribing Stage = "transcribing"
	StageSummarizing  Stage = "summarizing"
	StageRendering    Stage = "rendering"
)

// EventStatus classifies a progress event
type EventStatus string

const (
	StatusProgress EventStatus = "progress"
	StatusComplete EventStatus = "complete"
	StatusError    EventStatus = "error"
)

// Event is one immutable message of a pipeline run.
// Err is set only for StatusError, Artifact only for StatusComplete.
type Event struct {
	Seq      int64
	Status   EventStatus
	Stage    Stage
	Message  string
	Err      *Error
	Artifact *model.Artifact
}

// Terminal reports whether the event closes the run
func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidVideoID reports whether id is a non-empty opaque platform identifier
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// Request is the immutable input of one pipeline run
type Request struct {
	VideoID string
	RunID   string
}

// AudioSource acquires audio for a video
type AudioSource interface {
	FetchAudio(ctx context.Context, videoID string) (*model.Audio, error)
}

// SpeechToText converts audio into a transcript
type SpeechToText interface {
	Transcribe(ctx context.Context, audio *model.Audio) (*model.Transcript, error)
}

// Summarizer produces a structured summary from a transcript
type Summarizer interface {
	Summarize(ctx context.Context, transcript *model.Transcript) (*model.SummaryResult, error)
}

// Renderer renders a summary into a binary document
type Renderer interface {
	Render(ctx context.Context, summary *model.SummaryResult, meta model.Metadata) (*model.Artifact, error)
}

// Collaborators groups the engines invoked by the four stages
type Collaborators struct {
	Audio      AudioSource
	STT        SpeechToText
	Summarizer Summarizer
	Renderer   Renderer
}
