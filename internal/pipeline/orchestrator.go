package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/videorecap/api/internal/model"
)

// State is the lifecycle state of one pipeline run
type State string

const (
	StateQueued       State = "queued"
	StateDownloading  State = "downloading"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StateRendering    State = "rendering"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// Progress messages emitted on entry to each stage
const (
	MessageDownloading  = "starting download"
	MessageTranscribing = "transcribing"
	MessageSummarizing  = "summarizing"
	MessageRendering    = "rendering document"
	MessageComplete     = "Summary complete"
)

// isValidTransition enforces the run state machine edges
func isValidTransition(from, to State) bool {
	switch from {
	case StateQueued:
		return to == StateDownloading
	case StateDownloading:
		return to == StateTranscribing || to == StateFailed
	case StateTranscribing:
		return to == StateSummarizing || to == StateFailed
	case StateSummarizing:
		return to == StateRendering || to == StateFailed
	case StateRendering:
		return to == StateComplete || to == StateFailed
	default:
		return false
	}
}

// Orchestrator sequences the four stages of a summary run
type Orchestrator struct {
	runner *Runner
	deps   Collaborators
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator over the given collaborators
func NewOrchestrator(runner *Runner, deps Collaborators, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner: runner,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// Run starts a pipeline run and returns its events. The channel is
// unbuffered, yields each event as soon as its transition completes, and
// is closed after the terminal event. Cancelling ctx abandons the run
// without further events.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	out := make(chan Event)
	r := &run{
		o:      o,
		req:    req,
		state:  StateQueued,
		out:    out,
		logger: o.logger.With("run_id", req.RunID, "video_id", req.VideoID),
	}

	go func() {
		defer close(out)
		r.execute(ctx)
	}()
	return out
}

// run holds the state of a single pipeline execution
type run struct {
	o      *Orchestrator
	req    Request
	state  State
	seq    int64
	out    chan<- Event
	logger *slog.Logger
}

func (r *run) transition(to State) {
	if !isValidTransition(r.state, to) {
		panic(fmt.Sprintf("pipeline: invalid transition %s -> %s", r.state, to))
	}
	r.state = to
}

// emit delivers ev to the consumer. It returns false when the consumer
// has gone away, in which case nothing is delivered.
func (r *run) emit(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	r.seq++
	ev.Seq = r.seq

	select {
	case r.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *run) enter(ctx context.Context, to State, stage Stage, message string) bool {
	r.transition(to)
	return r.emit(ctx, Event{Status: StatusProgress, Stage: stage, Message: message})
}

func (r *run) fail(ctx context.Context, perr *Error) {
	if perr.Kind == KindCancelled || ctx.Err() != nil {
		r.logger.Info("pipeline abandoned", "state", r.state)
		return
	}
	r.transition(StateFailed)
	r.logger.Warn("pipeline failed", "stage", perr.Stage, "kind", perr.Kind, "reason", perr.Reason)
	r.emit(ctx, Event{Status: StatusError, Stage: perr.Stage, Message: perr.Message, Err: perr})
}

func (r *run) execute(ctx context.Context) {
	o := r.o
	started := o.now()
	r.logger.Info("pipeline started")

	if !r.enter(ctx, StateDownloading, StageDownloading, MessageDownloading) {
		return
	}
	audio, perr := RunStage(ctx, o.runner, StageDownloading, func(ctx context.Context) (*model.Audio, error) {
		a, err := o.deps.Audio.FetchAudio(ctx, r.req.VideoID)
		if err == nil && (a == nil || len(a.Data) == 0) {
			err = emptyResult("audio source returned no audio")
		}
		return a, err
	})
	if perr != nil {
		r.fail(ctx, perr)
		return
	}

	if !r.enter(ctx, StateTranscribing, StageTranscribing, MessageTranscribing) {
		return
	}
	transcript, perr := RunStage(ctx, o.runner, StageTranscribing, func(ctx context.Context) (*model.Transcript, error) {
		t, err := o.deps.STT.Transcribe(ctx, audio)
		if err == nil && (t == nil || t.Text() == "") {
			err = emptyResult("speech-to-text returned an empty transcript")
		}
		return t, err
	})
	if perr != nil {
		r.fail(ctx, perr)
		return
	}

	if !r.enter(ctx, StateSummarizing, StageSummarizing, MessageSummarizing) {
		return
	}
	summary, perr := RunStage(ctx, o.runner, StageSummarizing, func(ctx context.Context) (*model.SummaryResult, error) {
		s, err := o.deps.Summarizer.Summarize(ctx, transcript)
		if err == nil && s == nil {
			err = emptyResult("summarizer returned no summary")
		}
		return s, err
	})
	if perr != nil {
		r.fail(ctx, perr)
		return
	}

	if !r.enter(ctx, StateRendering, StageRendering, MessageRendering) {
		return
	}
	meta := model.Metadata{
		VideoID:       r.req.VideoID,
		Title:         audio.Title,
		Channel:       audio.Channel,
		Duration:      firstPositive(transcript.Duration, audio.Duration),
		TranscribedAt: transcript.TranscribedAt,
		GeneratedAt:   o.now(),
	}
	artifact, perr := RunStage(ctx, o.runner, StageRendering, func(ctx context.Context) (*model.Artifact, error) {
		a, err := o.deps.Renderer.Render(ctx, summary, meta)
		if err == nil && (a == nil || len(a.Bytes) == 0) {
			err = emptyResult("renderer returned an empty document")
		}
		return a, err
	})
	if perr != nil {
		r.fail(ctx, perr)
		return
	}

	r.transition(StateComplete)
	if r.emit(ctx, Event{Status: StatusComplete, Message: MessageComplete, Artifact: artifact}) {
		r.logger.Info("pipeline complete", "elapsed", o.now().Sub(started), "bytes", len(artifact.Bytes))
	}
}

type emptyResultError struct{ msg string }

func (e *emptyResultError) Error() string       { return e.msg }
func (e *emptyResultError) FaultReason() string { return ReasonEmptyResult }

func emptyResult(msg string) error {
	return &emptyResultError{msg: msg}
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
