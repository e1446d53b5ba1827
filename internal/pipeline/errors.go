package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind is the closed taxonomy of pipeline failures
type Kind string

const (
	KindNetwork       Kind = "NetworkFault"
	KindTranscription Kind = "TranscriptionFault"
	KindSummarization Kind = "SummarizationFault"
	KindRender        Kind = "RenderFault"
	KindTimeout       Kind = "Timeout"

	// KindCancelled marks a run abandoned by its consumer. Streams never carry
	// it; interrupted background jobs record it as their final state.
	KindCancelled Kind = "Cancelled"
)

// Normalized failure reasons
const (
	ReasonRateLimited      = "rate_limited"
	ReasonAuth             = "auth"
	ReasonMalformedOutput  = "malformed_output"
	ReasonUpstream         = "upstream"
	ReasonUnavailable      = "unavailable"
	ReasonInvalidURL       = "invalid_url"
	ReasonDownloadFailed   = "download_failed"
	ReasonUnsupportedAudio = "unsupported_audio"
	ReasonEmptyResult      = "empty_result"
	ReasonPanic            = "panic"
	ReasonExecutorClosed   = "executor_closed"
	ReasonDeadline         = "deadline_exceeded"
	ReasonCancelled        = "cancelled"
)

// FaultReasoner is implemented by collaborator errors that know their cause
type FaultReasoner interface {
	FaultReason() string
}

// Error is a stage failure normalized at the Stage Runner boundary
type Error struct {
	Kind    Kind
	Reason  string
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Stage, e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
}

// Unwrap exposes the collaborator error for errors.Is / errors.As
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transient reports whether retrying later could succeed
func (e *Error) Transient() bool {
	return e.Kind == KindTimeout || e.Reason == ReasonRateLimited
}

// kindFor returns the fault kind raised by a stage's collaborator
func kindFor(stage Stage) Kind {
	switch stage {
	case StageDownloading:
		return KindNetwork
	case StageTranscribing:
		return KindTranscription
	case StageSummarizing:
		return KindSummarization
	default:
		return KindRender
	}
}

// normalize maps any error raised while running a stage onto the taxonomy.
// parent is the run context, stageCtx the deadline-bound stage context.
func normalize(parent, stageCtx context.Context, stage Stage, timeout time.Duration, err error) *Error {
	if parent.Err() != nil {
		return &Error{Kind: KindCancelled, Stage: stage, Message: "run abandoned by consumer", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("%s exceeded its deadline", stage)
		if timeout > 0 {
			msg = fmt.Sprintf("%s exceeded its deadline of %s", stage, timeout)
		}
		return &Error{Kind: KindTimeout, Reason: ReasonDeadline, Stage: stage, Message: msg, Err: err}
	}

	var perr *Error
	if errors.As(err, &perr) {
		out := *perr
		out.Stage = stage
		if out.Kind == "" {
			out.Kind = kindFor(stage)
		}
		return &out
	}

	out := &Error{Kind: kindFor(stage), Stage: stage, Message: err.Error(), Err: err}

	var fault *ExecutionFault
	var reasoner FaultReasoner
	switch {
	case errors.As(err, &fault):
		out.Reason = ReasonPanic
	case errors.Is(err, ErrExecutorClosed):
		out.Reason = ReasonExecutorClosed
	case errors.As(err, &reasoner):
		out.Reason = reasoner.FaultReason()
	}
	return out
}
