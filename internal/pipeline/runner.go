package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StageTimeouts bounds each stage. A zero value disables the deadline.
type StageTimeouts struct {
	Download   time.Duration
	Transcribe time.Duration
	Summarize  time.Duration
	Render     time.Duration
}

func (t StageTimeouts) forStage(stage Stage) time.Duration {
	switch stage {
	case StageDownloading:
		return t.Download
	case StageTranscribing:
		return t.Transcribe
	case StageSummarizing:
		return t.Summarize
	case StageRendering:
		return t.Render
	}
	return 0
}

// Runner executes one collaborator call per stage on the shared executor.
// Calls are attempted exactly once.
type Runner struct {
	executor *Executor
	timeouts StageTimeouts
	logger   *slog.Logger
}

// NewRunner creates a stage runner backed by executor
func NewRunner(executor *Executor, timeouts StageTimeouts, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		executor: executor,
		timeouts: timeouts,
		logger:   logger,
	}
}

// RunStage submits op to the executor under the stage deadline and waits
// for it. Any failure comes back as a normalized *Error tagged with stage.
func RunStage[T any](ctx context.Context, r *Runner, stage Stage, op func(context.Context) (T, error)) (T, *Error) {
	started := time.Now()
	log := r.logger.With("stage", string(stage))
	log.Debug("stage started", "started_at", started)

	ctx, span := tracer.Start(ctx, "pipeline."+string(stage), trace.WithAttributes(
		attribute.String("pipeline.stage", string(stage)),
	))
	defer span.End()

	timeout := r.timeouts.forStage(stage)
	stageCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	value, err := Submit(stageCtx, r.executor, op).Await(stageCtx)
	elapsed := time.Since(started)

	outcome := "success"
	var perr *Error
	if err != nil {
		perr = normalize(ctx, stageCtx, stage, timeout, err)
		outcome = string(perr.Kind)

		span.RecordError(err)
		span.SetStatus(codes.Error, perr.Message)
		span.SetAttributes(
			attribute.String("pipeline.error_kind", string(perr.Kind)),
			attribute.String("pipeline.error_reason", perr.Reason),
		)
		if perr.Kind == KindCancelled {
			log.Info("stage abandoned", "elapsed", elapsed)
		} else {
			log.Warn("stage failed", "elapsed", elapsed, "kind", perr.Kind, "reason", perr.Reason, "error", err)
		}
	} else {
		log.Info("stage completed", "elapsed", elapsed)
	}

	attrs := metric.WithAttributes(
		attribute.String("pipeline.stage", string(stage)),
		attribute.String("pipeline.outcome", outcome),
	)
	// The run context may already be cancelled; metrics must still record.
	mctx := context.WithoutCancel(ctx)
	stageOutcomes.Add(mctx, 1, attrs)
	stageDuration.Record(mctx, elapsed.Seconds(), attrs)

	if perr != nil {
		var zero T
		return zero, perr
	}
	return value, nil
}
