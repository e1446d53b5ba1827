package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/pipeline"
	"github.com/videorecap/api/internal/sse"
)

// SummaryStarter begins a summary run
type SummaryStarter interface {
	Start(ctx context.Context, videoID string) (<-chan pipeline.Event, string, error)
}

// JobRecorder stores a job's latest event
type JobRecorder interface {
	Record(ctx context.Context, jobID string, ev sse.Payload) error
}

// Broadcaster relays events to live subscribers
type Broadcaster interface {
	BroadcastEvent(jobID string, ev sse.Payload)
}

// SummaryWorker runs queued summary jobs
type SummaryWorker struct {
	summaries SummaryStarter
	jobs      JobRecorder
	hub       Broadcaster
	logger    *slog.Logger
}

// NewSummaryWorker creates a new summary worker
func NewSummaryWorker(summaries SummaryStarter, jobs JobRecorder, hub Broadcaster, logger *slog.Logger) *SummaryWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryWorker{
		summaries: summaries,
		jobs:      jobs,
		hub:       hub,
		logger:    logger,
	}
}

// ProcessTask drives one pipeline run, recording and broadcasting every
// event. A run that ends in an error event is a completed task: the
// failure is reported on the job, not retried.
func (w *SummaryWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.SummaryJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal summary payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := w.logger.With("job_id", payload.JobID, "video_id", payload.VideoID)
	logger.Info("starting summary job")

	events, runID, err := w.summaries.Start(ctx, payload.VideoID)
	if err != nil {
		w.publish(ctx, payload.JobID, sse.Payload{
			Status:      string(pipeline.StatusError),
			Message:     err.Error(),
			ErrorType:   string(pipeline.KindNetwork),
			ErrorModule: string(pipeline.StageDownloading),
			ErrorReason: pipeline.ReasonInvalidURL,
		})
		logger.Warn("summary job rejected", "error", err)
		return nil
	}
	logger = logger.With("run_id", runID)

	stage := pipeline.StageDownloading
	for ev := range events {
		if ev.Status == pipeline.StatusProgress {
			stage = ev.Stage
		}
		w.publish(ctx, payload.JobID, sse.NewPayload(ev))
		if ev.Terminal() {
			if ev.Status == pipeline.StatusError {
				logger.Warn("summary job failed", "error_type", ev.Err.Kind, "error_reason", ev.Err.Reason)
			} else {
				logger.Info("summary job completed")
			}
			return nil
		}
	}

	// The channel only closes early when the task context ends. The task is
	// not retried, so the job must still reach a terminal state.
	logger.Warn("summary job interrupted", "stage", stage, "error", ctx.Err())
	w.publish(context.WithoutCancel(ctx), payload.JobID, sse.Payload{
		Status:      string(pipeline.StatusError),
		Message:     "summary job interrupted",
		ErrorType:   string(pipeline.KindCancelled),
		ErrorModule: string(stage),
		ErrorReason: pipeline.ReasonCancelled,
	})
	return ctx.Err()
}

func (w *SummaryWorker) publish(ctx context.Context, jobID string, ev sse.Payload) {
	if err := w.jobs.Record(ctx, jobID, ev); err != nil {
		w.logger.Error("failed to record job event", "job_id", jobID, "error", err)
	}
	w.hub.BroadcastEvent(jobID, ev)
}
