package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/videorecap/api/internal/pipeline"
)

// ErrInvalidVideoID is returned before a run starts for a malformed id
var ErrInvalidVideoID = errors.New("invalid video id")

// SummaryService starts summary pipeline runs
type SummaryService struct {
	orchestrator *pipeline.Orchestrator
	heartbeat    time.Duration
	logger       *slog.Logger
}

// NewSummaryService creates a service over orchestrator. heartbeat is the
// keep-alive interval used by streaming transports.
func NewSummaryService(orchestrator *pipeline.Orchestrator, heartbeat time.Duration, logger *slog.Logger) *SummaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryService{
		orchestrator: orchestrator,
		heartbeat:    heartbeat,
		logger:       logger,
	}
}

// Start validates videoID and begins a run. The returned channel yields
// the run's events and closes after the terminal one; cancelling ctx
// abandons the run.
func (s *SummaryService) Start(ctx context.Context, videoID string) (<-chan pipeline.Event, string, error) {
	if !pipeline.ValidVideoID(videoID) {
		return nil, "", ErrInvalidVideoID
	}
	runID := uuid.New().String()
	s.logger.Info("summary requested", "run_id", runID, "video_id", videoID)
	return s.orchestrator.Run(ctx, pipeline.Request{VideoID: videoID, RunID: runID}), runID, nil
}

// Heartbeat returns the keep-alive interval for streams
func (s *SummaryService) Heartbeat() time.Duration {
	return s.heartbeat
}
