package handler

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/pipeline"
	"github.com/videorecap/api/internal/service"
	"github.com/videorecap/api/internal/sse"
	ws "github.com/videorecap/api/internal/websocket"
	"github.com/videorecap/api/pkg/response"
)

// SummaryStarter begins streamed summary runs
type SummaryStarter interface {
	Start(ctx context.Context, videoID string) (<-chan pipeline.Event, string, error)
	Heartbeat() time.Duration
}

// JobStore creates and reads background summary jobs
type JobStore interface {
	Create(ctx context.Context, videoID string) (*model.SummaryJobResponse, error)
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

type SummaryHandler struct {
	summaries SummaryStarter
	jobs      JobStore
	hub       *ws.Hub
	validator *validator.Validate
	logger    *slog.Logger
}

func NewSummaryHandler(summaries SummaryStarter, jobs JobStore, hub *ws.Hub, v *validator.Validate, logger *slog.Logger) *SummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryHandler{
		summaries: summaries,
		jobs:      jobs,
		hub:       hub,
		validator: v,
		logger:    logger,
	}
}

// Stream handles GET /api/summary/:videoId/stream. Validation failures are
// plain HTTP errors; once the stream opens, every outcome is an event.
func (h *SummaryHandler) Stream(c *fiber.Ctx) error {
	req := model.SummaryRequest{VideoID: c.Params("videoId")}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := h.summaries.Heartbeat()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The run lives as long as the consumer keeps reading.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		enc := sse.NewEncoder(w)
		events, runID, err := h.summaries.Start(ctx, req.VideoID)
		if err != nil {
			h.logger.Warn("summary rejected", "video_id", req.VideoID, "error", err)
			_ = enc.Encode(startFailure(err))
			return
		}

		logger := h.logger.With("run_id", runID, "video_id", req.VideoID)
		if err := sse.Stream(events, enc, heartbeat, cancel, logger); err != nil {
			logger.Info("summary stream ended early", "error", err)
		}
	}))
	return nil
}

func startFailure(err error) pipeline.Event {
	return pipeline.Event{
		Seq:    1,
		Status: pipeline.StatusError,
		Err: &pipeline.Error{
			Kind:    pipeline.KindNetwork,
			Reason:  pipeline.ReasonInvalidURL,
			Stage:   pipeline.StageDownloading,
			Message: err.Error(),
			Err:     err,
		},
	}
}

// StartJob handles POST /api/summary/jobs
func (h *SummaryHandler) StartJob(c *fiber.Ctx) error {
	var req model.SummaryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.jobs.Create(c.UserContext(), req.VideoID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidVideoID) {
			return response.ValidationError(c, "Invalid video ID", nil)
		}
		h.logger.Error("failed to create summary job", "video_id", req.VideoID, "error", err)
		return response.QueueError(c, "Failed to queue summary job")
	}

	return response.Accepted(c, result)
}

// JobStatus handles GET /api/summary/jobs/:jobId
func (h *SummaryHandler) JobStatus(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.jobs.Get(c.UserContext(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.JobNotFound(c, jobID)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, job)
}

// Watch handles GET /ws/summary/:jobId
func (h *SummaryHandler) Watch() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.hub.HandleConnection(c, c.Params("jobId"))
	})
}

// RequireUpgrade rejects plain HTTP requests on websocket routes
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
