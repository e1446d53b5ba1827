package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/pipeline"
	"github.com/videorecap/api/internal/sse"
)

// TaskTypeSummary is the asynq task type for background summary jobs
const TaskTypeSummary = "summary:generate"

// jobTTL bounds how long a job snapshot stays readable
const jobTTL = time.Hour

// ErrJobNotFound is returned for unknown or expired jobs
var ErrJobNotFound = errors.New("job not found")

// JobService queues summary runs in the background and keeps a short-lived
// snapshot of each job's latest event
type JobService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	queue       string
	now         func() time.Time
}

func NewJobService(redisClient *redis.Client, asynqClient *asynq.Client, queue string) *JobService {
	if queue == "" {
		queue = "summary"
	}
	return &JobService{
		redis:       redisClient,
		asynqClient: asynqClient,
		queue:       queue,
		now:         time.Now,
	}
}

// Create records a queued job and enqueues its task. Jobs are attempted
// once; an interrupted run is not resumed.
func (s *JobService) Create(ctx context.Context, videoID string) (*model.SummaryJobResponse, error) {
	if !pipeline.ValidVideoID(videoID) {
		return nil, ErrInvalidVideoID
	}

	now := s.now()
	job := &model.Job{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := NewSummaryTask(job.ID, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue(s.queue),
		asynq.MaxRetry(0),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.SummaryJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// Get returns the job snapshot
func (s *JobService) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Record stores ev as the job's latest event. Artifact bytes are never
// stored.
func (s *JobService) Record(ctx context.Context, jobID string, ev sse.Payload) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}

	last, err := json.Marshal(ev.WithoutArtifact())
	if err != nil {
		return err
	}
	job.LastEvent = last
	job.Status = statusFor(ev)
	job.UpdatedAt = s.now()
	return s.saveJob(ctx, job)
}

func statusFor(ev sse.Payload) model.JobStatus {
	switch pipeline.EventStatus(ev.Status) {
	case pipeline.StatusComplete:
		return model.JobStatusSucceeded
	case pipeline.StatusError:
		return model.JobStatusFailed
	default:
		return model.JobStatusRunning
	}
}

func (s *JobService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func jobKey(jobID string) string {
	return fmt.Sprintf("summary:job:%s", jobID)
}

// NewSummaryTask builds the asynq task for a job
func NewSummaryTask(jobID, videoID string) (*asynq.Task, error) {
	data, err := json.Marshal(model.SummaryJobPayload{JobID: jobID, VideoID: videoID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSummary, data), nil
}
