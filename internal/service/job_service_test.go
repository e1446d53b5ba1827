package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/sse"
)

const testRedisAddr = "localhost:6379"

// newTestJobService connects to a local redis on DB 15 and skips the test
// when none is running
func newTestJobService(t *testing.T) *JobService {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: testRedisAddr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("redis not available at %s: %v", testRedisAddr, err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: testRedisAddr, DB: 15})
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		asynqClient.Close()
		rdb.Close()
	})
	return NewJobService(rdb, asynqClient, "summary-test")
}

func TestJobLifecycle(t *testing.T) {
	svc := newTestJobService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != model.JobStatusQueued || created.JobID == "" {
		t.Fatalf("created = %+v", created)
	}

	if err := svc.Record(ctx, created.JobID, sse.Payload{Status: "progress", Stage: "transcribing", Message: "transcribing audio"}); err != nil {
		t.Fatalf("record progress: %v", err)
	}
	job, err := svc.Get(ctx, created.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != model.JobStatusRunning || job.VideoID != "abc123" {
		t.Errorf("job = %+v", job)
	}

	complete := sse.Payload{Status: "complete", Message: "Summary complete", PDF: "JVBERi0=", Filename: "abc123_summary.pdf"}
	if err := svc.Record(ctx, created.JobID, complete); err != nil {
		t.Fatalf("record complete: %v", err)
	}
	job, _ = svc.Get(ctx, created.JobID)
	if job.Status != model.JobStatusSucceeded {
		t.Errorf("status = %s, want succeeded", job.Status)
	}

	var last sse.Payload
	if err := json.Unmarshal(job.LastEvent, &last); err != nil {
		t.Fatalf("decode last event: %v", err)
	}
	if last.PDF != "" || last.Filename != "abc123_summary.pdf" {
		t.Errorf("stored artifact bytes or lost filename: %+v", last)
	}
}

func TestJobNotFound(t *testing.T) {
	svc := newTestJobService(t)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestJobCreateRejectsInvalidID(t *testing.T) {
	svc := NewJobService(nil, nil, "")
	if _, err := svc.Create(context.Background(), "not a video"); !errors.Is(err, ErrInvalidVideoID) {
		t.Fatalf("err = %v, want ErrInvalidVideoID", err)
	}
}

func TestNewSummaryTask(t *testing.T) {
	task, err := NewSummaryTask("job-1", "abc123")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskTypeSummary {
		t.Errorf("type = %s", task.Type())
	}
	var payload model.SummaryJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.JobID != "job-1" || payload.VideoID != "abc123" {
		t.Errorf("payload = %+v, err = %v", payload, err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[string]model.JobStatus{
		"progress": model.JobStatusRunning,
		"complete": model.JobStatusSucceeded,
		"error":    model.JobStatusFailed,
	}
	for status, want := range tests {
		if got := statusFor(sse.Payload{Status: status}); got != want {
			t.Errorf("statusFor(%s) = %s, want %s", status, got, want)
		}
	}
}
