package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the coarse state of an asynchronous summary job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// SummaryJobPayload is the asynq task payload for a summary job
type SummaryJobPayload struct {
	JobID   string `json:"jobId"`
	VideoID string `json:"videoId"`
}

// Job is the short-lived snapshot kept for an asynchronous summary job.
// LastEvent never carries artifact bytes.
type Job struct {
	ID        string          `json:"jobId"`
	VideoID   string          `json:"videoId"`
	Status    JobStatus       `json:"status"`
	LastEvent json.RawMessage `json:"lastEvent,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SummaryJobResponse is returned when a job is accepted
type SummaryJobResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
