package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/videorecap/api/internal/handler"
	"github.com/videorecap/api/internal/middleware"
	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/pipeline"
	"github.com/videorecap/api/internal/render"
	"github.com/videorecap/api/internal/service"
	ws "github.com/videorecap/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-handlers"

// fakeAudio serves a tiny clip for any id except "bad-id"
type fakeAudio struct{}

func (fakeAudio) FetchAudio(ctx context.Context, videoID string) (*model.Audio, error) {
	if videoID == "bad-id" {
		return nil, &service.DownloadError{Reason: pipeline.ReasonUnavailable, VideoID: videoID, Err: errors.New("Video unavailable")}
	}
	return &model.Audio{VideoID: videoID, Data: []byte("audio"), Format: "mp3", Title: "Deep Work", Channel: "Talks", Duration: 3723}, nil
}

type fakeSTT struct{}

func (fakeSTT) Transcribe(ctx context.Context, audio *model.Audio) (*model.Transcript, error) {
	return &model.Transcript{
		Segments:      []model.Segment{{Text: "Focus is a skill."}, {Text: "Practice it daily."}},
		Language:      "en",
		TranscribedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, transcript *model.Transcript) (*model.SummaryResult, error) {
	return &model.SummaryResult{
		Headline:  "Focus is trainable",
		KeyPoints: []string{"Practice daily", "Remove distractions", "Rest deliberately"},
		Concepts:  []model.Concept{{Term: "Deep work", Definition: "Distraction-free concentration"}},
		Narrative: []string{"The talk argues focus is a skill.", "It closes with a daily routine."},
	}, nil
}

// fakeJobs is an in-memory job store
type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func (f *fakeJobs) Create(ctx context.Context, videoID string) (*model.SummaryJobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &model.Job{ID: "job-" + videoID, VideoID: videoID, Status: model.JobStatusQueued, CreatedAt: time.Now()}
	f.jobs[job.ID] = job
	return &model.SummaryJobResponse{JobID: job.ID, Status: job.Status, CreatedAt: job.CreatedAt}, nil
}

func (f *fakeJobs) Get(ctx context.Context, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	return job, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app  *fiber.App
	jobs *fakeJobs
}

// setupApp builds the same routes as main.go over a real pipeline with
// fake engines and the real PDF renderer. Redis is not used.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	executor := pipeline.NewExecutor(2)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		executor.Shutdown(ctx)
	})

	runner := pipeline.NewRunner(executor, pipeline.StageTimeouts{
		Download:   5 * time.Second,
		Transcribe: 5 * time.Second,
		Summarize:  5 * time.Second,
		Render:     5 * time.Second,
	}, nil)
	renderer, err := render.NewPDFRenderer(render.Fonts{})
	if err != nil {
		t.Fatalf("pdf renderer: %v", err)
	}
	orchestrator := pipeline.NewOrchestrator(runner, pipeline.Collaborators{
		Audio:      fakeAudio{},
		STT:        fakeSTT{},
		Summarizer: fakeSummarizer{},
		Renderer:   renderer,
	}, nil)

	hubCtx, stopHub := context.WithCancel(context.Background())
	t.Cleanup(stopHub)
	hub := ws.NewHub(nil)
	go hub.Run(hubCtx)

	jobs := &fakeJobs{jobs: make(map[string]*model.Job)}
	summaries := service.NewSummaryService(orchestrator, 0, nil)
	auth := middleware.NewAuthMiddleware(testJWTSecret, time.Hour)

	app := fiber.New()
	handler.Routes{
		Summary:        handler.NewSummaryHandler(summaries, jobs, hub, handler.NewValidator(), nil),
		Health:         handler.NewHealthHandler(nil, executor, fiber.Map{"transcription": "groq", "summarizer": "groq"}),
		Authenticate:   auth.Authenticate(),
		AuthenticateWS: auth.AuthenticateWebSocket(),
	}.Mount(app)

	return &testApp{app: app, jobs: jobs}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.NewAuthMiddleware(testJWTSecret, time.Hour).GenerateToken("test-user-123", "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t),
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// sseEvent is one decoded "id:/data:" block
type sseEvent struct {
	ID   string
	Data map[string]interface{}
}

// parseEvents splits an event-stream body into its data frames, skipping
// comment lines.
func parseEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				ev.ID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "data: "):
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.Data); err != nil {
					t.Fatalf("bad data line %q: %v", line, err)
				}
			}
		}
		if ev.Data != nil {
			events = append(events, ev)
		}
	}
	return events
}
