package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/sse"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBroadcastEventReachesJobSubscribers(t *testing.T) {
	hub, _ := startHub(t)

	watcher := NewClient("job-1", nil)
	other := NewClient("job-2", nil)
	hub.Register(watcher)
	hub.Register(other)

	hub.BroadcastEvent("job-1", sse.Payload{
		Status:   "complete",
		Message:  "Summary complete",
		PDF:      "JVBERi0=",
		Filename: "abc123_summary.pdf",
	})

	var msg model.WSEventMessage
	if err := json.Unmarshal(receive(t, watcher), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != model.WSMessageTypeEvent || msg.JobID != "job-1" {
		t.Errorf("message = %+v", msg)
	}

	var ev sse.Payload
	if err := json.Unmarshal(msg.Event, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Status != "complete" || ev.Filename != "abc123_summary.pdf" || ev.PDF != "JVBERi0=" {
		t.Errorf("event = %+v", ev)
	}

	select {
	case m := <-other.Send:
		t.Errorf("job-2 subscriber got %s", m)
	default:
	}
}

func TestUnregisterDropsClient(t *testing.T) {
	hub, _ := startHub(t)

	c := NewClient("job-1", nil)
	hub.Register(c)
	hub.Unregister(c)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client not dropped")
	}
	if n := hub.Subscribers("job-1"); n != 0 {
		t.Errorf("subscribers = %d", n)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub, _ := startHub(t)

	c := &Client{JobID: "job-1", Send: make(chan []byte), done: make(chan struct{})}
	hub.Register(c)
	hub.BroadcastEvent("job-1", sse.Payload{Status: "progress", Stage: "downloading"})

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("slow client not dropped")
	}
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	hub, cancel := startHub(t)
	c := NewClient("job-1", nil)
	hub.Register(c)
	cancel()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client not closed on shutdown")
	}

	done := make(chan struct{})
	go func() {
		hub.Register(NewClient("job-2", nil))
		hub.BroadcastEvent("job-2", sse.Payload{Status: "progress"})
		hub.Unregister(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after shutdown")
	}
}
