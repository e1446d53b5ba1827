package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/videorecap/api/internal/client"
	"github.com/videorecap/api/internal/config"
	"github.com/videorecap/api/internal/pipeline"
)

// fakeRunner records invocations and simulates a tool run in dir
type fakeRunner struct {
	calls  [][]string
	stdout string
	err    error
	files  map[string][]byte // written into dir before returning
}

func (r *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return nil, r.err
	}
	for fn, data := range r.files {
		if err := os.WriteFile(filepath.Join(dir, fn), data, 0o600); err != nil {
			return nil, err
		}
	}
	return []byte(r.stdout), nil
}

func testMedia(t *testing.T) config.MediaConfig {
	return config.MediaConfig{
		YtDlpPath:    "yt-dlp",
		FFmpegPath:   "ffmpeg",
		AudioFormat:  "mp3",
		WorkDir:      t.TempDir(),
		MaxUploadMB:  25,
		ChunkSeconds: 600,
	}
}

func TestFetchAudio(t *testing.T) {
	runner := &fakeRunner{
		stdout: "[download] something\n" + `{"id":"abc123","title":"Deep Work","uploader":"Talks","duration":125}`,
		files:  map[string][]byte{"abc123.mp3": []byte("ID3audio")},
	}
	media := testMedia(t)
	src := NewAudioSource(runner, media, nil)

	audio, err := src.FetchAudio(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(audio.Data) != "ID3audio" || audio.Format != "mp3" {
		t.Errorf("audio = %q %s", audio.Data, audio.Format)
	}
	if audio.Title != "Deep Work" || audio.Channel != "Talks" || audio.Duration != 125 {
		t.Errorf("metadata = %+v", audio)
	}

	args := strings.Join(runner.calls[0], " ")
	if !strings.Contains(args, "https://www.youtube.com/watch?v=abc123") || !strings.Contains(args, "--audio-format mp3") {
		t.Errorf("yt-dlp args = %s", args)
	}

	// The per-run temp directory is gone.
	entries, _ := os.ReadDir(media.WorkDir)
	if len(entries) != 0 {
		t.Errorf("work dir not cleaned up: %d entries", len(entries))
	}
}

func TestFetchAudioClassifiesErrors(t *testing.T) {
	tests := []struct {
		stderr string
		reason string
	}{
		{"ERROR: [youtube] bad-id: Video unavailable", pipeline.ReasonUnavailable},
		{"ERROR: Private video. Sign in if you've been granted access", pipeline.ReasonUnavailable},
		{"ERROR: Incomplete YouTube ID. URL looks truncated", pipeline.ReasonInvalidURL},
		{"ERROR: unable to download webpage: HTTP Error 503", pipeline.ReasonDownloadFailed},
	}
	for _, tt := range tests {
		runner := &fakeRunner{err: &client.CommandError{Name: "yt-dlp", Stderr: tt.stderr, Err: errors.New("exit status 1")}}
		src := NewAudioSource(runner, testMedia(t), nil)

		_, err := src.FetchAudio(context.Background(), "bad-id")
		var dlErr *DownloadError
		if !errors.As(err, &dlErr) {
			t.Fatalf("%q: err = %v, want *DownloadError", tt.stderr, err)
		}
		if dlErr.FaultReason() != tt.reason {
			t.Errorf("%q: reason = %q, want %q", tt.stderr, dlErr.FaultReason(), tt.reason)
		}
	}
}

func TestFetchAudioRejectsMalformedID(t *testing.T) {
	runner := &fakeRunner{}
	src := NewAudioSource(runner, testMedia(t), nil)

	_, err := src.FetchAudio(context.Background(), "../../etc/passwd")
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) || dlErr.Reason != pipeline.ReasonInvalidURL {
		t.Fatalf("err = %v, want invalid_url", err)
	}
	if len(runner.calls) != 0 {
		t.Error("yt-dlp should not run for a malformed id")
	}
}

func TestFetchAudioNoOutputFile(t *testing.T) {
	src := NewAudioSource(&fakeRunner{stdout: "{}"}, testMedia(t), nil)

	_, err := src.FetchAudio(context.Background(), "abc123")
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) || dlErr.Reason != pipeline.ReasonDownloadFailed {
		t.Fatalf("err = %v, want download_failed", err)
	}
}
