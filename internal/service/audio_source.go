package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/videorecap/api/internal/client"
	"github.com/videorecap/api/internal/config"
	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/pipeline"
)

const watchURL = "https://www.youtube.com/watch?v="

// DownloadError is a failed audio download with its classified cause
type DownloadError struct {
	Reason  string
	VideoID string
	Err     error
}

func (e *DownloadError) Error() string {
	switch e.Reason {
	case pipeline.ReasonUnavailable:
		return fmt.Sprintf("video %s is unavailable or private", e.VideoID)
	case pipeline.ReasonInvalidURL:
		return fmt.Sprintf("invalid video reference %s", e.VideoID)
	default:
		return fmt.Sprintf("failed to download audio for %s: %v", e.VideoID, e.Err)
	}
}

func (e *DownloadError) Unwrap() error       { return e.Err }
func (e *DownloadError) FaultReason() string { return e.Reason }

// videoInfo is the subset of yt-dlp's info JSON we keep
type videoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

// AudioSource extracts audio for a video with yt-dlp
type AudioSource struct {
	runner client.CommandRunner
	cfg    config.MediaConfig
	logger *slog.Logger
}

// NewAudioSource creates an audio source using runner for yt-dlp
func NewAudioSource(runner client.CommandRunner, cfg config.MediaConfig, logger *slog.Logger) *AudioSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	return &AudioSource{runner: runner, cfg: cfg, logger: logger}
}

// FetchAudio downloads and extracts the audio track into memory. The
// temporary directory is removed before returning.
func (s *AudioSource) FetchAudio(ctx context.Context, videoID string) (*model.Audio, error) {
	if !pipeline.ValidVideoID(videoID) {
		return nil, &DownloadError{Reason: pipeline.ReasonInvalidURL, VideoID: videoID, Err: errors.New("malformed video id")}
	}

	dir, err := os.MkdirTemp(s.cfg.WorkDir, "audio-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	args := []string{
		"--extract-audio",
		"--audio-format", s.cfg.AudioFormat,
		"--audio-quality", "192K",
		"--no-playlist",
		"--no-progress",
		"--print-json",
		"--output", filepath.Join(dir, "%(id)s.%(ext)s"),
		watchURL + videoID,
	}

	out, err := s.runner.Run(ctx, dir, s.cfg.YtDlpPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyDownloadError(videoID, err)
	}

	info := parseVideoInfo(out)
	path, err := findAudioFile(dir, s.cfg.AudioFormat)
	if err != nil {
		return nil, &DownloadError{Reason: pipeline.ReasonDownloadFailed, VideoID: videoID, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DownloadError{Reason: pipeline.ReasonDownloadFailed, VideoID: videoID, Err: err}
	}

	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}

	s.logger.Debug("audio downloaded", "video_id", videoID, "bytes", len(data), "duration", info.Duration)
	return &model.Audio{
		VideoID:  videoID,
		Data:     data,
		Format:   strings.TrimPrefix(filepath.Ext(path), "."),
		Title:    info.Title,
		Channel:  channel,
		Duration: info.Duration,
	}, nil
}

// classifyDownloadError maps yt-dlp stderr onto a fault reason
func classifyDownloadError(videoID string, err error) error {
	msg := err.Error()
	var cmdErr *client.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Stderr != "" {
		msg = cmdErr.Stderr
	}
	msg = strings.ToLower(msg)

	reason := pipeline.ReasonDownloadFailed
	switch {
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "private"):
		reason = pipeline.ReasonUnavailable
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "url"):
		reason = pipeline.ReasonInvalidURL
	}
	return &DownloadError{Reason: reason, VideoID: videoID, Err: err}
}

// parseVideoInfo reads the last JSON line yt-dlp printed. Missing or
// malformed info only loses metadata.
func parseVideoInfo(out []byte) videoInfo {
	var info videoInfo
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		if json.Unmarshal(line, &info) == nil {
			break
		}
	}
	return info
}

func findAudioFile(dir, format string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*."+format))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		// Post-processing may keep the source container.
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if !e.IsDir() && !strings.HasSuffix(e.Name(), ".part") {
				matches = append(matches, filepath.Join(dir, e.Name()))
			}
		}
	}
	if len(matches) == 0 {
		return "", errors.New("yt-dlp produced no audio file")
	}
	return matches[0], nil
}
