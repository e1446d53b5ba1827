package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/videorecap/api/internal/client"
	"github.com/videorecap/api/internal/config"
	"github.com/videorecap/api/internal/model"
	"github.com/videorecap/api/internal/pipeline"
)

// ErrUnsupportedAudio is returned for empty or unreadable audio
var ErrUnsupportedAudio = &audioError{msg: "unsupported or empty audio"}

type audioError struct{ msg string }

func (e *audioError) Error() string       { return e.msg }
func (e *audioError) FaultReason() string { return pipeline.ReasonUnsupportedAudio }

// SpeechEngine transcribes one audio file within the upload limit
type SpeechEngine interface {
	TranscribeFile(ctx context.Context, filename string, data []byte) (*model.Transcript, error)
}

// Chunk is one slice of a long recording
type Chunk struct {
	Index    int
	Filename string
	Data     []byte
	Offset   float64 // nominal start in seconds; cuts may drift from it
}

// Splitter cuts audio into chunks small enough for a SpeechEngine
type Splitter interface {
	Split(ctx context.Context, audio *model.Audio) ([]Chunk, error)
}

// Transcriber converts audio into a transcript, chunking large files and
// transcribing the chunks concurrently.
type Transcriber struct {
	engine        SpeechEngine
	splitter      Splitter
	maxBytes      int
	maxConcurrent int
	logger        *slog.Logger
	now           func() time.Time
}

// NewTranscriber creates a transcriber over engine
func NewTranscriber(engine SpeechEngine, splitter Splitter, media config.MediaConfig, tc config.TranscriptionConfig, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := tc.MaxConcurrentChunks
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Transcriber{
		engine:        engine,
		splitter:      splitter,
		maxBytes:      media.MaxUploadBytes(),
		maxConcurrent: maxConcurrent,
		logger:        logger,
		now:           time.Now,
	}
}

// Transcribe returns the merged transcript for audio
func (t *Transcriber) Transcribe(ctx context.Context, audio *model.Audio) (*model.Transcript, error) {
	if audio == nil || len(audio.Data) == 0 {
		return nil, ErrUnsupportedAudio
	}

	if t.maxBytes <= 0 || len(audio.Data) <= t.maxBytes {
		tr, err := t.engine.TranscribeFile(ctx, audio.Filename(), audio.Data)
		if err != nil {
			return nil, err
		}
		tr.TranscribedAt = t.now()
		return tr, nil
	}

	chunks, err := t.splitter.Split(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("split audio: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrUnsupportedAudio
	}
	t.logger.Info("audio chunked", "video_id", audio.VideoID, "chunks", len(chunks), "bytes", len(audio.Data))

	results := make([]*model.Transcript, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.maxConcurrent)
	for i, chunk := range chunks {
		g.Go(func() error {
			tr, err := t.engine.TranscribeFile(gctx, chunk.Filename, chunk.Data)
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", chunk.Index+1, len(chunks), err)
			}
			results[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeTranscripts(chunks, results)
	merged.TranscribedAt = t.now()
	return merged, nil
}

// mergeTranscripts concatenates chunk results in order, shifting segment
// times by each chunk's offset
func mergeTranscripts(chunks []Chunk, results []*model.Transcript) *model.Transcript {
	out := &model.Transcript{}

	// Stream-copy segments cut on frame boundaries, so chunks are placed by
	// the measured length of the ones before them. A chunk without a
	// reported duration resets placement to the nominal offsets.
	next, measured := 0.0, false
	for i, tr := range results {
		offset := chunks[i].Offset
		if measured {
			offset = next
		}
		if tr == nil {
			measured = false
			continue
		}
		measured = tr.Duration > 0
		next = offset + tr.Duration

		if out.Language == "" {
			out.Language = tr.Language
		}
		out.Duration += tr.Duration
		for _, seg := range tr.Segments {
			if seg.Start != nil {
				v := *seg.Start + offset
				seg.Start = &v
			}
			if seg.End != nil {
				v := *seg.End + offset
				seg.End = &v
			}
			out.Segments = append(out.Segments, seg)
		}
	}
	return out
}

// FFmpegSplitter splits audio into fixed-length segments without re-encoding
type FFmpegSplitter struct {
	runner       client.CommandRunner
	ffmpegPath   string
	workDir      string
	chunkSeconds int
}

// NewFFmpegSplitter creates a splitter from media settings
func NewFFmpegSplitter(runner client.CommandRunner, cfg config.MediaConfig) *FFmpegSplitter {
	return &FFmpegSplitter{
		runner:       runner,
		ffmpegPath:   cfg.FFmpegPath,
		workDir:      cfg.WorkDir,
		chunkSeconds: cfg.ChunkSeconds,
	}
}

// Split writes the audio to a temp directory and cuts it with ffmpeg
func (s *FFmpegSplitter) Split(ctx context.Context, audio *model.Audio) ([]Chunk, error) {
	dir, err := os.MkdirTemp(s.workDir, "chunks-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := audio.Format
	if ext == "" {
		ext = "mp3"
	}
	input := filepath.Join(dir, "input."+ext)
	if err := os.WriteFile(input, audio.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	_, err = s.runner.Run(ctx, dir, s.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-f", "segment",
		"-segment_time", strconv.Itoa(s.chunkSeconds),
		"-reset_timestamps", "1",
		"-c", "copy",
		filepath.Join(dir, "chunk_%03d."+ext),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var cmdErr *client.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(strings.ToLower(cmdErr.Stderr), "invalid data") {
			return nil, ErrUnsupportedAudio
		}
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(dir, "chunk_*."+ext))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	chunks := make([]Chunk, 0, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		chunks = append(chunks, Chunk{
			Index:    i,
			Filename: fmt.Sprintf("%s_%03d.%s", audio.VideoID, i, ext),
			Data:     data,
			Offset:   float64(i * s.chunkSeconds),
		})
	}
	return chunks, nil
}

// groqEngine transcribes with Groq Whisper
type groqEngine struct {
	client   *client.GroqClient
	language string
}

// NewGroqEngine returns a SpeechEngine backed by Groq Whisper
func NewGroqEngine(c *client.GroqClient, language string) SpeechEngine {
	return &groqEngine{client: c, language: language}
}

func (e *groqEngine) TranscribeFile(ctx context.Context, filename string, data []byte) (*model.Transcript, error) {
	resp, err := e.client.Transcribe(ctx, filename, data, e.language)
	if err != nil {
		return nil, err
	}

	tr := &model.Transcript{Language: resp.Language, Duration: resp.Duration}
	for _, s := range resp.Segments {
		start, end := s.Start, s.End
		tr.Segments = append(tr.Segments, model.Segment{Text: s.Text, Start: &start, End: &end})
	}
	if len(tr.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		tr.Segments = []model.Segment{{Text: resp.Text}}
	}
	return tr, nil
}

// deepgramEngine transcribes with Deepgram prerecorded audio
type deepgramEngine struct {
	client   *client.DeepgramClient
	language string
}

// NewDeepgramEngine returns a SpeechEngine backed by Deepgram
func NewDeepgramEngine(c *client.DeepgramClient, language string) SpeechEngine {
	return &deepgramEngine{client: c, language: language}
}

func (e *deepgramEngine) TranscribeFile(ctx context.Context, filename string, data []byte) (*model.Transcript, error) {
	resp, err := e.client.Transcribe(ctx, data, mimeTypeFor(filename), e.language)
	if err != nil {
		return nil, err
	}

	tr := &model.Transcript{Language: resp.Language(), Duration: resp.Metadata.Duration}
	for _, u := range resp.Results.Utterances {
		start, end := u.Start, u.End
		tr.Segments = append(tr.Segments, model.Segment{Text: u.Transcript, Start: &start, End: &end})
	}
	if len(tr.Segments) == 0 && strings.TrimSpace(resp.Transcript()) != "" {
		tr.Segments = []model.Segment{{Text: resp.Transcript()}}
	}
	return tr, nil
}

func mimeTypeFor(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "m4a", "mp4":
		return "audio/mp4"
	case "wav":
		return "audio/wav"
	case "webm":
		return "audio/webm"
	case "ogg", "opus":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
