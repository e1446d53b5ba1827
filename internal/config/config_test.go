package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8000" {
		t.Errorf("port = %q, want 8000", cfg.Server.Port)
	}
	if cfg.Pipeline.Workers != 5 {
		t.Errorf("workers = %d, want 5", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.TranscribeTimeout != 600*time.Second {
		t.Errorf("transcribe timeout = %s, want 10m", cfg.Pipeline.TranscribeTimeout)
	}
	if cfg.Media.MaxUploadBytes() != 25*1024*1024 {
		t.Errorf("max upload = %d", cfg.Media.MaxUploadBytes())
	}
	if cfg.Render.Format != "pdf" {
		t.Errorf("render format = %q, want pdf", cfg.Render.Format)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("PIPELINE_WORKERS", "9")
	t.Setenv("RENDER_FORMAT", "DOCX")
	t.Setenv("SUMMARIZER_PROVIDER", "gemini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.Workers != 9 {
		t.Errorf("workers = %d, want 9", cfg.Pipeline.Workers)
	}
	if cfg.Render.Format != "docx" {
		t.Errorf("render format = %q, want docx", cfg.Render.Format)
	}
	if cfg.Summarizer.Provider != "gemini" {
		t.Errorf("summarizer = %q, want gemini", cfg.Summarizer.Provider)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("TRANSCRIPTION_PROVIDER", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestReadSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groq_key")
	if err := os.WriteFile(path, []byte("gsk_secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GROQ_API_KEY_FILE", path)

	readSecret("GROQ_API_KEY")
	if got := os.Getenv("GROQ_API_KEY"); got != "gsk_secret" {
		t.Errorf("GROQ_API_KEY = %q, want gsk_secret", got)
	}
}

func TestReadSecretKeepsDirectValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "direct")
	t.Setenv("GEMINI_API_KEY_FILE", path)

	readSecret("GEMINI_API_KEY")
	if got := os.Getenv("GEMINI_API_KEY"); got != "direct" {
		t.Errorf("GEMINI_API_KEY = %q, want direct", got)
	}
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := &Config{
		Transcription: TranscriptionConfig{Provider: "groq", MaxConcurrentChunks: 3},
		Summarizer:    SummarizerConfig{Provider: "groq"},
		Render:        RenderConfig{Format: "pdf"},
		Media:         MediaConfig{MaxUploadMB: 25, ChunkSeconds: 600},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}
	cfg.Pipeline.Workers = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
