package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	JWT           JWTConfig
	RateLimit     RateLimitConfig
	Pipeline      PipelineConfig
	Media         MediaConfig
	Transcription TranscriptionConfig
	Groq          GroqConfig
	Deepgram      DeepgramConfig
	Summarizer    SummarizerConfig
	Gemini        GeminiConfig
	Render        RenderConfig
	Worker        WorkerConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	BodyLimitMB int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	SummaryPerHour int
}

// PipelineConfig sizes the shared executor and bounds each stage
type PipelineConfig struct {
	Workers           int
	DownloadTimeout   time.Duration
	TranscribeTimeout time.Duration
	SummarizeTimeout  time.Duration
	RenderTimeout     time.Duration
	HeartbeatInterval time.Duration
}

type MediaConfig struct {
	YtDlpPath    string
	FFmpegPath   string
	AudioFormat  string
	WorkDir      string
	MaxUploadMB  int
	ChunkSeconds int
}

// MaxUploadBytes is the largest audio payload sent to an engine in one call
func (m MediaConfig) MaxUploadBytes() int {
	return m.MaxUploadMB * 1024 * 1024
}

type TranscriptionConfig struct {
	Provider            string // groq | deepgram
	Language            string
	MaxConcurrentChunks int
}

type GroqConfig struct {
	APIKey       string
	BaseURL      string
	ChatModel    string
	WhisperModel string
}

type DeepgramConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SummarizerConfig struct {
	Provider    string // groq | gemini
	Temperature float64
	MaxTokens   int
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type RenderConfig struct {
	Format       string // pdf | docx
	FontPath     string // TrueType face for PDF text; bundled DejaVu Sans when empty
	BoldFontPath string
}

type WorkerConfig struct {
	Concurrency int
	Queue       string
}

func Load() (*Config, error) {
	// Resolve Docker secrets (_FILE env vars) before viper reads env
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("DEEPGRAM_API_KEY")
	readSecret("GEMINI_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Explicit env bindings for nested keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.summary_per_hour", "RATELIMIT_SUMMARY_PER_HOUR")
	_ = viper.BindEnv("pipeline.workers", "PIPELINE_WORKERS")
	_ = viper.BindEnv("pipeline.download_timeout", "PIPELINE_DOWNLOAD_TIMEOUT")
	_ = viper.BindEnv("pipeline.transcribe_timeout", "PIPELINE_TRANSCRIBE_TIMEOUT")
	_ = viper.BindEnv("pipeline.summarize_timeout", "PIPELINE_SUMMARIZE_TIMEOUT")
	_ = viper.BindEnv("pipeline.render_timeout", "PIPELINE_RENDER_TIMEOUT")
	_ = viper.BindEnv("pipeline.heartbeat_interval", "PIPELINE_HEARTBEAT_INTERVAL")
	_ = viper.BindEnv("media.ytdlp_path", "YTDLP_PATH")
	_ = viper.BindEnv("media.ffmpeg_path", "FFMPEG_PATH")
	_ = viper.BindEnv("media.audio_format", "AUDIO_FORMAT")
	_ = viper.BindEnv("media.work_dir", "MEDIA_WORK_DIR")
	_ = viper.BindEnv("media.max_upload_mb", "MAX_UPLOAD_MB")
	_ = viper.BindEnv("media.chunk_seconds", "CHUNK_SECONDS")
	_ = viper.BindEnv("transcription.provider", "TRANSCRIPTION_PROVIDER")
	_ = viper.BindEnv("transcription.language", "TRANSCRIPTION_LANGUAGE")
	_ = viper.BindEnv("transcription.max_concurrent_chunks", "TRANSCRIPTION_MAX_CONCURRENT_CHUNKS")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.chat_model", "GROQ_MODEL")
	_ = viper.BindEnv("groq.whisper_model", "GROQ_WHISPER_MODEL")
	_ = viper.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	_ = viper.BindEnv("deepgram.base_url", "DEEPGRAM_BASE_URL")
	_ = viper.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	_ = viper.BindEnv("summarizer.provider", "SUMMARIZER_PROVIDER")
	_ = viper.BindEnv("summarizer.temperature", "SUMMARIZER_TEMPERATURE")
	_ = viper.BindEnv("summarizer.max_tokens", "SUMMARIZER_MAX_TOKENS")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.model", "GEMINI_MODEL")
	_ = viper.BindEnv("render.format", "RENDER_FORMAT")
	_ = viper.BindEnv("render.font_path", "RENDER_FONT_PATH")
	_ = viper.BindEnv("render.bold_font_path", "RENDER_BOLD_FONT_PATH")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("worker.queue", "WORKER_QUEUE")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.body_limit_mb", 1)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.summary_per_hour", 20)

	// Pipeline defaults (seconds)
	viper.SetDefault("pipeline.workers", 5)
	viper.SetDefault("pipeline.download_timeout", 300)
	viper.SetDefault("pipeline.transcribe_timeout", 600)
	viper.SetDefault("pipeline.summarize_timeout", 180)
	viper.SetDefault("pipeline.render_timeout", 60)
	viper.SetDefault("pipeline.heartbeat_interval", 15)

	viper.SetDefault("media.ytdlp_path", "yt-dlp")
	viper.SetDefault("media.ffmpeg_path", "ffmpeg")
	viper.SetDefault("media.audio_format", "mp3")
	viper.SetDefault("media.work_dir", os.TempDir())
	viper.SetDefault("media.max_upload_mb", 25)
	viper.SetDefault("media.chunk_seconds", 600)

	viper.SetDefault("transcription.provider", "groq")
	viper.SetDefault("transcription.max_concurrent_chunks", 3)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.chat_model", "llama-3.3-70b-versatile")
	viper.SetDefault("groq.whisper_model", "whisper-large-v3")

	viper.SetDefault("deepgram.base_url", "https://api.deepgram.com")
	viper.SetDefault("deepgram.model", "nova-2")

	viper.SetDefault("summarizer.provider", "groq")
	viper.SetDefault("summarizer.temperature", 0.3)
	viper.SetDefault("summarizer.max_tokens", 2048)
	viper.SetDefault("gemini.model", "gemini-2.0-flash")

	viper.SetDefault("render.format", "pdf")
	viper.SetDefault("worker.concurrency", 2)
	viper.SetDefault("worker.queue", "summary")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Env:         viper.GetString("server.env"),
			LogLevel:    viper.GetString("server.log_level"),
			BodyLimitMB: viper.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			SummaryPerHour: viper.GetInt("ratelimit.summary_per_hour"),
		},
		Pipeline: PipelineConfig{
			Workers:           viper.GetInt("pipeline.workers"),
			DownloadTimeout:   seconds("pipeline.download_timeout"),
			TranscribeTimeout: seconds("pipeline.transcribe_timeout"),
			SummarizeTimeout:  seconds("pipeline.summarize_timeout"),
			RenderTimeout:     seconds("pipeline.render_timeout"),
			HeartbeatInterval: seconds("pipeline.heartbeat_interval"),
		},
		Media: MediaConfig{
			YtDlpPath:    viper.GetString("media.ytdlp_path"),
			FFmpegPath:   viper.GetString("media.ffmpeg_path"),
			AudioFormat:  viper.GetString("media.audio_format"),
			WorkDir:      viper.GetString("media.work_dir"),
			MaxUploadMB:  viper.GetInt("media.max_upload_mb"),
			ChunkSeconds: viper.GetInt("media.chunk_seconds"),
		},
		Transcription: TranscriptionConfig{
			Provider:            strings.ToLower(viper.GetString("transcription.provider")),
			Language:            viper.GetString("transcription.language"),
			MaxConcurrentChunks: viper.GetInt("transcription.max_concurrent_chunks"),
		},
		Groq: GroqConfig{
			APIKey:       viper.GetString("groq.api_key"),
			BaseURL:      viper.GetString("groq.base_url"),
			ChatModel:    viper.GetString("groq.chat_model"),
			WhisperModel: viper.GetString("groq.whisper_model"),
		},
		Deepgram: DeepgramConfig{
			APIKey:  viper.GetString("deepgram.api_key"),
			BaseURL: viper.GetString("deepgram.base_url"),
			Model:   viper.GetString("deepgram.model"),
		},
		Summarizer: SummarizerConfig{
			Provider:    strings.ToLower(viper.GetString("summarizer.provider")),
			Temperature: viper.GetFloat64("summarizer.temperature"),
			MaxTokens:   viper.GetInt("summarizer.max_tokens"),
		},
		Gemini: GeminiConfig{
			APIKey: viper.GetString("gemini.api_key"),
			Model:  viper.GetString("gemini.model"),
		},
		Render: RenderConfig{
			Format:       strings.ToLower(viper.GetString("render.format")),
			FontPath:     viper.GetString("render.font_path"),
			BoldFontPath: viper.GetString("render.bold_font_path"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
			Queue:       viper.GetString("worker.queue"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func seconds(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	switch c.Transcription.Provider {
	case "groq", "deepgram":
	default:
		return fmt.Errorf("unknown transcription provider %q", c.Transcription.Provider)
	}
	switch c.Summarizer.Provider {
	case "groq", "gemini":
	default:
		return fmt.Errorf("unknown summarizer provider %q", c.Summarizer.Provider)
	}
	switch c.Render.Format {
	case "pdf", "docx":
	default:
		return fmt.Errorf("unknown render format %q", c.Render.Format)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Media.MaxUploadMB <= 0 || c.Media.ChunkSeconds <= 0 {
		return fmt.Errorf("media.max_upload_mb and media.chunk_seconds must be positive")
	}
	if c.Transcription.MaxConcurrentChunks <= 0 {
		return fmt.Errorf("transcription.max_concurrent_chunks must be positive")
	}
	return nil
}
