package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/videorecap/api/internal/client"
	"github.com/videorecap/api/internal/config"
	"github.com/videorecap/api/internal/handler"
	"github.com/videorecap/api/internal/middleware"
	"github.com/videorecap/api/internal/pipeline"
	"github.com/videorecap/api/internal/render"
	"github.com/videorecap/api/internal/service"
	ws "github.com/videorecap/api/internal/websocket"
	"github.com/videorecap/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Server)
	slog.SetDefault(log)

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available; jobs and rate limits degraded", "error", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Pipeline
	executor := pipeline.NewExecutor(cfg.Pipeline.Workers)
	runner := pipeline.NewRunner(executor, pipeline.StageTimeouts{
		Download:   cfg.Pipeline.DownloadTimeout,
		Transcribe: cfg.Pipeline.TranscribeTimeout,
		Summarize:  cfg.Pipeline.SummarizeTimeout,
		Render:     cfg.Pipeline.RenderTimeout,
	}, log)

	deps, providers, err := buildCollaborators(cfg, log)
	if err != nil {
		log.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	orchestrator := pipeline.NewOrchestrator(runner, deps, log)

	// Initialize WebSocket hub
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := ws.NewHub(log)
	go hub.Run(hubCtx)

	// Initialize services
	summaryService := service.NewSummaryService(orchestrator, cfg.Pipeline.HeartbeatInterval, log)
	jobService := service.NewJobService(redisClient, asynqClient, cfg.Worker.Queue)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handler.Routes{
		Summary:        handler.NewSummaryHandler(summaryService, jobService, hub, handler.NewValidator(), log),
		Health:         handler.NewHealthHandler(redisClient, executor, providers),
		Authenticate:   authMiddleware.Authenticate(),
		AuthenticateWS: authMiddleware.AuthenticateWebSocket(),
		SummaryLimit:   rateLimiter.SummaryLimit(cfg.RateLimit.SummaryPerHour),
	}.Mount(app)

	// Start Asynq worker server
	workerServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      map[string]int{cfg.Worker.Queue: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSummary, worker.NewSummaryWorker(summaryService, jobService, hub, log).ProcessTask)
	if err := workerServer.Start(mux); err != nil {
		log.Warn("asynq worker not started", "error", err)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "env", cfg.Server.Env, "workers", executor.Capacity())
	if err := app.Listen(addr); err != nil {
		log.Error("server error", "error", err)
	}

	workerServer.Shutdown()

	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := executor.Shutdown(drainCtx); err != nil {
		log.Warn("pipeline executor did not drain", "error", err)
	}
	log.Info("server stopped")
}

// buildCollaborators selects the engines named in cfg. The returned map
// describes them for the health endpoint.
func buildCollaborators(cfg *config.Config, log *slog.Logger) (pipeline.Collaborators, fiber.Map, error) {
	commands := client.NewCommandRunner()
	groqClient := client.NewGroqClient(&cfg.Groq)

	var engine service.SpeechEngine
	switch cfg.Transcription.Provider {
	case "deepgram":
		engine = service.NewDeepgramEngine(client.NewDeepgramClient(&cfg.Deepgram), cfg.Transcription.Language)
	default:
		engine = service.NewGroqEngine(groqClient, cfg.Transcription.Language)
	}

	var llm service.LLM
	switch cfg.Summarizer.Provider {
	case "gemini":
		llm = service.NewGeminiLLM(client.NewGeminiClient(&cfg.Gemini), cfg.Summarizer)
	default:
		llm = service.NewGroqLLM(groqClient, cfg.Summarizer)
	}

	fonts, err := render.LoadFonts(cfg.Render.FontPath, cfg.Render.BoldFontPath)
	if err != nil {
		return pipeline.Collaborators{}, nil, fmt.Errorf("renderer: %w", err)
	}
	renderer, err := render.New(cfg.Render.Format, cfg.Media.WorkDir, fonts)
	if err != nil {
		return pipeline.Collaborators{}, nil, fmt.Errorf("renderer: %w", err)
	}

	deps := pipeline.Collaborators{
		Audio:      service.NewAudioSource(commands, cfg.Media, log),
		STT:        service.NewTranscriber(engine, service.NewFFmpegSplitter(commands, cfg.Media), cfg.Media, cfg.Transcription, log),
		Summarizer: service.NewSummarizer(llm, log),
		Renderer:   renderer,
	}
	providers := fiber.Map{
		"transcription": cfg.Transcription.Provider,
		"summarizer":    cfg.Summarizer.Provider,
		"render":        cfg.Render.Format,
		"groq":          groqClient.IsConfigured(),
		"auth":          cfg.JWT.Secret != "",
	}
	return deps, providers, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
