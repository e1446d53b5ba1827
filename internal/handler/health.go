package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PipelineStats reports executor load
type PipelineStats interface {
	Capacity() int
	Stats() (inFlight, queued int)
}

// HealthHandler reports process and dependency status
type HealthHandler struct {
	redis    *redis.Client
	pipeline PipelineStats
	services fiber.Map
}

// NewHealthHandler creates a health handler. services lists static facts
// such as which providers are configured.
func NewHealthHandler(redisClient *redis.Client, pipeline PipelineStats, services fiber.Map) *HealthHandler {
	if services == nil {
		services = fiber.Map{}
	}
	return &HealthHandler{redis: redisClient, pipeline: pipeline, services: services}
}

// Check handles GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	services := fiber.Map{}
	for k, v := range h.services {
		services[k] = v
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		defer cancel()
		services["redis"] = h.redis.Ping(ctx).Err() == nil
	}

	body := fiber.Map{
		"status":   "ok",
		"services": services,
	}
	if h.pipeline != nil {
		inFlight, queued := h.pipeline.Stats()
		body["pipeline"] = fiber.Map{
			"workers":   h.pipeline.Capacity(),
			"in_flight": inFlight,
			"queued":    queued,
		}
	}
	return c.JSON(body)
}
