package handler

import "github.com/gofiber/fiber/v2"

// Routes wires handlers and middleware onto an app
type Routes struct {
	Summary *SummaryHandler
	Health  *HealthHandler

	// Authenticate guards /api; AuthenticateWS guards /ws
	Authenticate   fiber.Handler
	AuthenticateWS fiber.Handler

	// SummaryLimit throttles run-starting routes; nil disables it
	SummaryLimit fiber.Handler
}

// Mount registers every route on app
func (r Routes) Mount(app *fiber.App) {
	limit := r.SummaryLimit
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	app.Get("/health", r.Health.Check)

	api := app.Group("/api", r.Authenticate)

	summary := api.Group("/summary")
	summary.Post("/jobs", limit, r.Summary.StartJob)
	summary.Get("/jobs/:jobId", r.Summary.JobStatus)
	summary.Get("/:videoId/stream", limit, r.Summary.Stream)

	// Legacy path used by the browser extension
	app.Get("/audio/summary/:videoId", limit, r.Summary.Stream)

	app.Use("/ws", RequireUpgrade)
	app.Get("/ws/summary/:jobId", r.AuthenticateWS, r.Summary.Watch())
}
