package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/MagnunAVF/boost-shortener/internal"
	applog "github.com/MagnunAVF/boost-shortener/internal/logger"
)

// Pinger reports connectivity of a backing dependency for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the HTTP layer needs, injected at startup.
type Deps struct {
	Service *internal.Service
	// Clicks is optional; when nil no click events are published.
	Clicks internal.ClickPublisher
	// DB and Cache are optional health check targets.
	DB    Pinger
	Cache Pinger
	// BaseURL is the public prefix of returned short URLs, e.g. "http://localhost:3000".
	BaseURL string
	// RateLimitMax requests per RateLimitWindow per client IP. Zero disables limiting.
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// NewApp builds the Fiber application with all routes and middleware wired.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New()
	app.Use(applog.FiberMiddleware())
	app.Use(cors.New())
	if deps.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RateLimitMax,
			Expiration: deps.RateLimitWindow,
		}))
	}

	app.Get("/health", handleHealth(deps))
	app.Post("/api/urls", handleShorten(deps))
	app.Get("/api/urls", handleList(deps))
	app.Get("/stats/:short_code", handleStats(deps))
	// Catch-all, registered last so the fixed routes above win.
	app.Get("/:short_code", handleRedirect(deps))

	return app
}
