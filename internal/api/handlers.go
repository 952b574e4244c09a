package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/boost-shortener/internal"
)

type shortenRequest struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func handleShorten(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req shortenRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		expiresAt, problems := validateShortenRequest(req)
		if len(problems) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": strings.Join(problems, ", ")})
		}

		record, err := deps.Service.CreateShortURL(c.Context(), req.URL, expiresAt)
		if err != nil {
			slog.Error("failed to create short url", "err", err)
			return internalError(c)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"code":     record.ShortCode,
			"shortUrl": fmt.Sprintf("%s/%s", deps.BaseURL, record.ShortCode),
		})
	}
}

// validateShortenRequest collects every problem so the client sees the full
// joined list in one response.
func validateShortenRequest(req shortenRequest) (*time.Time, []string) {
	var problems []string

	u, err := url.Parse(req.URL)
	if req.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, "url must be a valid http(s) URL")
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		switch {
		case err != nil:
			problems = append(problems, "expiresAt must be an ISO-8601 timestamp")
		case !t.After(time.Now()):
			problems = append(problems, "Expiration date must be in the future")
		default:
			expiresAt = &t
		}
	}

	return expiresAt, problems
}

func handleRedirect(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		shortCode := c.Params("short_code")

		longURL, err := deps.Service.ResolveShortCode(c.Context(), shortCode)
		switch {
		case errors.Is(err, internal.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "URL not found"})
		case errors.Is(err, internal.ErrExpired):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "URL expired"})
		case err != nil:
			slog.Error("failed to resolve short code", "code", shortCode, "err", err)
			return internalError(c)
		}

		if deps.Clicks != nil {
			userAgent := c.Get("User-Agent")
			if userAgent == "" {
				userAgent = "Unknown"
			}
			go publishClickEvent(deps.Clicks, shortCode, userAgent)
		}

		return c.Redirect(longURL, fiber.StatusFound)
	}
}

func publishClickEvent(clicks internal.ClickPublisher, shortCode, userAgent string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event := internal.ClickEvent{
		ShortCode: shortCode,
		Timestamp: time.Now(),
		UserAgent: userAgent,
	}
	if err := clicks.PublishClick(ctx, event); err != nil {
		slog.Error("failed to publish click event", "code", shortCode, "err", err)
	}
}

func handleList(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := deps.Service.ListURLs(c.Context())
		if err != nil {
			slog.Error("failed to list urls", "err", err)
			return internalError(c)
		}
		if records == nil {
			records = []internal.URL{}
		}
		return c.JSON(records)
	}
}

func handleStats(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		shortCode := c.Params("short_code")

		stats, err := deps.Service.ClickStats(c.Context(), shortCode)
		switch {
		case errors.Is(err, internal.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "URL not found"})
		case err != nil:
			slog.Error("failed to load click stats", "code", shortCode, "err", err)
			return internalError(c)
		}
		return c.JSON(stats)
	}
}

func handleHealth(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "ok"
		checks := fiber.Map{}
		for name, dep := range map[string]Pinger{"db": deps.DB, "cache": deps.Cache} {
			if dep == nil {
				continue
			}
			if err := dep.Ping(c.Context()); err != nil {
				checks[name] = "unhealthy"
				status = "degraded"
			} else {
				checks[name] = "healthy"
			}
		}
		checks["status"] = status
		return c.JSON(checks)
	}
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}
