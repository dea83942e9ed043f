// Package api exposes the redirector over HTTP.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/middleware"
)

// RouterConfig contains configuration for the HTTP router
type RouterConfig struct {
	CORSOrigins    []string
	BodyLimit      int
	RateLimitRPS   int
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RouterDependencies contains all dependencies needed by the router
type RouterDependencies struct {
	Resolver      domain.Resolver
	Rules         domain.RuleService
	Tracking      domain.TrackingService
	Settings      domain.SettingsService
	Validator     domain.Validator
	HealthChecker domain.HealthChecker
	// Metrics serves the Prometheus exposition; /metrics is not mounted when nil
	Metrics http.Handler
}

// RouterResult contains the configured app and cleanup function
type RouterResult struct {
	App     *fiber.App
	Cleanup func()
}

// SetupRouter creates and configures the Fiber app with all routes and middleware
func SetupRouter(deps RouterDependencies, config RouterConfig) *RouterResult {
	app := fiber.New(fiber.Config{
		BodyLimit:    config.BodyLimit,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorHandler: customErrorHandler,
	})

	handlers := NewHandlers(deps.Resolver, deps.Rules, deps.Tracking, deps.Settings, deps.Validator, deps.HealthChecker)

	// Middleware pipeline, order matters

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	app.Use(structuredLoggingMiddleware())

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error().
				Str("request_id", requestID(c)).
				Interface("panic", e).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Msg("Panic recovered")
		},
	}))

	app.Use(securityHeadersMiddleware())

	// rate limiting runs before CORS so preflights count too
	var stopRateLimiter func()
	if config.RateLimitRPS > 0 {
		rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
		stopRateLimiter = rateLimiter.StartCleanupRoutine()
		app.Use(rateLimiter.Middleware())
	}

	if len(config.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(config.CORSOrigins, ","),
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
			ExposeHeaders:    "Content-Disposition,X-Request-ID",
			AllowCredentials: false,
			MaxAge:           86400,
		}))
	}

	public := app.Group("/api")

	public.Get("/resolve", handlers.ResolveHandler)
	public.Post("/resolve", handlers.ResolveHandler)

	admin := public.Group("/admin")

	// static segments are registered before /rules/:id
	admin.Get("/rules", handlers.ListRulesHandler)
	admin.Post("/rules", handlers.CreateRuleHandler)
	admin.Delete("/rules", handlers.ClearRulesHandler)
	admin.Post("/rules/bulk-delete", handlers.BulkDeleteHandler)
	admin.Post("/rules/import", handlers.ImportRulesHandler)
	admin.Get("/rules/export", handlers.ExportRulesHandler)
	admin.Get("/rules/:id", handlers.GetRuleHandler)
	admin.Put("/rules/:id", handlers.UpdateRuleHandler)
	admin.Delete("/rules/:id", handlers.DeleteRuleHandler)

	admin.Get("/stats", handlers.StatsHandler)
	admin.Delete("/stats", handlers.ClearStatsHandler)
	admin.Get("/stats/entries", handlers.EntriesHandler)
	admin.Get("/stats/top", handlers.TopURLsHandler)

	admin.Get("/settings", handlers.GetSettingsHandler)
	admin.Put("/settings", handlers.UpdateSettingsHandler)

	admin.Post("/maintenance/rebuild-cache", handlers.RebuildCacheHandler)

	app.Get("/health", handlers.HealthHandler)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	app.Get("/swagger/*", swagger.HandlerDefault)

	cleanup := func() {
		if stopRateLimiter != nil {
			stopRateLimiter()
		}
	}

	return &RouterResult{App: app, Cleanup: cleanup}
}

// customErrorHandler handles Fiber framework errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	switch code {
	case fiber.StatusRequestEntityTooLarge:
		return c.Status(413).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrTooLarge,
			Message: "Request payload too large",
		})
	case fiber.StatusBadRequest:
		return c.Status(400).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrInvalidInput,
			Message: message,
		})
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return c.Status(code).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrNotFound,
			Message: message,
		})
	default:
		return c.Status(code).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrInternal,
			Message: message,
		})
	}
}

// structuredLoggingMiddleware logs one zerolog event per request
func structuredLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		requestID := "unknown"
		if rid, ok := c.Locals("requestid").(string); ok {
			requestID = rid
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logEvent := log.Info()
		switch {
		case status >= 500:
			logEvent = log.Error()
		case status >= 400:
			logEvent = log.Warn()
		case c.Path() == "/health" || c.Path() == "/metrics":
			logEvent = log.Debug()
		}

		logEvent.
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.IP()).
			Str("user_agent", c.Get("User-Agent")).
			Int("body_size", len(c.Body())).
			Int("response_size", len(c.Response().Body())).
			Msg("HTTP request processed")

		return err
	}
}

// securityHeadersMiddleware adds security headers (HSTS, XSS protection)
func securityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		return c.Next()
	}
}
