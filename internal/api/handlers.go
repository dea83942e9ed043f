package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/tracking"
)

// Handlers contains all HTTP handlers for the redirector API
type Handlers struct {
	resolver      domain.Resolver
	rules         domain.RuleService
	tracking      domain.TrackingService
	settings      domain.SettingsService
	validator     domain.Validator
	healthChecker domain.HealthChecker
}

// NewHandlers creates a new instance of API handlers
func NewHandlers(
	resolver domain.Resolver,
	rules domain.RuleService,
	tracking domain.TrackingService,
	settings domain.SettingsService,
	validator domain.Validator,
	healthChecker domain.HealthChecker,
) *Handlers {
	return &Handlers{
		resolver:      resolver,
		rules:         rules,
		tracking:      tracking,
		settings:      settings,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// ResolveRequest represents the request payload for the resolve endpoint
// @Description Request payload for URL resolution
type ResolveRequest struct {
	URL string `json:"url" query:"url" example:"https://old.example.com/news/2023/article?id=7"`
}

// ErrorResponse represents the standard error response format
// @Description Standard error response format
type ErrorResponse struct {
	Status  string `json:"status" example:"error"`
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Invalid input provided"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse represents the standard success response format
// @Description Standard success response format
type SuccessResponse struct {
	Status string `json:"status" example:"success"`
	Data   any    `json:"data"`
}

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(SuccessResponse{Status: "success", Data: data})
}

// requestContext carries the request ID into errors created downstream
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		ctx = domain.WithRequestID(ctx, rid)
	}
	return ctx
}

func requestID(c *fiber.Ctx) string {
	if rid, ok := c.Locals("requestid").(string); ok {
		return rid
	}
	return ""
}

// ResolveHandler handles GET and POST /api/resolve requests
// @Summary      Resolve a legacy URL
// @Description  Finds the most specific redirect rule for the URL and returns the target, quality and explanation
// @Tags         Resolution
// @Accept       json
// @Produce      json
// @Param        request body ResolveRequest false "URL to resolve (POST)"
// @Param        url query string false "URL to resolve (GET)"
// @Param        track query bool false "Record the access in the statistics" default(true)
// @Success      200 {object} SuccessResponse{data=domain.Decision} "Redirect decision"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/resolve [get]
// @Router       /api/resolve [post]
func (h *Handlers) ResolveHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	var req ResolveRequest
	var err error
	if c.Method() == fiber.MethodPost {
		err = c.BodyParser(&req)
	} else {
		err = c.QueryParser(&req)
	}
	if err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid request payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(ctx, "resolve_request_parsing"))
	}

	req.URL = strings.TrimSpace(req.URL)
	if err := h.validator.ValidateURL(req.URL); err != nil {
		return h.handleError(c, err, "resolve_request_validation")
	}

	decision, err := h.resolver.Resolve(ctx, req.URL)
	if err != nil {
		return h.handleError(c, err, "resolve")
	}

	if h.tracking != nil && c.QueryBool("track", true) {
		entry := tracking.EntryFor(decision, c.Get(fiber.HeaderUserAgent))
		if err := h.tracking.Record(ctx, entry); err != nil {
			// the decision is still valid without the statistics entry
			log.Warn().Err(err).Str("request_id", requestID(c)).Str("url", req.URL).Msg("Access not recorded")
		}
	}

	return success(c, fiber.StatusOK, decision)
}

// HealthHandler handles GET /health requests
// @Summary      Health check
// @Description  Returns the health status of every component. Degraded components still answer 200.
// @Tags         System
// @Produce      json
// @Success      200 {object} domain.SystemHealth "Service is healthy or degraded"
// @Failure      503 {object} domain.SystemHealth "Service is unhealthy"
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	health := h.healthChecker.CheckHealth(requestContext(c))

	status := fiber.StatusOK
	if health.Status == domain.HealthStatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(map[string]any{
		"status":     health.Status,
		"timestamp":  health.Timestamp.Format(time.RFC3339),
		"components": health.Components,
		"metrics":    health.Metrics,
		"uptime":     health.Uptime.String(),
	})
}

// handleError sends err as an error envelope. Errors that are not AppErrors
// are reported as internal errors without their message.
func (h *Handlers) handleError(c *fiber.Ctx, err error, operation string) error {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		appErr = domain.NewAppErrorWithCause(domain.ErrInternal, "Internal server error", 500, err, nil)
	}
	if appErr.Operation == "" {
		appErr = appErr.WithContext(requestContext(c), operation)
	}

	if appErr.StatusCode >= 500 {
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("operation", operation).
			Str("code", appErr.Code).
			Msg("Request failed")
		// internal details such as file paths stay in the log
		return h.sendError(c, &domain.AppError{Code: appErr.Code, Message: appErr.Message, StatusCode: appErr.StatusCode})
	}
	return h.sendError(c, appErr)
}

// sendError sends a standardized error response
func (h *Handlers) sendError(c *fiber.Ctx, appErr *domain.AppError) error {
	return c.Status(appErr.StatusCode).JSON(ErrorResponse{
		Status:  "error",
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func (h *Handlers) invalidPayload(c *fiber.Ctx, err error, operation string) error {
	return h.sendError(c, domain.NewAppError(
		domain.ErrInvalidInput,
		"Invalid JSON payload",
		400,
		map[string]string{"error": err.Error()},
	).WithContext(requestContext(c), operation))
}
