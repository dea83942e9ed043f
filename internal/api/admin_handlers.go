package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
)

// Settings update modes
const (
	ModeMerge   = "merge"
	ModeReplace = "replace"
)

// StatsHandler handles GET /api/admin/stats requests
// @Summary      Access totals
// @Description  Counts recorded accesses overall and in the last 24 hours and 7 days. The start page is not counted.
// @Tags         Statistics
// @Produce      json
// @Success      200 {object} SuccessResponse{data=domain.TrackingStats} "Totals"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/stats [get]
func (h *Handlers) StatsHandler(c *fiber.Ctx) error {
	stats, err := h.tracking.Stats(requestContext(c))
	if err != nil {
		return h.handleError(c, err, "tracking_stats")
	}
	return success(c, fiber.StatusOK, stats)
}

// EntriesHandler handles GET /api/admin/stats/entries requests
// @Summary      Access log
// @Description  Returns one page of access log entries joined with the rules they matched. Newest first by default.
// @Tags         Statistics
// @Produce      json
// @Param        search query string false "Case-insensitive search term"
// @Param        sortBy query string false "timestamp, oldUrl, newUrl, path, userAgent or matchQuality" default(timestamp)
// @Param        sortOrder query string false "asc or desc" default(desc)
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Page size (max 500)" default(50)
// @Param        ruleFilter query string false "all, with_rule or no_rule" default(all)
// @Param        minQuality query int false "Lowest match quality"
// @Param        maxQuality query int false "Highest match quality"
// @Success      200 {object} SuccessResponse{data=domain.Page[domain.EnrichedEntry]} "One page of entries"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/stats/entries [get]
func (h *Handlers) EntriesHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	var q domain.EntryQuery
	if err := c.QueryParser(&q); err != nil {
		return h.invalidPayload(c, err, "tracking_entries_parsing")
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		return h.handleError(c, err, "tracking_entries_validation")
	}

	page, err := h.tracking.Entries(ctx, q)
	if err != nil {
		return h.handleError(c, err, "tracking_entries")
	}
	return success(c, fiber.StatusOK, page)
}

// TopURLsHandler handles GET /api/admin/stats/top requests
// @Summary      Most accessed paths
// @Description  Ranks paths by access count. The start page and the admin page are excluded.
// @Tags         Statistics
// @Produce      json
// @Param        timeRange query string false "24h, 7d or all" default(all)
// @Param        search query string false "Case-insensitive search term"
// @Param        sortBy query string false "count or path" default(count)
// @Param        sortOrder query string false "asc or desc" default(desc)
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Page size (max 500)" default(50)
// @Success      200 {object} SuccessResponse{data=domain.Page[domain.URLCount]} "One page of paths"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/stats/top [get]
func (h *Handlers) TopURLsHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	var q domain.TopQuery
	if err := c.QueryParser(&q); err != nil {
		return h.invalidPayload(c, err, "tracking_top_parsing")
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		return h.handleError(c, err, "tracking_top_validation")
	}

	page, err := h.tracking.TopURLs(ctx, q)
	if err != nil {
		return h.handleError(c, err, "tracking_top")
	}
	return success(c, fiber.StatusOK, page)
}

// ClearStatsHandler handles DELETE /api/admin/stats requests
// @Summary      Clear the access log
// @Tags         Statistics
// @Produce      json
// @Success      200 {object} SuccessResponse{data=object{message=string}} "Log cleared"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/stats [delete]
func (h *Handlers) ClearStatsHandler(c *fiber.Ctx) error {
	if err := h.tracking.Clear(requestContext(c)); err != nil {
		return h.handleError(c, err, "tracking_clear")
	}
	return success(c, fiber.StatusOK, map[string]any{"message": "Statistics cleared"})
}

// GetSettingsHandler handles GET /api/admin/settings requests
// @Summary      Get settings
// @Tags         Settings
// @Produce      json
// @Success      200 {object} SuccessResponse{data=domain.Settings} "Current settings"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/settings [get]
func (h *Handlers) GetSettingsHandler(c *fiber.Ctx) error {
	settings, err := h.settings.Get(requestContext(c))
	if err != nil {
		return h.handleError(c, err, "get_settings")
	}
	return success(c, fiber.StatusOK, settings)
}

// UpdateSettingsHandler handles PUT /api/admin/settings requests
// @Summary      Update settings
// @Description  In merge mode only the fields present in the payload change. In replace mode every editable field is reset to the payload, absent fields taking their defaults. Changing a matching field reprocesses all rules in the background.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings body domain.SettingsPatch true "Settings fields"
// @Param        mode query string false "merge or replace" default(merge)
// @Success      200 {object} SuccessResponse{data=domain.Settings} "Updated settings"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/settings [put]
func (h *Handlers) UpdateSettingsHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	mode := c.Query("mode", ModeMerge)
	if mode != ModeMerge && mode != ModeReplace {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Unsupported update mode",
			400,
			map[string]any{"mode": mode, "allowed_values": []string{ModeMerge, ModeReplace}},
		).WithContext(ctx, "update_settings"))
	}

	var patch domain.SettingsPatch
	if err := c.BodyParser(&patch); err != nil {
		return h.invalidPayload(c, err, "update_settings_parsing")
	}
	if err := h.validator.ValidateStruct(patch); err != nil {
		return h.handleError(c, err, "update_settings_validation")
	}

	settings, err := h.settings.Update(ctx, patch, mode == ModeReplace)
	if err != nil {
		return h.handleError(c, err, "update_settings")
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("mode", mode).
		Uint64("matching_version", settings.MatchingVersion).
		Msg("Settings updated")
	return success(c, fiber.StatusOK, settings)
}

// RebuildCacheHandler handles POST /api/admin/maintenance/rebuild-cache requests
// @Summary      Rebuild the rule cache
// @Description  Rereads the rule store, reprocesses every rule and drops memoized decisions
// @Tags         Maintenance
// @Produce      json
// @Success      200 {object} SuccessResponse{data=object} "Cache statistics after the rebuild"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/maintenance/rebuild-cache [post]
func (h *Handlers) RebuildCacheHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	if err := h.rules.Rebuild(ctx); err != nil {
		return h.handleError(c, err, "rebuild_cache")
	}
	if err := h.resolver.InvalidateCache(ctx); err != nil {
		return h.handleError(c, err, "invalidate_decisions")
	}

	return success(c, fiber.StatusOK, map[string]any{
		"message": "Rule cache rebuilt",
		"rules":   h.rules.GetStats(ctx),
	})
}
