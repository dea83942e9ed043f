package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/linkshift/redirector/internal/domain"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// BulkDeleteRequest represents the request payload for deleting several rules
// @Description Request payload for bulk deletion
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=10000,dive,required" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// ListRulesHandler handles GET /api/admin/rules requests
// @Summary      List rules
// @Description  Returns one page of rules, searched over matcher, target, info text and type
// @Tags         Rules
// @Produce      json
// @Param        search query string false "Case-insensitive search term"
// @Param        sortBy query string false "matcher, targetUrl, redirectType or createdAt" default(createdAt)
// @Param        sortOrder query string false "asc or desc" default(desc)
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Page size (max 500)" default(50)
// @Success      200 {object} SuccessResponse{data=domain.Page[domain.Rule]} "One page of rules"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules [get]
func (h *Handlers) ListRulesHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	var params domain.ListParams
	if err := c.QueryParser(&params); err != nil {
		return h.invalidPayload(c, err, "list_rules_parsing")
	}
	if err := h.validator.ValidateStruct(params); err != nil {
		return h.handleError(c, err, "list_rules_validation")
	}

	page, err := h.rules.List(ctx, params)
	if err != nil {
		return h.handleError(c, err, "list_rules")
	}
	return success(c, fiber.StatusOK, page)
}

// GetRuleHandler handles GET /api/admin/rules/:id requests
// @Summary      Get a rule
// @Tags         Rules
// @Produce      json
// @Param        id path string true "Rule ID"
// @Success      200 {object} SuccessResponse{data=domain.Rule} "The rule"
// @Failure      404 {object} ErrorResponse "Rule not found"
// @Router       /api/admin/rules/{id} [get]
func (h *Handlers) GetRuleHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)
	id := strings.TrimSpace(c.Params("id"))

	rule, err := h.rules.Rule(ctx, id)
	if err != nil {
		return h.handleError(c, err, "get_rule")
	}
	if rule == nil {
		return h.ruleNotFound(c, id)
	}
	return success(c, fiber.StatusOK, rule)
}

// CreateRuleHandler handles POST /api/admin/rules requests
// @Summary      Create a rule
// @Description  Creates a redirect rule. A matcher already used by another rule is rejected unless force is set.
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        rule body domain.RuleInput true "Rule to create"
// @Param        force query bool false "Allow a duplicate matcher"
// @Success      201 {object} SuccessResponse{data=domain.Rule} "Created rule"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "Validation failed or duplicate matcher"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules [post]
func (h *Handlers) CreateRuleHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	var input domain.RuleInput
	if err := c.BodyParser(&input); err != nil {
		return h.invalidPayload(c, err, "create_rule_parsing")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return h.handleError(c, err, "create_rule_validation")
	}

	rule, err := h.rules.Create(ctx, input, c.QueryBool("force"))
	if err != nil {
		return h.handleError(c, err, "create_rule")
	}
	return success(c, fiber.StatusCreated, rule)
}

// UpdateRuleHandler handles PUT /api/admin/rules/:id requests
// @Summary      Update a rule
// @Description  Applies the fields present in the payload. Changing the matcher to one used by another rule is rejected unless force is set.
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        id path string true "Rule ID"
// @Param        rule body domain.RulePatch true "Fields to update"
// @Param        force query bool false "Allow a duplicate matcher"
// @Success      200 {object} SuccessResponse{data=domain.Rule} "Updated rule"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      404 {object} ErrorResponse "Rule not found"
// @Failure      422 {object} ErrorResponse "Validation failed or duplicate matcher"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules/{id} [put]
func (h *Handlers) UpdateRuleHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)
	id := strings.TrimSpace(c.Params("id"))

	var patch domain.RulePatch
	if err := c.BodyParser(&patch); err != nil {
		return h.invalidPayload(c, err, "update_rule_parsing")
	}
	if err := h.validator.ValidateStruct(patch); err != nil {
		return h.handleError(c, err, "update_rule_validation")
	}

	rule, err := h.rules.Update(ctx, id, patch, c.QueryBool("force"))
	if err != nil {
		return h.handleError(c, err, "update_rule")
	}
	if rule == nil {
		return h.ruleNotFound(c, id)
	}
	return success(c, fiber.StatusOK, rule)
}

// DeleteRuleHandler handles DELETE /api/admin/rules/:id requests
// @Summary      Delete a rule
// @Tags         Rules
// @Produce      json
// @Param        id path string true "Rule ID"
// @Success      200 {object} SuccessResponse{data=object{message=string,rule_id=string}} "Deleted"
// @Failure      404 {object} ErrorResponse "Rule not found"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules/{id} [delete]
func (h *Handlers) DeleteRuleHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)
	id := strings.TrimSpace(c.Params("id"))

	deleted, err := h.rules.Delete(ctx, id)
	if err != nil {
		return h.handleError(c, err, "delete_rule")
	}
	if !deleted {
		return h.ruleNotFound(c, id)
	}
	return success(c, fiber.StatusOK, map[string]any{
		"message": "Rule deleted successfully",
		"rule_id": id,
	})
}

// BulkDeleteHandler handles POST /api/admin/rules/bulk-delete requests
// @Summary      Delete several rules
// @Description  Deletes the listed rules in one write. Unknown IDs are counted, not rejected.
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        request body BulkDeleteRequest true "Rule IDs"
// @Success      200 {object} SuccessResponse{data=domain.BulkDeleteResult} "Deleted and not found counts"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules/bulk-delete [post]
func (h *Handlers) BulkDeleteHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	var req BulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return h.invalidPayload(c, err, "bulk_delete_parsing")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return h.handleError(c, err, "bulk_delete_validation")
	}

	result, err := h.rules.BulkDelete(ctx, req.IDs)
	if err != nil {
		return h.handleError(c, err, "bulk_delete")
	}
	return success(c, fiber.StatusOK, result)
}

// ClearRulesHandler handles DELETE /api/admin/rules requests
// @Summary      Delete all rules
// @Tags         Rules
// @Produce      json
// @Success      200 {object} SuccessResponse{data=object{message=string}} "All rules deleted"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules [delete]
func (h *Handlers) ClearRulesHandler(c *fiber.Ctx) error {
	if err := h.rules.Clear(requestContext(c)); err != nil {
		return h.handleError(c, err, "clear_rules")
	}
	return success(c, fiber.StatusOK, map[string]any{"message": "All rules deleted"})
}

// ImportRulesHandler handles POST /api/admin/rules/import requests
// @Summary      Import rules
// @Description  Imports a JSON or YAML array of rule records, or an object with a rules array. Records update by id, then by matcher, otherwise they are created. Records without a target are skipped.
// @Tags         Rules
// @Accept       json
// @Accept       application/x-yaml
// @Produce      json
// @Param        rules body []object true "Rule records"
// @Success      200 {object} SuccessResponse{data=domain.ImportResult} "Import summary"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules/import [post]
func (h *Handlers) ImportRulesHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	records, err := DecodeImport(c.Body(), isYAML(c.Get(fiber.HeaderContentType)))
	if err != nil {
		return h.invalidPayload(c, err, "import_rules_parsing")
	}

	result, err := h.rules.Import(ctx, records)
	if err != nil {
		return h.handleError(c, err, "import_rules")
	}

	log.Info().
		Str("request_id", requestID(c)).
		Int("records", len(records)).
		Int("imported", result.Imported).
		Int("updated", result.Updated).
		Int("errors", len(result.Errors)).
		Msg("Rules imported")
	return success(c, fiber.StatusOK, result)
}

// ExportRulesHandler handles GET /api/admin/rules/export requests
// @Summary      Export rules
// @Description  Downloads every rule without derived matching fields, in a form the import endpoint accepts
// @Tags         Rules
// @Produce      json
// @Produce      application/x-yaml
// @Param        format query string false "json or yaml" default(json)
// @Success      200 {array} domain.Rule "All rules"
// @Failure      400 {object} ErrorResponse "Unknown format"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/admin/rules/export [get]
func (h *Handlers) ExportRulesHandler(c *fiber.Ctx) error {
	ctx := requestContext(c)

	format := strings.ToLower(c.Query("format", FormatJSON))
	if format != FormatJSON && format != FormatYAML {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Unsupported export format",
			400,
			map[string]any{"format": format, "allowed_values": []string{FormatJSON, FormatYAML}},
		).WithContext(ctx, "export_rules"))
	}

	rules, err := h.rules.Rules(ctx)
	if err != nil {
		return h.handleError(c, err, "export_rules")
	}

	data, contentType, err := EncodeExport(rules, format)
	if err != nil {
		return h.handleError(c, err, "export_rules_encoding")
	}

	filename := fmt.Sprintf("redirect-rules-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Set(fiber.HeaderContentType, contentType)
	return c.Status(fiber.StatusOK).Send(data)
}

func (h *Handlers) ruleNotFound(c *fiber.Ctx, id string) error {
	return h.sendError(c, domain.NewAppError(
		domain.ErrNotFound,
		"Rule not found",
		404,
		map[string]string{"rule_id": id},
	).WithContext(requestContext(c), "rule_lookup"))
}

func isYAML(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "yaml") || strings.Contains(contentType, "yml")
}

// DecodeImport parses an import payload: an array of records, or an object
// holding the array under "rules"
func DecodeImport(data []byte, asYAML bool) ([]domain.ImportRecord, error) {
	var raw any
	var err error
	if asYAML {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, err
	}

	if obj, ok := raw.(map[string]any); ok {
		raw = obj["rules"]
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of rule records")
	}

	records := make([]domain.ImportRecord, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i+1)
		}
		records = append(records, domain.ImportRecord(m))
	}
	return records, nil
}

// EncodeExport serializes rules in format and returns the content type
func EncodeExport(rules []domain.Rule, format string) ([]byte, string, error) {
	if rules == nil {
		rules = []domain.Rule{}
	}
	if format == FormatYAML {
		data, err := yaml.Marshal(rules)
		return data, "application/x-yaml", err
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	return data, fiber.MIMEApplicationJSON, err
}
