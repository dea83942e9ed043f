package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	maxMatcherLength  = 2048
	maxTargetLength   = 2048
	maxInfoTextLength = 65536
	maxRequestURL     = 8192
)

// InputValidator validates payloads with struct tags and rules with domain checks
type InputValidator struct {
	validate          *validator.Validate
	allowedSchemes    []string
	dangerousPatterns []*regexp.Regexp
}

// NewInputValidator creates a new input validator with default settings
func NewInputValidator() *InputValidator {
	return &InputValidator{
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		allowedSchemes: []string{"http", "https"},
		dangerousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script[^>]*>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)vbscript:`),
		},
	}
}

// ValidateStruct runs tag validation and converts failures to a 422 AppError
func (v *InputValidator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewAppErrorWithCause(ErrInvalidInput, "Invalid request payload", 400, err, nil)
	}
	fields := make(map[string]string, len(validationErrors))
	var messages []string
	for _, e := range validationErrors {
		fields[e.Field()] = e.Tag()
		messages = append(messages, describeFieldError(e))
	}
	return NewAppError(ErrValidationFailed, strings.Join(messages, "; "), 422, map[string]any{"fields": fields})
}

func describeFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", e.Field())
	default:
		return fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag())
	}
}

// ValidateRule checks a complete rule before it is persisted
func (v *InputValidator) ValidateRule(rule *Rule) error {
	if rule == nil {
		return NewAppError(ErrValidationFailed, "Rule cannot be nil", 422, nil)
	}
	if rule.ID == "" {
		return NewAppError(ErrValidationFailed, "Rule ID is required", 422, map[string]any{"field": "id"})
	}

	matcher := strings.TrimSpace(rule.Matcher)
	if matcher == "" {
		return NewAppError(ErrValidationFailed, "Matcher is required", 422, map[string]any{"field": "matcher"})
	}
	if utf8.RuneCountInString(matcher) > maxMatcherLength {
		return NewAppError(ErrValidationFailed, fmt.Sprintf("Matcher too long (max %d characters)", maxMatcherLength), 422, map[string]any{
			"field":      "matcher",
			"max_length": maxMatcherLength,
		})
	}

	if !rule.RedirectType.Valid() {
		return NewAppError(ErrValidationFailed, "Invalid redirect type", 422, map[string]any{
			"field":          "redirectType",
			"value":          rule.RedirectType,
			"allowed_values": []RedirectType{RedirectWildcard, RedirectPartial, RedirectDomain},
		})
	}

	if len(rule.TargetURL) > maxTargetLength {
		return NewAppError(ErrValidationFailed, fmt.Sprintf("Target URL too long (max %d characters)", maxTargetLength), 422, map[string]any{"field": "targetUrl"})
	}
	if v.containsDangerousPatterns(rule.TargetURL) {
		return NewAppError(ErrValidationFailed, "Target URL contains potentially dangerous content", 422, map[string]any{"field": "targetUrl"})
	}
	if strings.Contains(rule.TargetURL, "://") {
		parsed, err := url.Parse(strings.TrimSpace(rule.TargetURL))
		if err != nil || parsed.Host == "" || !v.isAllowedScheme(parsed.Scheme) {
			return NewAppError(ErrValidationFailed, "Target URL must be a path or an absolute http(s) URL", 422, map[string]any{"field": "targetUrl"})
		}
	}

	if len(rule.InfoText) > maxInfoTextLength {
		return NewAppError(ErrValidationFailed, fmt.Sprintf("Info text too large (max %d bytes)", maxInfoTextLength), 422, map[string]any{"field": "infoText"})
	}
	if !utf8.ValidString(rule.InfoText) {
		return NewAppError(ErrValidationFailed, "Info text must be valid UTF-8", 422, map[string]any{"field": "infoText"})
	}

	return nil
}

// ValidateURL validates a URL submitted for resolution. Path-only URLs are accepted.
func (v *InputValidator) ValidateURL(urlStr string) error {
	if strings.TrimSpace(urlStr) == "" {
		return NewAppError(ErrValidationFailed, "URL is required", 422, map[string]any{"field": "url"})
	}

	if len(urlStr) > maxRequestURL {
		return NewAppError(ErrValidationFailed, fmt.Sprintf("URL too long (max %d characters)", maxRequestURL), 422, map[string]any{
			"field":      "url",
			"length":     len(urlStr),
			"max_length": maxRequestURL,
		})
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return NewAppErrorWithCause(ErrValidationFailed, "Invalid URL format", 422, err, map[string]any{"field": "url"})
	}

	if parsedURL.Scheme != "" && !v.isAllowedScheme(parsedURL.Scheme) {
		return NewAppError(ErrValidationFailed, "Only HTTP and HTTPS URLs are allowed", 422, map[string]any{
			"field":           "url",
			"scheme":          parsedURL.Scheme,
			"allowed_schemes": v.allowedSchemes,
		})
	}

	if v.containsDangerousPatterns(urlStr) {
		return NewAppError(ErrValidationFailed, "URL contains potentially dangerous content", 422, map[string]any{"field": "url"})
	}

	return nil
}

func (v *InputValidator) isAllowedScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, s := range v.allowedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

func (v *InputValidator) containsDangerousPatterns(s string) bool {
	for _, p := range v.dangerousPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
