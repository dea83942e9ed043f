package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputValidator_ValidateRule(t *testing.T) {
	v := NewInputValidator()

	valid := Rule{ID: "r1", Matcher: "/old", TargetURL: "https://new.example.com/x", RedirectType: RedirectPartial}
	require.NoError(t, v.ValidateRule(&valid))

	tests := []struct {
		name  string
		rule  Rule
		field string
	}{
		{"missing id", Rule{Matcher: "/a", RedirectType: RedirectPartial}, "id"},
		{"blank matcher", Rule{ID: "r", Matcher: "   ", RedirectType: RedirectPartial}, "matcher"},
		{"bad type", Rule{ID: "r", Matcher: "/a", RedirectType: "redirect"}, "redirectType"},
		{"script target", Rule{ID: "r", Matcher: "/a", TargetURL: "javascript:alert(1)", RedirectType: RedirectWildcard}, "targetUrl"},
		{"ftp target", Rule{ID: "r", Matcher: "/a", TargetURL: "ftp://files.example.com/", RedirectType: RedirectWildcard}, "targetUrl"},
		{"long matcher", Rule{ID: "r", Matcher: "/" + strings.Repeat("a", 2048), RedirectType: RedirectPartial}, "matcher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRule(&tt.rule)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			appErr, ok := AsAppError(err)
			require.True(t, ok)
			details, ok := appErr.Details.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.field, details["field"])
		})
	}
}

func TestInputValidator_ValidateURL(t *testing.T) {
	v := NewInputValidator()

	assert.NoError(t, v.ValidateURL("https://old.example.com/news?id=1"))
	assert.NoError(t, v.ValidateURL("/news/1"))
	assert.Error(t, v.ValidateURL(""))
	assert.Error(t, v.ValidateURL("ftp://old.example.com/"))
	assert.Error(t, v.ValidateURL("https://old.example.com/<script>"))
}

func TestInputValidator_ValidateStruct(t *testing.T) {
	v := NewInputValidator()

	require.NoError(t, v.ValidateStruct(RuleInput{Matcher: "/old", RedirectType: RedirectPartial}))

	err := v.ValidateStruct(RuleInput{RedirectType: "bogus"})
	require.Error(t, err)
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrValidationFailed, appErr.Code)
	assert.Equal(t, 422, appErr.StatusCode)
	fields := appErr.Details.(map[string]any)["fields"].(map[string]string)
	assert.Equal(t, "required", fields["Matcher"])
	assert.Equal(t, "oneof", fields["RedirectType"])
}

func TestAppError_Predicates(t *testing.T) {
	cause := errors.New("disk full")
	persist := NewPersistenceError("/data/rules.json", cause)
	wrapped := fmt.Errorf("create rule: %w", persist)

	assert.True(t, IsPersistenceError(wrapped))
	assert.False(t, IsValidationError(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	dup := NewDuplicateMatcherError("/old", "r1")
	assert.True(t, IsValidationError(dup))
	assert.Equal(t, "r1", dup.Details.(map[string]any)["existing_rule_id"])
	assert.Contains(t, dup.Error(), "/old")

	assert.True(t, IsNotFound(NewAppError(ErrNotFound, "Rule not found", 404, nil)))
	assert.False(t, IsNotFound(cause))
}
