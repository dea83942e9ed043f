package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ImportRecord is a loosely typed rule record from an import batch.
// Spreadsheet and CSV converters produce strings for every column, JSON
// producers use native types; accessors accept both.
type ImportRecord map[string]any

// String returns the trimmed string value of key, or "" when absent
func (r ImportRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Bool returns the boolean value of key and whether it was present and parseable
func (r ImportRecord) Bool(key string) (bool, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "ja", "y", "x":
			return true, true
		case "false", "0", "no", "nein", "n":
			return false, true
		}
	}
	return false, false
}

// BoolPtr is Bool returning nil when the key is absent or unparseable
func (r ImportRecord) BoolPtr(key string) *bool {
	if b, ok := r.Bool(key); ok {
		return Bool(b)
	}
	return nil
}

// RedirectType maps the record's type columns onto a RedirectType.
// "type" is accepted as an alias and the legacy value "redirect" means partial.
func (r ImportRecord) RedirectType() RedirectType {
	raw := r.String("redirectType")
	if raw == "" {
		raw = r.String("type")
	}
	raw = strings.ToLower(raw)
	switch raw {
	case "":
		return RedirectPartial
	case "redirect":
		return RedirectPartial
	default:
		return RedirectType(raw)
	}
}
