package rulecache

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
)

// Import merges loosely typed records into the rule set with one write.
//
// Records without a matcher or target are skipped silently. Each remaining
// record updates the rule with its ID, creates a rule with its ID, updates the
// rule with the same matcher, or creates a new rule, in that order of
// preference. Records that fail validation are reported in Errors and skipped;
// the rest of the batch is still applied.
func (c *Cache) Import(ctx context.Context, records []domain.ImportRecord) (domain.ImportResult, error) {
	result := domain.ImportResult{Errors: []string{}}

	_, err := c.mutate(ctx, "import", func(rules []domain.MatchableRule, derive func(domain.Rule) domain.MatchableRule) ([]domain.MatchableRule, error) {
		byID := make(map[string]int, len(rules))
		byMatcher := make(map[string]int, len(rules))
		for i := range rules {
			byID[rules[i].ID] = i
			byMatcher[strings.TrimSpace(rules[i].Matcher)] = i
		}

		for n, record := range records {
			matcher := record.String("matcher")
			target := record.String("targetUrl")
			if matcher == "" || target == "" {
				continue
			}

			rule := domain.Rule{
				ID:                 record.String("id"),
				Matcher:            matcher,
				TargetURL:          target,
				InfoText:           record.String("infoText"),
				RedirectType:       record.RedirectType(),
				AutoRedirect:       record.BoolPtr("autoRedirect"),
				DiscardQueryParams: record.BoolPtr("discardQueryParams"),
				ForwardQueryParams: record.BoolPtr("forwardQueryParams"),
			}

			i, byIDHit := byID[rule.ID]
			if rule.ID == "" {
				if j, ok := byMatcher[matcher]; ok {
					i, byIDHit = j, true
					rule.ID = rules[j].ID
				}
			}

			if byIDHit {
				existing := rules[i]
				rule.CreatedAt = existing.CreatedAt
				if err := c.validate(&rule); err != nil {
					result.Errors = append(result.Errors, importError(n, err))
					continue
				}
				if old := strings.TrimSpace(existing.Matcher); old != matcher && byMatcher[old] == i {
					delete(byMatcher, old)
				}
				rules[i] = derive(rule)
				byMatcher[matcher] = i
				result.Updated++
				continue
			}

			if rule.ID == "" {
				rule.ID = c.opts.NewID()
			}
			rule.CreatedAt = c.opts.Now().UTC()
			if err := c.validate(&rule); err != nil {
				result.Errors = append(result.Errors, importError(n, err))
				continue
			}
			rules = append(rules, derive(rule))
			byID[rule.ID] = len(rules) - 1
			byMatcher[matcher] = len(rules) - 1
			result.Imported++
		}
		return rules, nil
	})
	if err != nil {
		return domain.ImportResult{}, err
	}

	log.Info().
		Int("records", len(records)).
		Int("imported", result.Imported).
		Int("updated", result.Updated).
		Int("errors", len(result.Errors)).
		Msg("Rules imported")
	return result, nil
}

func importError(n int, err error) string {
	if appErr, ok := domain.AsAppError(err); ok {
		return fmt.Sprintf("record %d: %s", n+1, appErr.Message)
	}
	return fmt.Sprintf("record %d: %v", n+1, err)
}
