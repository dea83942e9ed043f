package rulecache

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/preprocess"
	"github.com/linkshift/redirector/internal/query"
)

// mutation computes the next rule array from a private copy of the current one
type mutation func(rules []domain.MatchableRule, derive func(domain.Rule) domain.MatchableRule) ([]domain.MatchableRule, error)

// mutate runs fn against the current snapshot, persists the cleaned result
// and only then installs it. A failed write leaves the snapshot untouched.
func (c *Cache) mutate(ctx context.Context, op string, fn mutation) (*Snapshot, error) {
	if _, err := c.Acquire(ctx, nil); err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	base := c.snap.Load()
	cfg := base.Config
	derive := func(r domain.Rule) domain.MatchableRule {
		return preprocess.Preprocess(r, cfg)
	}

	next, err := fn(slices.Clone(base.Rules), derive)
	if err != nil {
		c.writeMu.Unlock()
		if err != errNotFound {
			c.opts.Metrics.ObserveMutation(op, err)
		}
		return nil, err
	}

	if err := c.store.ReplaceAll(ctx, domain.CleanRules(next)); err != nil {
		c.writeMu.Unlock()
		c.opts.Metrics.ObserveMutation(op, err)
		log.Error().Err(err).Str("op", op).Msg("Rule mutation not persisted, cache unchanged")
		return nil, err
	}

	snap := c.newSnapshot(next, cfg)
	c.installLocked(snap)
	c.writeMu.Unlock()

	c.opts.Metrics.ObserveMutation(op, nil)
	c.notify(snap)
	return snap, nil
}

// validate sanitizes the flag pair and runs the configured validator
func (c *Cache) validate(rule *domain.Rule) error {
	if rule.RedirectType == "" {
		rule.RedirectType = domain.RedirectPartial
	}
	domain.SanitizeFlags(rule)
	if c.opts.Validator != nil {
		return c.opts.Validator.ValidateRule(rule)
	}
	if !rule.RedirectType.Valid() || strings.TrimSpace(rule.Matcher) == "" {
		return domain.NewAppError(domain.ErrValidationFailed, "Invalid rule", 422, map[string]any{"rule_id": rule.ID})
	}
	return nil
}

// findMatcher returns the first rule other than skip whose matcher equals matcher
func findMatcher(rules []domain.MatchableRule, matcher, skip string) int {
	matcher = strings.TrimSpace(matcher)
	for i := range rules {
		if rules[i].ID != skip && strings.TrimSpace(rules[i].Matcher) == matcher {
			return i
		}
	}
	return -1
}

func indexOf(rules []domain.MatchableRule, id string) int {
	for i := range rules {
		if rules[i].ID == id {
			return i
		}
	}
	return -1
}

// Rules returns every rule in storage order with derived fields stripped
func (c *Cache) Rules(ctx context.Context) ([]domain.Rule, error) {
	snap, err := c.Acquire(ctx, nil)
	if err != nil {
		return nil, err
	}
	return domain.CleanRules(snap.Rules), nil
}

// Rule returns the rule with id, or nil when it does not exist
func (c *Cache) Rule(ctx context.Context, id string) (*domain.Rule, error) {
	snap, err := c.Acquire(ctx, nil)
	if err != nil {
		return nil, err
	}
	i := snap.Lookup(id)
	if i < 0 {
		return nil, nil
	}
	rule := snap.Rules[i].Clean()
	return &rule, nil
}

// List returns one page of rules
func (c *Cache) List(ctx context.Context, params domain.ListParams) (domain.Page[domain.Rule], error) {
	rules, err := c.Rules(ctx)
	if err != nil {
		return domain.Page[domain.Rule]{}, err
	}
	return query.Run(rules, params, RuleSchema), nil
}

// Create adds a rule. A matcher already used by another rule is rejected unless force is set.
func (c *Cache) Create(ctx context.Context, input domain.RuleInput, force bool) (*domain.Rule, error) {
	if c.opts.Validator != nil {
		if err := c.opts.Validator.ValidateStruct(input); err != nil {
			return nil, err
		}
	}

	rule := domain.Rule{
		ID:                 c.opts.NewID(),
		Matcher:            strings.TrimSpace(input.Matcher),
		TargetURL:          strings.TrimSpace(input.TargetURL),
		InfoText:           input.InfoText,
		RedirectType:       input.RedirectType,
		AutoRedirect:       input.AutoRedirect,
		DiscardQueryParams: input.DiscardQueryParams,
		ForwardQueryParams: input.ForwardQueryParams,
		CreatedAt:          c.opts.Now().UTC(),
	}
	if err := c.validate(&rule); err != nil {
		return nil, err
	}

	_, err := c.mutate(ctx, "create", func(rules []domain.MatchableRule, derive func(domain.Rule) domain.MatchableRule) ([]domain.MatchableRule, error) {
		if !force {
			if i := findMatcher(rules, rule.Matcher, ""); i >= 0 {
				return nil, domain.NewDuplicateMatcherError(rule.Matcher, rules[i].ID)
			}
		}
		return append(rules, derive(rule)), nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("rule_id", rule.ID).Str("matcher", rule.Matcher).Bool("force", force).Msg("Rule created")
	return &rule, nil
}

// Update applies patch to the rule with id. It returns nil, nil when the rule does not exist.
func (c *Cache) Update(ctx context.Context, id string, patch domain.RulePatch, force bool) (*domain.Rule, error) {
	if c.opts.Validator != nil {
		if err := c.opts.Validator.ValidateStruct(patch); err != nil {
			return nil, err
		}
	}

	var updated *domain.Rule
	_, err := c.mutate(ctx, "update", func(rules []domain.MatchableRule, derive func(domain.Rule) domain.MatchableRule) ([]domain.MatchableRule, error) {
		i := indexOf(rules, id)
		if i < 0 {
			return nil, errNotFound
		}

		rule := rules[i].Clean()
		patch.Apply(&rule)
		rule.Matcher = strings.TrimSpace(rule.Matcher)
		rule.TargetURL = strings.TrimSpace(rule.TargetURL)
		if err := c.validate(&rule); err != nil {
			return nil, err
		}

		// rules sharing a matcher after a forced create stay editable
		if !force && patch.Matcher != nil {
			if j := findMatcher(rules, rule.Matcher, rule.ID); j >= 0 {
				return nil, domain.NewDuplicateMatcherError(rule.Matcher, rules[j].ID)
			}
		}

		rules[i] = derive(rule)
		updated = &rule
		return rules, nil
	})
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("rule_id", id).Bool("force", force).Msg("Rule updated")
	return updated, nil
}

// Delete removes the rule with id. It returns false, nil when the rule does not exist.
func (c *Cache) Delete(ctx context.Context, id string) (bool, error) {
	_, err := c.mutate(ctx, "delete", func(rules []domain.MatchableRule, _ func(domain.Rule) domain.MatchableRule) ([]domain.MatchableRule, error) {
		i := indexOf(rules, id)
		if i < 0 {
			return nil, errNotFound
		}
		return slices.Delete(rules, i, i+1), nil
	})
	if err == errNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log.Info().Str("rule_id", id).Msg("Rule deleted")
	return true, nil
}

// BulkDelete removes every rule whose ID is in ids with a single write.
// Unknown IDs are counted, never treated as failure.
func (c *Cache) BulkDelete(ctx context.Context, ids []string) (domain.BulkDeleteResult, error) {
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}

	var deleted int
	_, err := c.mutate(ctx, "bulk_delete", func(rules []domain.MatchableRule, _ func(domain.Rule) domain.MatchableRule) ([]domain.MatchableRule, error) {
		before := len(rules)
		rules = slices.DeleteFunc(rules, func(r domain.MatchableRule) bool {
			_, ok := requested[r.ID]
			return ok
		})
		deleted = before - len(rules)
		return rules, nil
	})
	if err != nil {
		return domain.BulkDeleteResult{}, err
	}

	result := domain.BulkDeleteResult{Deleted: deleted, NotFound: len(ids) - deleted}
	log.Info().Int("requested", len(ids)).Int("deleted", result.Deleted).Int("not_found", result.NotFound).Msg("Rules bulk deleted")
	return result, nil
}

// Clear removes every rule
func (c *Cache) Clear(ctx context.Context) error {
	var removed int
	_, err := c.mutate(ctx, "clear", func(rules []domain.MatchableRule, _ func(domain.Rule) domain.MatchableRule) ([]domain.MatchableRule, error) {
		removed = len(rules)
		return []domain.MatchableRule{}, nil
	})
	if err != nil {
		return err
	}
	log.Warn().Int("removed", removed).Msg("All rules cleared")
	return nil
}

type sentinel string

func (s sentinel) Error() string { return string(s) }

// errNotFound aborts a mutation without writing
const errNotFound = sentinel("rule not found")
