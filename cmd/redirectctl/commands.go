package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linkshift/redirector/internal/api"
	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/storage"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and every persisted rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}

			rules, _, err := storage.ReadArray[domain.Rule](cmd.Context(), cfg.RulesPath(), cfg.Storage.LargeFileThreshold)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", cfg.RulesPath(), err)
			}

			problems := ruleProblems(domain.NewInputValidator(), rules)
			out := cmd.OutOrStdout()
			for _, p := range problems {
				_, _ = fmt.Fprintln(out, p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problem(s) in %d rules", len(problems), len(rules))
			}
			_, err = fmt.Fprintf(out, "%d rules ok\n", len(rules))
			return err
		},
	}
}

// ruleProblems reports invalid rules and duplicated IDs or matchers
func ruleProblems(v domain.Validator, rules []domain.Rule) []string {
	var problems []string
	ids := make(map[string]int, len(rules))
	matchers := make(map[string]int, len(rules))
	for i := range rules {
		rule := rules[i]
		n := i + 1
		if err := v.ValidateRule(&rule); err != nil {
			msg := err.Error()
			if appErr, ok := domain.AsAppError(err); ok {
				msg = appErr.Message
			}
			problems = append(problems, fmt.Sprintf("rule %d (%s): %s", n, rule.ID, msg))
		}
		if first, ok := ids[rule.ID]; ok && rule.ID != "" {
			problems = append(problems, fmt.Sprintf("rule %d: duplicate id %s (first at rule %d)", n, rule.ID, first))
		} else {
			ids[rule.ID] = n
		}
		// duplicates are allowed but only the newest one is ever selected
		matcher := strings.TrimSpace(rule.Matcher)
		if first, ok := matchers[matcher]; ok && matcher != "" {
			problems = append(problems, fmt.Sprintf("rule %d: matcher %q shadows rule %d", n, matcher, first))
		} else {
			matchers[matcher] = n
		}
	}
	return problems
}

func newImportCmd(opts *options) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge rules from a JSON or YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("input path is required")
			}
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return err
			}
			ext := strings.ToLower(inputPath)
			records, err := api.DecodeImport(data, strings.HasSuffix(ext, ".yaml") || strings.HasSuffix(ext, ".yml"))
			if err != nil {
				return fmt.Errorf("invalid import file: %w", err)
			}

			c, err := opts.components(cmd.Context())
			if err != nil {
				return err
			}
			result, err := c.Rules.Import(cmd.Context(), records)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "imported=%d updated=%d errors=%d\n", result.Imported, result.Updated, len(result.Errors))
			for _, e := range result.Errors {
				_, _ = fmt.Fprintln(out, e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "in", "", "Path to a .json, .yaml or .yml file")

	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every rule in an importable form",
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != api.FormatJSON && format != api.FormatYAML {
				return fmt.Errorf("unknown format %q", format)
			}

			c, err := opts.components(cmd.Context())
			if err != nil {
				return err
			}
			rules, err := c.Rules.Rules(cmd.Context())
			if err != nil {
				return err
			}
			data, _, err := api.EncodeExport(rules, format)
			if err != nil {
				return err
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return storage.WriteFile(outPath, data)
		},
	}

	cmd.Flags().StringVar(&format, "format", api.FormatJSON, "Output format: json|yaml")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	return cmd
}

func newResolveCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve URL...",
		Short: "Show the decision for each URL without recording an access",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.components(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for _, u := range args {
				if err := c.Validator.ValidateURL(u); err != nil {
					return err
				}
				d, err := c.Matcher.Resolve(cmd.Context(), u)
				if err != nil {
					return err
				}
				if asJSON {
					if err := enc.Encode(d); err != nil {
						return err
					}
					continue
				}
				rule := d.RuleID()
				if rule == "" {
					rule = "-"
				}
				_, _ = fmt.Fprintf(out, "%s -> %s quality=%d band=%s rule=%s\n", d.RequestURL, d.TargetURL, d.Quality, d.Band, rule)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print decisions as JSON lines")

	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var timeRange string
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the access log",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.TimeRange(timeRange)
			if r != domain.Range24h && r != domain.Range7d && r != domain.RangeAll {
				return fmt.Errorf("unknown time range %q", timeRange)
			}

			c, err := opts.components(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := c.Tracking.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "total=%d last24h=%d last7d=%d\n", stats.Total, stats.Last24h, stats.Last7d)
			if top <= 0 {
				return nil
			}

			page, err := c.Tracking.TopURLs(cmd.Context(), domain.TopQuery{
				ListParams: domain.ListParams{Limit: top},
				Range:      r,
			})
			if err != nil {
				return err
			}
			for _, u := range page.Items {
				_, _ = fmt.Fprintf(out, "%6d  %s\n", u.Count, u.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&timeRange, "range", string(domain.RangeAll), "Time range for top paths: 24h|7d|all")
	cmd.Flags().IntVar(&top, "top", 10, "Number of top paths to list")

	return cmd
}
