package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/fix"
	"github.com/dshills/perfguard/internal/profile"
	"github.com/dshills/perfguard/internal/render"
	"github.com/dshills/perfguard/internal/rules"
	"github.com/dshills/perfguard/internal/scan"
	"github.com/dshills/perfguard/internal/snapshot"
)

func newFileCmd(a *app, name, prof, short string) *cobra.Command {
	var profileRef string
	cmd := &cobra.Command{
		Use:   name + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFile(cmd.Context(), profileRef, args[0])
		},
	}
	cmd.Flags().StringVar(&profileRef, "profile", prof, "Profile name or YAML profile file")
	return cmd
}

func (a *app) runFile(ctx context.Context, profileRef, path string) error {
	sc, _, err := a.scanner(profileRef)
	if err != nil {
		return err
	}
	a.verbose("Analyzing %s", path)
	res, err := sc.File(ctx, path)
	if err != nil {
		return inputError(err)
	}
	a.verbose("Found %s, score %d", plural(res.Summary.TotalIssues, "issue"), res.Score)
	return a.emit(report{
		value:    res,
		markdown: func() string { return render.Markdown([]analysis.Result{res}) },
		console:  func(c *render.Console, w io.Writer) error { return c.Result(w, res) },
	})
}

func newFixCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <file>",
		Short: "Print a line-by-line fix plan for a file",
		Long:  "Print a line-by-line fix plan for a file. The source file is never modified.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFix(cmd.Context(), args[0])
		},
	}
}

func (a *app) runFix(ctx context.Context, path string) error {
	sc, _, err := a.scanner(profile.Full)
	if err != nil {
		return err
	}
	res, err := sc.File(ctx, path)
	if err != nil {
		return inputError(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return inputError(err)
	}
	plan := fix.Build(res, string(raw))

	if a.flags.output != "" {
		a.verbose("Writing fix plan to %s", a.flags.output)
		if err := fix.WriteFile(plan, a.flags.output); err != nil {
			return exitError(exitStorage, "failed to write fix plan: %v", err)
		}
		if plan.Empty() {
			fmt.Fprintln(a.stdout, "Nothing to fix.")
		}
		return nil
	}
	_, err = io.WriteString(a.stdout, plan.Text())
	return err
}

func newBulkCmd(a *app) *cobra.Command {
	var profileRef string
	cmd := &cobra.Command{
		Use:   "bulk <directory>",
		Short: "Analyze every supported file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBulk(cmd.Context(), profileRef, args[0])
		},
	}
	cmd.Flags().StringVar(&profileRef, "profile", "", "Profile name or YAML profile file (default from config)")
	return cmd
}

// scanDir analyzes dir and reports skipped files as warnings. It also
// returns the resolved profile so callers can record it.
func (a *app) scanDir(ctx context.Context, profileRef, dir string) (*scan.Outcome, *profile.Profile, error) {
	if profileRef == "" {
		profileRef = a.cfg.Profile
	}
	sc, prof, err := a.scanner(profileRef)
	if err != nil {
		return nil, nil, err
	}
	a.verbose("Scanning %s", dir)
	out, err := sc.Dir(ctx, dir, a.cfg.Walk())
	if err != nil {
		return nil, nil, inputError(err)
	}
	for _, s := range out.Skipped {
		fmt.Fprintf(a.stderr, "warning: skipped %s: %s\n", s.Path, s.Reason)
	}
	if out.Truncated {
		fmt.Fprintf(a.stderr, "warning: file limit %d reached, remaining files were not analyzed\n", a.cfg.MaxFiles)
	}
	return out, prof, nil
}

func (a *app) runBulk(ctx context.Context, profileRef, dir string) error {
	out, _, err := a.scanDir(ctx, profileRef, dir)
	if err != nil {
		return err
	}
	return a.emit(report{
		value:    out,
		markdown: func() string { return render.Markdown(out.Results) },
		console:  func(c *render.Console, w io.Writer) error { return c.Bulk(w, out.Results) },
	})
}

// healthReport is the JSON form of the health command.
type healthReport struct {
	Root    string           `json:"root"`
	Score   int              `json:"score"`
	Grade   string           `json:"grade"`
	Summary snapshot.Summary `json:"summary"`
	Skipped []scan.Skip      `json:"skipped,omitempty"`
}

func newHealthCmd(a *app) *cobra.Command {
	var profileRef string
	cmd := &cobra.Command{
		Use:   "health <directory>",
		Short: "Summarize the performance health of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHealth(cmd.Context(), profileRef, args[0])
		},
	}
	cmd.Flags().StringVar(&profileRef, "profile", "", "Profile name or YAML profile file (default from config)")
	return cmd
}

func (a *app) runHealth(ctx context.Context, profileRef, dir string) error {
	out, _, err := a.scanDir(ctx, profileRef, dir)
	if err != nil {
		return err
	}
	sum := snapshot.Aggregate(out.Results)
	return a.emit(report{
		value: healthReport{
			Root: dir, Score: sum.Score, Grade: render.Grade(sum.Score), Summary: sum, Skipped: out.Skipped,
		},
		markdown: func() string { return render.Markdown(out.Results) },
		console:  func(c *render.Console, w io.Writer) error { return c.Health(w, out.Results) },
	})
}

func newRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules [profile|rule-id]",
		Short: "List profiles, the rules of a profile, or one rule",
		Long: "Without arguments, list the built-in profiles. With a profile name or YAML file, " +
			"list its rules. With a rule ID, describe that rule.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.listProfiles()
			}
			if r, ok := rules.Builtin().Lookup(args[0]); ok {
				fmt.Fprintf(a.stdout, "%s (%s)\n%s\nFix: %s\n", r.ID, r.Severity, r.Message, r.Suggestion)
				return nil
			}
			prof, err := profile.Resolve(args[0])
			if err != nil {
				return exitError(exitConfig, "failed to load profile: %v", err)
			}
			set, err := prof.RuleSet(rules.Builtin())
			if err != nil {
				return exitError(exitConfig, "invalid profile: %v", err)
			}
			if a.flags.verbose {
				_, err = io.WriteString(a.stdout, profile.Describe(prof, set))
				return err
			}
			return a.console().Rules(a.stdout, set)
		},
	}
}

func (a *app) listProfiles() error {
	names, err := profile.List()
	if err != nil {
		return err
	}
	for _, n := range names {
		prof, err := profile.LoadBuiltin(n)
		if err != nil {
			return exitError(exitConfig, "failed to load profile: %v", err)
		}
		set, err := prof.RuleSet(rules.Builtin())
		if err != nil {
			return exitError(exitConfig, "invalid profile: %v", err)
		}
		fmt.Fprintf(a.stdout, "%-8s %2d rules  %s\n", n, set.Len(), firstLine(prof.Description))
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
