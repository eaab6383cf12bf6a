package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/perfguard/internal/config"
	"github.com/dshills/perfguard/internal/gitinfo"
	"github.com/dshills/perfguard/internal/regression"
	"github.com/dshills/perfguard/internal/render"
	"github.com/dshills/perfguard/internal/snapshot"
)

type ciFlags struct {
	profile             string
	baselineBranch      string
	snapshotsDir        string
	outputFormats       string
	failOnRegression    bool
	warnOnRegression    bool
	updateBaseline      bool
	maxScoreRegression  float64
	maxHighIncrease     float64
	maxTotalIncrease    float64
	minScoreImprovement float64
	branch              string
	commit              string
	baselineID          string
	reportFile          string
	reportFileSet       bool
	commentFile         string
	keep                int
}

func newCICmd(a *app) *cobra.Command {
	f := &ciFlags{}
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "ci [directory]",
		Short: "Analyze a project, compare it with the baseline, and gate on regressions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			applyCIFlags(cmd, a.cfg, f)
			f.reportFileSet = cmd.Flags().Changed("report-file")
			return a.runCI(cmd.Context(), root, f)
		},
	}

	t := def.CI.Thresholds
	flags := cmd.Flags()
	flags.StringVar(&f.profile, "profile", def.Profile, "Profile name or YAML profile file")
	flags.StringVar(&f.baselineBranch, "baseline-branch", def.CI.BaselineBranch, "Branch whose snapshot is the baseline")
	flags.StringVar(&f.snapshotsDir, "snapshots-dir", def.CI.SnapshotsDir, "Directory holding snapshots and baselines")
	flags.StringVar(&f.outputFormats, "output-formats", def.CI.OutputFormats, "Comma-separated subset of console,json,github-comment")
	flags.BoolVar(&f.failOnRegression, "fail-on-regression", def.CI.FailOnRegression, "Exit non-zero when a regression is found")
	flags.BoolVar(&f.warnOnRegression, "warn-on-regression", def.CI.WarnOnRegression, "Emit CI warning annotations for regressions")
	flags.BoolVar(&f.updateBaseline, "update-baseline", def.CI.UpdateBaseline, "Replace the baseline after a passing run on the baseline branch")
	flags.Float64Var(&f.maxScoreRegression, "max-score-regression", t.MaxScoreRegression, "Allowed score drop in points")
	flags.Float64Var(&f.maxHighIncrease, "max-high-increase", t.MaxHighSeverityIncrease, "Allowed increase of high severity issues")
	flags.Float64Var(&f.maxTotalIncrease, "max-total-increase", t.MaxTotalIssuesIncrease, "Allowed increase of total issues")
	flags.Float64Var(&f.minScoreImprovement, "min-score-improvement", t.MinScoreImprovement, "Score gain reported as an improvement")
	flags.StringVar(&f.branch, "branch", "", "Branch of this run (default: detected from git or CI)")
	flags.StringVar(&f.commit, "commit", "", "Commit of this run (default: detected from git or CI)")
	flags.StringVar(&f.baselineID, "baseline-id", "", "Compare against this snapshot ID instead of the branch baseline")
	flags.StringVar(&f.reportFile, "report-file", def.CI.ReportFile, "JSON report path, - for stdout")
	flags.StringVar(&f.commentFile, "comment-file", def.CI.CommentFile, "PR comment Markdown path, - for stdout")
	flags.IntVar(&f.keep, "keep", def.CI.Keep, "Run snapshots to retain after saving (0 keeps all)")

	return cmd
}

// applyCIFlags overrides configuration with the flags given on the
// command line. Unset flags leave file and environment values in place.
func applyCIFlags(cmd *cobra.Command, cfg *config.Config, f *ciFlags) {
	changed := cmd.Flags().Changed
	if changed("profile") {
		cfg.Profile = f.profile
	}
	if changed("baseline-branch") {
		cfg.CI.BaselineBranch = f.baselineBranch
	}
	if changed("snapshots-dir") {
		cfg.CI.SnapshotsDir = f.snapshotsDir
	}
	if changed("output-formats") {
		cfg.CI.OutputFormats = f.outputFormats
	}
	if changed("fail-on-regression") {
		cfg.CI.FailOnRegression = f.failOnRegression
	}
	if changed("warn-on-regression") {
		cfg.CI.WarnOnRegression = f.warnOnRegression
	}
	if changed("update-baseline") {
		cfg.CI.UpdateBaseline = f.updateBaseline
	}
	if changed("max-score-regression") {
		cfg.CI.Thresholds.MaxScoreRegression = f.maxScoreRegression
	}
	if changed("max-high-increase") {
		cfg.CI.Thresholds.MaxHighSeverityIncrease = f.maxHighIncrease
	}
	if changed("max-total-increase") {
		cfg.CI.Thresholds.MaxTotalIssuesIncrease = f.maxTotalIncrease
	}
	if changed("min-score-improvement") {
		cfg.CI.Thresholds.MinScoreImprovement = f.minScoreImprovement
	}
	if changed("report-file") {
		cfg.CI.ReportFile = f.reportFile
	}
	if changed("comment-file") {
		cfg.CI.CommentFile = f.commentFile
	}
	if changed("keep") {
		cfg.CI.Keep = f.keep
	}
}

func (a *app) provenance(root string, f *ciFlags) gitinfo.Info {
	info := gitinfo.Info{Branch: f.branch, Commit: f.commit}
	if info.Branch != "" && info.Commit != "" {
		return info
	}
	detected, err := gitinfo.Detect(root)
	if err != nil {
		a.verbose("Git provenance unavailable: %v", err)
		return info
	}
	if info.Branch == "" {
		info.Branch = detected.Branch
	}
	if info.Commit == "" {
		info.Commit = detected.Commit
	}
	return info
}

func (a *app) runCI(ctx context.Context, root string, f *ciFlags) error {
	cfg := a.cfg
	// 1. Validate configuration before any work.
	if err := cfg.Validate(); err != nil {
		return exitError(exitConfig, "%v", err)
	}
	formats := cfg.CI.Formats()
	policy := cfg.CI.Policy()
	if a.flags.output != "" && !render.Has(formats, render.FormatJSON) {
		formats = append(formats, render.FormatJSON)
	}
	// --output stands in for --report-file unless both are given.
	reportFile := cfg.CI.ReportFile
	if a.flags.output != "" && !f.reportFileSet {
		reportFile = a.flags.output
	}

	// 2. Provenance
	info := a.provenance(root, f)
	a.verbose("Branch %q, commit %q, baseline branch %q", info.Branch, gitinfo.ShortCommit(info.Commit), cfg.CI.BaselineBranch)

	// 3. Analyze
	out, prof, err := a.scanDir(ctx, cfg.Profile, root)
	if err != nil {
		return err
	}

	// 4. Snapshot
	snap, err := snapshot.New(out.Results, snapshot.Meta{
		Branch:  info.Branch,
		Commit:  info.Commit,
		Profile: prof.Name,
		Weights: prof.Weights,
	})
	if err != nil {
		return exitError(exitInput, "%v", err)
	}
	store := snapshot.NewStore(cfg.CI.SnapshotsDir)
	snapPath, err := store.Save(snap)
	if err != nil {
		return exitError(exitStorage, "failed to save snapshot: %v", err)
	}
	a.verbose("Saved snapshot %s", snapPath)

	// 5. Baseline
	res := a.resolveBaseline(store, info.Branch, snap, f.baselineID)
	if res.Notice != "" {
		a.verbose("%s", res.Notice)
	}

	// 6. Compare
	var rep regression.Report
	if res.Baseline != nil {
		a.verbose("Comparing against snapshot %s", res.Baseline.ID)
		rep = regression.Compare(snap, res.Baseline, cfg.CI.Thresholds, policy)
	} else {
		rep = regression.Skipped(snap, res.Notice)
	}

	// 7. Baseline update
	updated := false
	onBaseline := info.Branch != "" && info.Branch == cfg.CI.BaselineBranch && f.baselineID == ""
	if res.Bootstrapped || (onBaseline && cfg.CI.UpdateBaseline && rep.Status != regression.StatusFail) {
		path, err := store.SaveBaseline(snap, cfg.CI.BaselineBranch)
		if err != nil {
			return exitError(exitStorage, "failed to update baseline: %v", err)
		}
		updated = true
		a.verbose("Updated baseline %s", path)
	}
	if cfg.CI.Keep > 0 {
		removed, err := store.Prune(cfg.CI.Keep)
		if err != nil {
			return exitError(exitStorage, "failed to prune snapshots: %v", err)
		}
		a.verbose("Pruned %s", plural(len(removed), "snapshot"))
	}

	// 8. Render
	run := render.Run{
		Version:         version,
		Bootstrapped:    res.Bootstrapped,
		BaselineUpdated: updated,
		SnapshotPath:    snapPath,
		Skipped:         len(out.Skipped),
	}
	if err := a.renderCI(formats, reportFile, cfg.CI.CommentFile, rep, snap, run, policy); err != nil {
		return err
	}

	// 9. Verdict
	if code := rep.ExitCode(policy); code != exitOK {
		return exitError(exitRegression, "performance regression: %s", regressionSummary(rep))
	}
	return nil
}

func (a *app) resolveBaseline(store *snapshot.Store, branch string, snap *snapshot.Snapshot, baselineID string) snapshot.Resolution {
	if baselineID == "" {
		return snapshot.Resolve(store, branch, a.cfg.CI.BaselineBranch, snap)
	}
	b, err := store.Load(baselineID)
	if err != nil {
		reason := "not found"
		if !errors.Is(err, snapshot.ErrNotFound) {
			reason = fmt.Sprintf("unreadable (%v)", err)
		}
		return snapshot.Resolution{Notice: fmt.Sprintf("baseline snapshot %s is %s; comparison skipped", baselineID, reason)}
	}
	return snapshot.Resolution{Baseline: b}
}

func (a *app) renderCI(formats []render.Format, reportFile, commentFile string, rep regression.Report, snap *snapshot.Snapshot, run render.Run, policy regression.Policy) error {
	if render.Has(formats, render.FormatConsole) {
		c := a.console()
		if err := c.Comparison(a.stdout, rep); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Analyzed %s, score %d/100, %s\n",
			plural(snap.Summary.Files, "file"), snap.Summary.Score, plural(snap.Summary.TotalIssues, "issue"))
		if run.Bootstrapped {
			fmt.Fprintf(a.stdout, "Baseline created for branch %s\n", a.cfg.CI.BaselineBranch)
		} else if run.BaselineUpdated {
			fmt.Fprintf(a.stdout, "Baseline updated for branch %s\n", a.cfg.CI.BaselineBranch)
		}
	}
	if rep.ShouldAnnotate(policy) {
		if err := render.Annotations(a.stdout, rep); err != nil {
			return err
		}
	}
	if render.Has(formats, render.FormatJSON) {
		a.verbose("Writing report to %s", reportFile)
		if err := a.writeFile(reportFile, func(w io.Writer) error {
			return render.WriteJSON(w, render.NewCIReport(rep, snap, run))
		}); err != nil {
			return exitError(exitStorage, "failed to write report: %v", err)
		}
	}
	if render.Has(formats, render.FormatGitHubComment) {
		a.verbose("Writing PR comment to %s", commentFile)
		if err := a.writeFile(commentFile, func(w io.Writer) error {
			_, err := io.WriteString(w, render.PRComment(rep, snap))
			return err
		}); err != nil {
			return exitError(exitStorage, "failed to write PR comment: %v", err)
		}
	}
	return nil
}

func regressionSummary(rep regression.Report) string {
	msgs := make([]string, len(rep.Regressions))
	for i, v := range rep.Regressions {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}
