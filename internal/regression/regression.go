// Package regression compares a run snapshot against its baseline and
// decides whether the change is acceptable.
package regression

import (
	"fmt"
	"math"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/snapshot"
)

// Status is the verdict of a comparison.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Thresholds bound how much a run may degrade before it counts as a
// regression. All values are non-negative.
type Thresholds struct {
	MaxScoreRegression      float64 `json:"max_score_regression" koanf:"max_score_regression"`
	MaxHighSeverityIncrease float64 `json:"max_high_severity_increase" koanf:"max_high_severity_increase"`
	MaxTotalIssuesIncrease  float64 `json:"max_total_issues_increase" koanf:"max_total_issues_increase"`
	MinScoreImprovement     float64 `json:"min_score_improvement" koanf:"min_score_improvement"`
}

// DefaultThresholds allows a 5 point score drop, no new high severity
// issues, and up to 10 new issues overall.
var DefaultThresholds = Thresholds{
	MaxScoreRegression:      5,
	MaxHighSeverityIncrease: 0,
	MaxTotalIssuesIncrease:  10,
	MinScoreImprovement:     5,
}

// Validate rejects negative or non-finite values.
func (t Thresholds) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"max_score_regression", t.MaxScoreRegression},
		{"max_high_severity_increase", t.MaxHighSeverityIncrease},
		{"max_total_issues_increase", t.MaxTotalIssuesIncrease},
		{"min_score_improvement", t.MinScoreImprovement},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%s must be a non-negative number, got %v", f.name, f.v)
		}
	}
	return nil
}

// Policy selects how regressions affect the verdict.
type Policy struct {
	FailOnRegression bool `json:"fail_on_regression" koanf:"fail_on_regression"`
	WarnOnRegression bool `json:"warn_on_regression" koanf:"warn_on_regression"`
}

// Metric names used in violations and improvements.
const (
	MetricScore        = "score"
	MetricHighSeverity = "high_severity"
	MetricMedium       = "medium_severity"
	MetricLow          = "low_severity"
	MetricTotalIssues  = "total_issues"
)

// SeverityDeltas are current minus baseline counts per severity.
type SeverityDeltas struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Violation is one exceeded threshold.
type Violation struct {
	Metric  string  `json:"metric"`
	Delta   int     `json:"delta"`
	Limit   float64 `json:"limit"`
	Message string  `json:"message"`
}

// Improvement is one favorable change. Improvements never affect Status.
type Improvement struct {
	Metric  string `json:"metric"`
	Delta   int    `json:"delta"`
	Message string `json:"message"`
}

// Report is the full comparison of a run against its baseline.
type Report struct {
	Status           Status           `json:"status"`
	HasRegressions   bool             `json:"has_regressions"`
	Compared         bool             `json:"compared"`
	Notice           string           `json:"notice,omitempty"`
	BaselineID       string           `json:"baseline_id,omitempty"`
	CurrentID        string           `json:"current_id,omitempty"`
	BaselineScore    int              `json:"baseline_score"`
	CurrentScore     int              `json:"current_score"`
	BaselineCounts   analysis.Summary `json:"baseline_counts"`
	CurrentCounts    analysis.Summary `json:"current_counts"`
	ScoreDelta       int              `json:"score_delta"`
	SeverityDeltas   SeverityDeltas   `json:"severity_deltas"`
	TotalIssuesDelta int              `json:"total_issues_delta"`
	Thresholds       Thresholds       `json:"thresholds"`
	Regressions      []Violation      `json:"regressions"`
	Improvements     []Improvement    `json:"improvements"`
	Files            []FileDelta      `json:"files"`
}

// Compare evaluates current against baseline. Each threshold is checked
// independently; any exceeded threshold is a regression, which fails the
// run when p.FailOnRegression is set and warns otherwise.
func Compare(current, baseline *snapshot.Snapshot, t Thresholds, p Policy) Report {
	cur, base := current.Summary, baseline.Summary
	r := Report{
		Compared:       true,
		BaselineID:     baseline.ID,
		CurrentID:      current.ID,
		BaselineScore:  base.Score,
		CurrentScore:   cur.Score,
		BaselineCounts: base.Counts(),
		CurrentCounts:  cur.Counts(),
		ScoreDelta:     cur.Score - base.Score,
		SeverityDeltas: SeverityDeltas{
			High:   cur.High - base.High,
			Medium: cur.Medium - base.Medium,
			Low:    cur.Low - base.Low,
		},
		TotalIssuesDelta: cur.TotalIssues - base.TotalIssues,
		Thresholds:       t,
		Regressions:      []Violation{},
		Improvements:     []Improvement{},
	}

	if float64(-r.ScoreDelta) > t.MaxScoreRegression {
		r.Regressions = append(r.Regressions, Violation{
			Metric:  MetricScore,
			Delta:   r.ScoreDelta,
			Limit:   t.MaxScoreRegression,
			Message: fmt.Sprintf("Score dropped by %d points (%d -> %d), more than the allowed %s", -r.ScoreDelta, base.Score, cur.Score, formatLimit(t.MaxScoreRegression)),
		})
	}
	if float64(r.SeverityDeltas.High) > t.MaxHighSeverityIncrease {
		r.Regressions = append(r.Regressions, Violation{
			Metric:  MetricHighSeverity,
			Delta:   r.SeverityDeltas.High,
			Limit:   t.MaxHighSeverityIncrease,
			Message: fmt.Sprintf("High severity issues increased by %d (%d -> %d), more than the allowed %s", r.SeverityDeltas.High, base.High, cur.High, formatLimit(t.MaxHighSeverityIncrease)),
		})
	}
	if float64(r.TotalIssuesDelta) > t.MaxTotalIssuesIncrease {
		r.Regressions = append(r.Regressions, Violation{
			Metric:  MetricTotalIssues,
			Delta:   r.TotalIssuesDelta,
			Limit:   t.MaxTotalIssuesIncrease,
			Message: fmt.Sprintf("Total issues increased by %d (%d -> %d), more than the allowed %s", r.TotalIssuesDelta, base.TotalIssues, cur.TotalIssues, formatLimit(t.MaxTotalIssuesIncrease)),
		})
	}
	r.HasRegressions = len(r.Regressions) > 0

	switch {
	case r.HasRegressions && p.FailOnRegression:
		r.Status = StatusFail
	case r.HasRegressions:
		r.Status = StatusWarn
	default:
		r.Status = StatusPass
	}

	if r.ScoreDelta > 0 && float64(r.ScoreDelta) >= t.MinScoreImprovement {
		r.Improvements = append(r.Improvements, Improvement{
			Metric:  MetricScore,
			Delta:   r.ScoreDelta,
			Message: fmt.Sprintf("Score improved by %d points (%d -> %d)", r.ScoreDelta, base.Score, cur.Score),
		})
	}
	decreases := []struct {
		metric, label string
		delta         int
	}{
		{MetricHighSeverity, "High severity issues", r.SeverityDeltas.High},
		{MetricMedium, "Medium severity issues", r.SeverityDeltas.Medium},
		{MetricLow, "Low severity issues", r.SeverityDeltas.Low},
		{MetricTotalIssues, "Total issues", r.TotalIssuesDelta},
	}
	for _, d := range decreases {
		if d.delta < 0 {
			r.Improvements = append(r.Improvements, Improvement{
				Metric:  d.metric,
				Delta:   d.delta,
				Message: fmt.Sprintf("%s decreased by %d", d.label, -d.delta),
			})
		}
	}

	r.Files = compareFiles(current, baseline)
	return r
}

// Skipped is the report for a run that had no baseline to compare against.
// It always passes and carries the reason in Notice.
func Skipped(current *snapshot.Snapshot, notice string) Report {
	r := Report{
		Status:       StatusPass,
		Notice:       notice,
		Regressions:  []Violation{},
		Improvements: []Improvement{},
		Files:        []FileDelta{},
	}
	if current != nil {
		r.CurrentID = current.ID
		r.CurrentScore = current.Summary.Score
		r.BaselineScore = current.Summary.Score
		r.CurrentCounts = current.Summary.Counts()
		r.BaselineCounts = r.CurrentCounts
	}
	return r
}

// ExitCode maps the verdict to a process exit status: 1 when the run
// failed and failing is enabled, 0 otherwise. Warnings never fail.
func (r Report) ExitCode(p Policy) int {
	if r.Status == StatusFail && p.FailOnRegression {
		return 1
	}
	return 0
}

// ShouldAnnotate reports whether regressions should be surfaced as CI
// warning annotations.
func (r Report) ShouldAnnotate(p Policy) bool {
	return r.HasRegressions && p.WarnOnRegression
}

func formatLimit(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
