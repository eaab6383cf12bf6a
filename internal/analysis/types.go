// Package analysis defines the per-file issue and result types and the
// scoring function that turns issues into a 0-100 health score.
package analysis

// Issue is one occurrence of a rule firing on a line of a file.
type Issue struct {
	RuleID     string   `json:"rule_id"`
	Line       int      `json:"line"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Summary holds severity-bucketed issue counts.
type Summary struct {
	TotalIssues int `json:"total_issues"`
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Low         int `json:"low"`
}

// Add returns the bucket-wise sum of two summaries.
func (s Summary) Add(o Summary) Summary {
	return Summary{
		TotalIssues: s.TotalIssues + o.TotalIssues,
		High:        s.High + o.High,
		Medium:      s.Medium + o.Medium,
		Low:         s.Low + o.Low,
	}
}

// Result is one file's analysis. Summary and Score are derived from Issues;
// build it with Scorer.Result and do not edit it afterwards.
type Result struct {
	FilePath string  `json:"file_path"`
	Issues   []Issue `json:"issues"`
	Summary  Summary `json:"summary"`
	Score    int     `json:"score"`
}

// Count returns the number of issues with the given severity.
func (r Result) Count(sev Severity) int {
	switch sev {
	case SeverityHigh:
		return r.Summary.High
	case SeverityMedium:
		return r.Summary.Medium
	case SeverityLow:
		return r.Summary.Low
	}
	return 0
}
