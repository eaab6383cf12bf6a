package analysis

import (
	"fmt"
	"time"
)

// RuleTimeout is the rule ID of the issue reported when a file's analysis
// exceeds its time budget.
const RuleTimeout = "analysis-timeout"

// TimeoutIssue is the single issue that replaces a file's findings when
// detection did not finish within d.
func TimeoutIssue(d time.Duration) Issue {
	return Issue{
		RuleID:     RuleTimeout,
		Line:       1,
		Severity:   SeverityLow,
		Message:    fmt.Sprintf("Analysis timed out after %s; results for this file are incomplete.", d),
		Suggestion: "Split the file or raise the per-file timeout.",
	}
}
