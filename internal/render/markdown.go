package render

import (
	"fmt"
	"strings"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/regression"
	"github.com/dshills/perfguard/internal/snapshot"
)

// CommentMarker is embedded in PR comments so a bot can find and update
// its previous comment.
const CommentMarker = "<!-- perfguard-report -->"

// maxCommentFiles and maxCommentIssues bound the PR comment tables.
const (
	maxCommentFiles  = 20
	maxCommentIssues = 10
)

// Markdown renders analysis results as a Markdown report.
func Markdown(results []analysis.Result) string {
	var b strings.Builder

	var sum analysis.Summary
	for _, r := range results {
		sum = sum.Add(r.Summary)
	}
	b.WriteString("# Performance Analysis\n\n")
	fmt.Fprintf(&b, "**Files:** %d\n", len(results))
	fmt.Fprintf(&b, "**Score:** %d / 100\n", snapshot.Aggregate(results).Score)
	fmt.Fprintf(&b, "**Issues:** %d high, %d medium, %d low\n\n", sum.High, sum.Medium, sum.Low)

	sections := []struct {
		title string
		sev   analysis.Severity
	}{
		{"High Severity", analysis.SeverityHigh},
		{"Medium Severity", analysis.SeverityMedium},
		{"Low Severity", analysis.SeverityLow},
	}
	for _, sec := range sections {
		var lines []string
		for _, r := range results {
			for _, iss := range filterIssues(r.Issues, sec.sev) {
				lines = append(lines, issueMarkdown(r.FilePath, iss))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sec.title)
		for _, l := range lines {
			b.WriteString(l)
		}
	}

	if sum.TotalIssues == 0 {
		b.WriteString("No issues found.\n\n")
	}
	return b.String()
}

func filterIssues(issues []analysis.Issue, sev analysis.Severity) []analysis.Issue {
	var result []analysis.Issue
	for _, iss := range issues {
		if iss.Severity == sev {
			result = append(result, iss)
		}
	}
	return result
}

func issueMarkdown(path string, iss analysis.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### `%s:%d` %s\n\n", path, iss.Line, iss.RuleID)
	fmt.Fprintf(&b, "%s\n\n", iss.Message)
	if iss.Suggestion != "" {
		fmt.Fprintf(&b, "**Suggestion:** %s\n\n", iss.Suggestion)
	}
	return b.String()
}

// PRComment renders a comparison as a Markdown pull request comment.
func PRComment(rep regression.Report, snap *snapshot.Snapshot) string {
	var b strings.Builder
	sum := snap.Summary

	b.WriteString(CommentMarker + "\n")
	b.WriteString("## Performance Report\n\n")
	fmt.Fprintf(&b, "**Status:** %s %s\n", statusBadge(rep.Status), strings.ToUpper(string(rep.Status)))
	if rep.Compared {
		fmt.Fprintf(&b, "**Score:** %d / 100 (baseline %d, %s)\n", sum.Score, rep.BaselineScore, signed(rep.ScoreDelta))
		fmt.Fprintf(&b, "**Issues:** %d high (%s), %d medium (%s), %d low (%s), %d total (%s)\n\n",
			sum.High, signed(rep.SeverityDeltas.High),
			sum.Medium, signed(rep.SeverityDeltas.Medium),
			sum.Low, signed(rep.SeverityDeltas.Low),
			sum.TotalIssues, signed(rep.TotalIssuesDelta))
	} else {
		fmt.Fprintf(&b, "**Score:** %d / 100\n", sum.Score)
		fmt.Fprintf(&b, "**Issues:** %d high, %d medium, %d low, %d total\n\n", sum.High, sum.Medium, sum.Low, sum.TotalIssues)
	}
	if rep.Notice != "" {
		fmt.Fprintf(&b, "> %s\n\n", rep.Notice)
	}

	if len(rep.Regressions) > 0 {
		b.WriteString("### Regressions\n\n")
		for _, v := range rep.Regressions {
			fmt.Fprintf(&b, "- %s\n", v.Message)
		}
		b.WriteString("\n")
	}
	if len(rep.Improvements) > 0 {
		b.WriteString("### Improvements\n\n")
		for _, imp := range rep.Improvements {
			fmt.Fprintf(&b, "- %s\n", imp.Message)
		}
		b.WriteString("\n")
	}

	if len(rep.Files) > 0 {
		b.WriteString("### Changed Files\n\n")
		b.WriteString("| File | Change | Score | Delta | High |\n")
		b.WriteString("|------|--------|------:|------:|-----:|\n")
		for i, f := range rep.Files {
			if i == maxCommentFiles {
				fmt.Fprintf(&b, "\n_and %d more files_\n", len(rep.Files)-maxCommentFiles)
				break
			}
			fmt.Fprintf(&b, "| `%s` | %s | %d | %s | %s |\n", f.Path, f.Change, f.CurrentScore, signed(f.ScoreDelta), signed(f.HighDelta))
		}
		b.WriteString("\n")
	}

	var high []string
	for _, r := range snap.Results {
		for _, iss := range filterIssues(r.Issues, analysis.SeverityHigh) {
			high = append(high, fmt.Sprintf("- `%s:%d` **%s**: %s\n", r.FilePath, iss.Line, iss.RuleID, iss.Message))
		}
	}
	if len(high) > 0 {
		b.WriteString("### High Severity Issues\n\n")
		for i, l := range high {
			if i == maxCommentIssues {
				fmt.Fprintf(&b, "- _and %d more_\n", len(high)-maxCommentIssues)
				break
			}
			b.WriteString(l)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "<sub>snapshot %s", snap.ID)
	if snap.Branch != "" {
		fmt.Fprintf(&b, " on %s", snap.Branch)
	}
	if snap.Commit != "" {
		fmt.Fprintf(&b, " at %s", shortCommit(snap.Commit))
	}
	b.WriteString("</sub>\n")
	return b.String()
}

func statusBadge(s regression.Status) string {
	switch s {
	case regression.StatusFail:
		return "❌"
	case regression.StatusWarn:
		return "⚠️"
	}
	return "✅"
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
