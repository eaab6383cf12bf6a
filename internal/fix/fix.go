// Package fix turns a file's issues into a line-by-line remediation plan.
// It never rewrites source files.
package fix

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dshills/perfguard/internal/analysis"
)

// Suggestion is one rule's advice for a line.
type Suggestion struct {
	RuleID     string            `json:"rule_id"`
	Severity   analysis.Severity `json:"severity"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion"`
}

// Item groups the suggestions for one source line.
type Item struct {
	Line        int          `json:"line"`
	Code        string       `json:"code,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Plan is the remediation plan for one file.
type Plan struct {
	FilePath string           `json:"file_path"`
	Score    int              `json:"score"`
	Items    []Item           `json:"items"`
	Summary  analysis.Summary `json:"summary"`
}

// Build groups the issues of r by line, most severe suggestion first. When
// text is the file's source, each item carries the trimmed code of its line.
func Build(r analysis.Result, text string) Plan {
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}

	issues := append([]analysis.Issue(nil), r.Issues...)
	analysis.SortBySeverity(issues)

	byLine := map[int]*Item{}
	var order []int
	for _, iss := range issues {
		it, ok := byLine[iss.Line]
		if !ok {
			it = &Item{Line: iss.Line}
			if iss.Line >= 1 && iss.Line <= len(lines) {
				it.Code = strings.TrimSpace(lines[iss.Line-1])
			}
			byLine[iss.Line] = it
			order = append(order, iss.Line)
		}
		it.Suggestions = append(it.Suggestions, Suggestion{
			RuleID:     iss.RuleID,
			Severity:   iss.Severity,
			Message:    iss.Message,
			Suggestion: iss.Suggestion,
		})
	}
	sort.Ints(order)

	p := Plan{FilePath: r.FilePath, Score: r.Score, Summary: r.Summary, Items: make([]Item, 0, len(order))}
	for _, ln := range order {
		p.Items = append(p.Items, *byLine[ln])
	}
	return p
}

// Empty reports whether the plan has nothing to fix.
func (p Plan) Empty() bool { return len(p.Items) == 0 }

// Text renders the plan for a terminal or a plain text file.
func (p Plan) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix plan for %s (score %d/100, %d issues)\n", p.FilePath, p.Score, p.Summary.TotalIssues)
	if p.Empty() {
		b.WriteString("\nNothing to fix.\n")
		return b.String()
	}
	for _, it := range p.Items {
		fmt.Fprintf(&b, "\nLine %d", it.Line)
		if it.Code != "" {
			fmt.Fprintf(&b, ": %s", it.Code)
		}
		b.WriteString("\n")
		for _, s := range it.Suggestions {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", s.Severity, s.RuleID, s.Message)
			if s.Suggestion != "" {
				fmt.Fprintf(&b, "    fix: %s\n", s.Suggestion)
			}
		}
	}
	return b.String()
}

// WriteFile writes the plan text to path. If the plan is empty, no file
// is created.
func WriteFile(p Plan, path string) error {
	if p.Empty() {
		return nil
	}
	if err := os.WriteFile(path, []byte(p.Text()), 0644); err != nil {
		return fmt.Errorf("fix.WriteFile: %w", err)
	}
	return nil
}
