// Package rules defines detection rules and the ordered RuleSet the
// detector applies to each file.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/perfguard/internal/analysis"
)

// Match is one place a matcher fired. Text is substituted for {match}
// in the rule's message and suggestion.
type Match struct {
	Line int
	Text string
}

// Matcher finds rule occurrences in a source. It must be pure: the same
// source always yields the same matches, and it must not retain src.
type Matcher func(src *Source) []Match

// Rule is a single named detector with a fixed severity.
type Rule struct {
	ID         string
	Severity   analysis.Severity
	Match      Matcher
	Message    string
	Suggestion string
}

// Validate checks that a rule is fully described.
func (r Rule) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("id: required"))
	}
	if !r.Severity.Valid() {
		errs = append(errs, fmt.Errorf("severity: invalid %q", r.Severity))
	}
	if r.Match == nil {
		errs = append(errs, errors.New("matcher: required"))
	}
	if r.Message == "" {
		errs = append(errs, errors.New("message: required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("rule %q: %w", r.ID, errors.Join(errs...))
	}
	return nil
}

// Issue renders a match into an issue.
func (r Rule) Issue(m Match) analysis.Issue {
	return analysis.Issue{
		RuleID:     r.ID,
		Line:       m.Line,
		Severity:   r.Severity,
		Message:    expand(r.Message, m.Text),
		Suggestion: expand(r.Suggestion, m.Text),
	}
}

func expand(tmpl, text string) string {
	return strings.ReplaceAll(tmpl, "{match}", text)
}
