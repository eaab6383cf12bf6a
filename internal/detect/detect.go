// Package detect applies a rule set to one file's text.
package detect

import (
	"context"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/rules"
)

const (
	// DefaultMaxLines caps how many lines of a file are inspected.
	// Lines past the ceiling are ignored.
	DefaultMaxLines = 20000

	// DefaultTimeout bounds the rule evaluation of a single file.
	DefaultTimeout = 10 * time.Second
)

// Options configures a Detector. Zero values select the defaults.
type Options struct {
	MaxLines int
	Timeout  time.Duration
	Logger   *log.Logger
}

// Detector runs an immutable rule set over source text. It holds no
// mutable state and is safe for concurrent use.
type Detector struct {
	set      *rules.Set
	maxLines int
	timeout  time.Duration
	logger   *log.Logger
}

// New creates a Detector for the given rule set.
func New(set *rules.Set, opts Options) *Detector {
	d := &Detector{
		set:      set,
		maxLines: opts.MaxLines,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
	if d.maxLines <= 0 {
		d.maxLines = DefaultMaxLines
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard, "", 0)
	}
	return d
}

// Rules returns the rule set the detector applies.
func (d *Detector) Rules() *rules.Set { return d.set }

// Detect returns the issues found in text, ordered by line and then by rule
// declaration order. It never fails: undecodable text yields no issues, a
// panicking rule contributes nothing, and a run that exceeds the timeout is
// reported as a single analysis-timeout issue. When ctx is cancelled the
// result is nil.
func (d *Detector) Detect(ctx context.Context, text, filePath string) []analysis.Issue {
	if text == "" {
		return nil
	}
	if !utf8.ValidString(text) || strings.IndexByte(text, 0) >= 0 {
		d.logger.Printf("%s: not valid UTF-8 text, skipping", filePath)
		return nil
	}
	text = d.truncate(text, filePath)

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan []analysis.Issue, 1)
	go func() {
		done <- d.run(runCtx, text, filePath)
	}()

	select {
	case issues := <-done:
		if runCtx.Err() != nil {
			return d.expired(ctx, filePath)
		}
		return issues
	case <-runCtx.Done():
		return d.expired(ctx, filePath)
	}
}

func (d *Detector) expired(parent context.Context, filePath string) []analysis.Issue {
	if parent.Err() != nil {
		return nil
	}
	d.logger.Printf("%s: analysis timed out after %s", filePath, d.timeout)
	return []analysis.Issue{analysis.TimeoutIssue(d.timeout)}
}

func (d *Detector) truncate(text, filePath string) string {
	lines := strings.SplitN(text, "\n", d.maxLines+1)
	if len(lines) <= d.maxLines {
		return text
	}
	d.logger.Printf("%s: more than %d lines, only the first %d are analyzed", filePath, d.maxLines, d.maxLines)
	return strings.Join(lines[:d.maxLines], "\n")
}

func (d *Detector) run(ctx context.Context, text, filePath string) []analysis.Issue {
	src := rules.NewSource(text)
	var issues []analysis.Issue
	for _, r := range d.set.Rules() {
		if ctx.Err() != nil {
			return nil
		}
		for _, m := range d.apply(r, src, filePath) {
			m.Line = clamp(m.Line, 1, len(src.Lines))
			issues = append(issues, r.Issue(m))
		}
	}
	analysis.SortIssues(issues, d.set.Order)
	return issues
}

// apply evaluates one rule, converting a panic into zero findings.
func (d *Detector) apply(r rules.Rule, src *rules.Source, filePath string) (matches []rules.Match) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Printf("%s: rule %s failed: %v", filePath, r.ID, p)
			matches = nil
		}
	}()
	return r.Match(src)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
