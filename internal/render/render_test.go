package render

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/regression"
	"github.com/dshills/perfguard/internal/rules"
	"github.com/dshills/perfguard/internal/snapshot"
)

var scorer = analysis.NewScorer(analysis.Weights{})

func sampleResults() []analysis.Result {
	return []analysis.Result{
		scorer.Result("src/List.jsx", []analysis.Issue{
			{RuleID: "effect-missing-deps", Line: 4, Severity: analysis.SeverityHigh, Message: "useEffect has no dependency array.", Suggestion: "Pass a dependency array."},
			{RuleID: "inline-object-prop", Line: 8, Severity: analysis.SeverityMedium, Message: "Object literal passed to prop style.", Suggestion: "Hoist the object."},
		}),
		scorer.Result("src/clean.js", nil),
	}
}

func sampleSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.New(sampleResults(), snapshot.Meta{
		Branch: "feature/list", Commit: "0123456789abcdef", Time: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats(" JSON, console ,json,github-comment")
	if err != nil {
		t.Fatal(err)
	}
	want := []Format{FormatJSON, FormatConsole, FormatGitHubComment}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("format %d = %q, want %q", i, got[i], want[i])
		}
	}
	if !Has(got, FormatConsole) || Has([]Format{FormatJSON}, FormatConsole) {
		t.Error("Has mismatch")
	}

	for _, bad := range []string{"", " , ", "console,xml", "html"} {
		if _, err := ParseFormats(bad); err == nil {
			t.Errorf("ParseFormats(%q) expected error", bad)
		}
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleResults())

	checks := []string{
		"# Performance Analysis",
		"**Files:** 2",
		"**Issues:** 1 high, 1 medium, 0 low",
		"## High Severity",
		"## Medium Severity",
		"`src/List.jsx:4` effect-missing-deps",
		"**Suggestion:** Pass a dependency array.",
	}
	for _, c := range checks {
		if !strings.Contains(md, c) {
			t.Errorf("Markdown missing %q", c)
		}
	}
	if strings.Contains(md, "## Low Severity") {
		t.Error("empty severity section should be omitted")
	}
	if strings.Index(md, "## High Severity") > strings.Index(md, "## Medium Severity") {
		t.Error("high severity should come before medium")
	}
}

func TestMarkdownNoIssues(t *testing.T) {
	md := Markdown([]analysis.Result{scorer.Result("a.js", nil)})
	if !strings.Contains(md, "No issues found.") {
		t.Error("expected 'No issues found.'")
	}
	if !strings.Contains(md, "**Score:** 100 / 100") {
		t.Error("expected perfect score")
	}
}

func regressedReport(t *testing.T, snap *snapshot.Snapshot) regression.Report {
	t.Helper()
	base, err := snapshot.New([]analysis.Result{scorer.Result("src/List.jsx", nil), scorer.Result("src/clean.js", nil)}, snapshot.Meta{Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	return regression.Compare(snap, base, regression.DefaultThresholds, regression.Policy{FailOnRegression: true, WarnOnRegression: true})
}

func TestPRComment(t *testing.T) {
	snap := sampleSnapshot(t)
	rep := regressedReport(t, snap)
	md := PRComment(rep, snap)

	checks := []string{
		CommentMarker,
		"## Performance Report",
		"**Status:** ❌ FAIL",
		"**Score:** 93 / 100 (baseline 100, -7)",
		"1 high (+1)",
		"### Regressions",
		"High severity issues increased by 1",
		"### Changed Files",
		"| `src/List.jsx` | changed | 85 | -15 | +1 |",
		"### High Severity Issues",
		"- `src/List.jsx:4` **effect-missing-deps**",
		"on feature/list at 0123456",
	}
	for _, c := range checks {
		if !strings.Contains(md, c) {
			t.Errorf("PRComment missing %q\n%s", c, md)
		}
	}
}

func TestPRCommentSkipped(t *testing.T) {
	snap := sampleSnapshot(t)
	md := PRComment(regression.Skipped(snap, "no baseline found"), snap)
	if !strings.Contains(md, "**Status:** ✅ PASS") {
		t.Error("skipped comparison should pass")
	}
	if !strings.Contains(md, "> no baseline found") {
		t.Error("notice should be quoted")
	}
	if strings.Contains(md, "baseline 100") {
		t.Error("skipped comparison should not show baseline deltas")
	}
}

func TestCIReportJSON(t *testing.T) {
	snap := sampleSnapshot(t)
	rep := regressedReport(t, snap)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, NewCIReport(rep, snap, Run{Version: "1.2.3", Skipped: 1})); err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	summary := doc["summary"].(map[string]any)
	if summary["status"] != "fail" {
		t.Errorf("summary.status = %v", summary["status"])
	}
	if summary["score"] != float64(93) {
		t.Errorf("summary.score = %v", summary["score"])
	}
	if summary["skipped_files"] != float64(1) {
		t.Errorf("summary.skipped_files = %v", summary["skipped_files"])
	}
	if doc["has_regressions"] != true {
		t.Errorf("has_regressions = %v", doc["has_regressions"])
	}
	cmp := doc["comparison"].(map[string]any)
	if cmp["score_delta"] != float64(-7) {
		t.Errorf("comparison.score_delta = %v", cmp["score_delta"])
	}
	if doc["tool"] != Tool || doc["version"] != "1.2.3" {
		t.Errorf("tool/version = %v/%v", doc["tool"], doc["version"])
	}
}

func TestAnnotations(t *testing.T) {
	snap := sampleSnapshot(t)
	rep := regressedReport(t, snap)
	rep.Notice = "line one\nline two"

	var buf bytes.Buffer
	if err := Annotations(&buf, rep); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "::notice title=Performance baseline::line one%0Aline two\n") {
		t.Errorf("notice not escaped:\n%s", out)
	}
	if !strings.Contains(out, "::warning title=Performance regression::High severity issues increased by 1") {
		t.Errorf("missing regression warning:\n%s", out)
	}
	if !strings.Contains(out, "::warning file=src/List.jsx,title=New high severity issues::") {
		t.Errorf("missing file warning:\n%s", out)
	}
}

func TestConsoleResult(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{Verbose: true}
	if err := c.Result(&buf, sampleResults()[0]); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"src/List.jsx", "score 85/100", "effect-missing-deps", "Pass a dependency array."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("color disabled but escape codes present")
	}

	buf.Reset()
	if err := (&Console{}).Result(&buf, sampleResults()[1]); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No performance issues found.") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestConsoleColor(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{Color: true}
	if err := c.Result(&buf, sampleResults()[0]); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Error("expected escape codes when color is enabled")
	}
}

func TestConsoleHealth(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Console{}).Health(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Health score: 93/100 (excellent)", "Lowest scoring files", "Most frequent rules", "inline-object-prop"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleBulkAndComparison(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Console{}).Bulk(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Analyzed 2 files") || strings.Contains(buf.String(), "src/clean.js") {
		t.Errorf("unexpected bulk output:\n%s", buf.String())
	}

	buf.Reset()
	snap := sampleSnapshot(t)
	if err := (&Console{}).Comparison(&buf, regressedReport(t, snap)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Performance check: FAIL", "regression: High severity issues", "Changed files"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Baseline and current columns of the severity rows are filled.
	if !regexp.MustCompile(`High\W+0\W+1\W+1`).MatchString(out) {
		t.Errorf("high row missing baseline/current counts:\n%s", out)
	}
}

func TestConsoleRules(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Console{}).Rules(&buf, rules.Builtin()); err != nil {
		t.Fatal(err)
	}
	for _, id := range rules.Builtin().IDs() {
		if !strings.Contains(buf.String(), id) {
			t.Errorf("rules output missing %s", id)
		}
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "excellent"}, {90, "excellent"}, {89, "good"}, {75, "good"}, {74, "fair"}, {50, "fair"}, {49, "poor"}, {0, "poor"},
	}
	for _, tt := range tests {
		if got := Grade(tt.score); got != tt.want {
			t.Errorf("Grade(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
