package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/config"
	"github.com/dshills/perfguard/internal/render"
	"github.com/dshills/perfguard/internal/repl"
)

const (
	cleanSource = "export const Title = ({ text }) => <h1>{text}</h1>;\n"
	// Two effects without dependency arrays: two high severity issues.
	regressedSource = `export function Panel() {
  useEffect(() => {
    load();
  });
  useEffect(() => {
    save();
  });
  return null;
}
`
)

type env struct {
	t         *testing.T
	project   string
	snapshots string
	report    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		t:         t,
		project:   filepath.Join(dir, "project"),
		snapshots: filepath.Join(dir, "snapshots"),
		report:    filepath.Join(dir, "out", "report.json"),
	}
	e.write("src/Panel.jsx", cleanSource)
	return e
}

func (e *env) write(rel, body string) {
	e.t.Helper()
	p := filepath.Join(e.project, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		e.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		e.t.Fatal(err)
	}
}

// ci runs the ci command against the project as branch and returns the exit
// code and captured output.
func (e *env) ci(branch string, extra ...string) (int, string, string) {
	e.t.Helper()
	args := []string{
		"--no-color", "ci", e.project,
		"--branch", branch,
		"--commit", "0123456789abcdef",
		"--snapshots-dir", e.snapshots,
		"--report-file", e.report,
		"--output-formats", "json",
	}
	args = append(args, extra...)
	return runArgs(args...)
}

func (e *env) readReport() render.CIReport {
	e.t.Helper()
	data, err := os.ReadFile(e.report)
	if err != nil {
		e.t.Fatalf("reading report: %v", err)
	}
	var rep render.CIReport
	if err := json.Unmarshal(data, &rep); err != nil {
		e.t.Fatalf("decoding report: %v", err)
	}
	return rep
}

func runArgs(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCIBootstrapsBaseline(t *testing.T) {
	e := newEnv(t)
	code, _, stderr := e.ci("main")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0 (stderr: %s)", code, stderr)
	}
	rep := e.readReport()
	if rep.Summary.Status != "pass" {
		t.Errorf("status = %q, want pass", rep.Summary.Status)
	}
	if !rep.Bootstrapped || !rep.BaselineUpdated {
		t.Errorf("bootstrapped = %v, baseline_updated = %v, want both true", rep.Bootstrapped, rep.BaselineUpdated)
	}
	if rep.Comparison.Compared {
		t.Error("bootstrap run should not be compared")
	}
	if rep.Summary.Score != analysis.MaxScore {
		t.Errorf("score = %d, want 100", rep.Summary.Score)
	}
	if _, err := os.Stat(filepath.Join(e.snapshots, "baseline-main.json")); err != nil {
		t.Errorf("baseline not written: %v", err)
	}
}

func TestCIRegressionFails(t *testing.T) {
	e := newEnv(t)
	if code, _, stderr := e.ci("main"); code != exitOK {
		t.Fatalf("bootstrap exit = %d (stderr: %s)", code, stderr)
	}
	e.write("src/Panel.jsx", regressedSource)

	code, _, stderr := e.ci("feature/effects")
	if code != exitRegression {
		t.Fatalf("exit = %d, want %d (stderr: %s)", code, exitRegression, stderr)
	}
	if !strings.Contains(stderr, "performance regression") {
		t.Errorf("stderr missing regression message: %s", stderr)
	}
	rep := e.readReport()
	if rep.Summary.Status != "fail" || !rep.HasRegressions {
		t.Errorf("status = %q, has_regressions = %v", rep.Summary.Status, rep.HasRegressions)
	}
	if rep.Summary.ScoreDelta != -20 {
		t.Errorf("score delta = %d, want -20", rep.Summary.ScoreDelta)
	}
	if rep.BaselineUpdated {
		t.Error("feature branch run must not update the baseline")
	}
}

func TestCIRegressionWarnOnly(t *testing.T) {
	e := newEnv(t)
	if code, _, _ := e.ci("main"); code != exitOK {
		t.Fatal("bootstrap failed")
	}
	e.write("src/Panel.jsx", regressedSource)

	code, stdout, stderr := e.ci("feature/effects", "--fail-on-regression=false")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0 (stderr: %s)", code, stderr)
	}
	if got := e.readReport().Summary.Status; got != "warn" {
		t.Errorf("status = %q, want warn", got)
	}
	if !strings.Contains(stdout, "::warning title=Performance regression::") {
		t.Errorf("expected regression annotation, got:\n%s", stdout)
	}
}

func TestCIFailedRunKeepsBaseline(t *testing.T) {
	e := newEnv(t)
	if code, _, _ := e.ci("main"); code != exitOK {
		t.Fatal("bootstrap failed")
	}
	before, err := os.ReadFile(filepath.Join(e.snapshots, "baseline-main.json"))
	if err != nil {
		t.Fatal(err)
	}
	e.write("src/Panel.jsx", regressedSource)

	if code, _, _ := e.ci("main"); code != exitRegression {
		t.Fatalf("exit = %d, want %d", code, exitRegression)
	}
	after, err := os.ReadFile(filepath.Join(e.snapshots, "baseline-main.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failing run replaced the baseline")
	}
}

func TestCIWithoutBaselineSkipsComparison(t *testing.T) {
	e := newEnv(t)
	code, _, stderr := e.ci("feature/x")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0 (stderr: %s)", code, stderr)
	}
	rep := e.readReport()
	if rep.Comparison.Compared || rep.Bootstrapped {
		t.Errorf("compared = %v, bootstrapped = %v, want both false", rep.Comparison.Compared, rep.Bootstrapped)
	}
	if !strings.Contains(rep.Comparison.Notice, "comparison skipped") {
		t.Errorf("notice = %q", rep.Comparison.Notice)
	}
	if _, err := os.Stat(filepath.Join(e.snapshots, "baseline-main.json")); !os.IsNotExist(err) {
		t.Errorf("feature run created a baseline: %v", err)
	}
}

func TestCICorruptBaselineDegrades(t *testing.T) {
	e := newEnv(t)
	if err := os.MkdirAll(e.snapshots, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(e.snapshots, "baseline-main.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := e.ci("feature/x")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0 (stderr: %s)", code, stderr)
	}
	if notice := e.readReport().Comparison.Notice; !strings.Contains(notice, "unreadable") {
		t.Errorf("notice = %q, want unreadable baseline notice", notice)
	}

	// The baseline branch heals the corrupt baseline.
	if code, _, _ := e.ci("main"); code != exitOK {
		t.Fatalf("baseline branch exit = %d", code)
	}
	if !e.readReport().Bootstrapped {
		t.Error("expected the baseline branch to bootstrap over a corrupt baseline")
	}
}

func TestCIExplicitBaselineID(t *testing.T) {
	e := newEnv(t)
	if code, _, _ := e.ci("main"); code != exitOK {
		t.Fatal("bootstrap failed")
	}
	first := e.readReport().SnapshotID
	e.write("src/Panel.jsx", regressedSource)

	code, _, _ := e.ci("feature/y", "--baseline-id", first, "--max-score-regression", "50", "--max-high-increase", "5", "--max-total-increase", "5")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0 with relaxed thresholds", code)
	}
	rep := e.readReport()
	if rep.Comparison.BaselineID != first {
		t.Errorf("baseline id = %q, want %q", rep.Comparison.BaselineID, first)
	}

	code, _, _ = e.ci("feature/y", "--baseline-id", "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if code != exitOK {
		t.Fatalf("missing baseline id exit = %d, want 0", code)
	}
	if rep := e.readReport(); rep.Comparison.Compared || !strings.Contains(rep.Comparison.Notice, "not found") {
		t.Errorf("compared = %v, notice = %q", rep.Comparison.Compared, rep.Comparison.Notice)
	}
}

func TestCIWritesComment(t *testing.T) {
	e := newEnv(t)
	comment := filepath.Join(t.TempDir(), "comment.md")
	code, _, stderr := e.ci("main", "--output-formats", "json,github-comment", "--comment-file", comment)
	if code != exitOK {
		t.Fatalf("exit = %d (stderr: %s)", code, stderr)
	}
	data, err := os.ReadFile(comment)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), render.CommentMarker) {
		t.Errorf("comment missing marker:\n%s", data)
	}
}

func TestCIPrunesSnapshots(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		if code, _, _ := e.ci("main", "--keep", "2"); code != exitOK {
			t.Fatalf("run %d failed", i)
		}
	}
	matches, err := filepath.Glob(filepath.Join(e.snapshots, "snapshot-*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Errorf("snapshots = %d, want 2", len(matches))
	}
}

func TestCIConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"--output-formats", "console,xml"}},
		{"negative threshold", []string{"--max-score-regression", "-1"}},
		{"negative keep", []string{"--keep", "-3"}},
		{"unknown profile", []string{"--profile", "nope"}},
		{"unknown flag", []string{"--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			code, _, stderr := e.ci("main", tt.args...)
			if code != exitConfig {
				t.Errorf("exit = %d, want %d (stderr: %s)", code, exitConfig, stderr)
			}
			if _, err := os.Stat(e.snapshots); !os.IsNotExist(err) {
				t.Error("config error should stop before any snapshot is written")
			}
		})
	}
}

func TestCIStorageError(t *testing.T) {
	e := newEnv(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	e.snapshots = filepath.Join(blocker, "snapshots")

	code, _, stderr := e.ci("main")
	if code != exitStorage {
		t.Errorf("exit = %d, want %d (stderr: %s)", code, exitStorage, stderr)
	}
}

func TestCIMissingRoot(t *testing.T) {
	e := newEnv(t)
	e.project = filepath.Join(e.project, "missing")
	if code, _, _ := e.ci("main"); code != exitInput {
		t.Errorf("exit = %d, want %d", code, exitInput)
	}
}

func TestCICancelled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"--no-color", "ci", e.project, "--branch", "main", "--snapshots-dir", e.snapshots}, &stdout, &stderr)
	if code != exitInterrupted {
		t.Errorf("exit = %d, want %d (stderr: %s)", code, exitInterrupted, stderr.String())
	}
	if _, err := os.Stat(e.snapshots); !os.IsNotExist(err) {
		t.Errorf("aborted run touched the snapshot store: %v", err)
	}
}

// cancelOnWrite cancels a context once the written output contains trigger.
type cancelOnWrite struct {
	buf     bytes.Buffer
	trigger string
	cancel  context.CancelFunc
}

func (w *cancelOnWrite) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if strings.Contains(w.buf.String(), w.trigger) {
		w.cancel()
	}
	return len(p), nil
}

func TestCICancelledDuringScan(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 12; i++ {
		e.write(filepath.Join("src", fmt.Sprintf("c%02d.jsx", i)), regressedSource)
	}
	// Establish a baseline so the store exists before the aborted run.
	if code, _, _ := e.ci("main"); code != exitOK {
		t.Fatal("bootstrap failed")
	}
	before, err := os.ReadDir(e.snapshots)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The scanner logs the file count once enumeration is done and before
	// any file is analyzed.
	stderr := &cancelOnWrite{trigger: "files with", cancel: cancel}
	var stdout bytes.Buffer
	code := run(ctx, []string{
		"--no-color", "--verbose", "ci", e.project,
		"--branch", "main", "--commit", "abc",
		"--snapshots-dir", e.snapshots, "--report-file", e.report,
	}, &stdout, stderr)
	if code != exitInterrupted {
		t.Fatalf("exit = %d, want %d (stderr: %s)", code, exitInterrupted, stderr.buf.String())
	}

	after, err := os.ReadDir(e.snapshots)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Errorf("aborted run changed the snapshot store: %d entries before, %d after", len(before), len(after))
	}
}

func TestRulesCommand(t *testing.T) {
	code, stdout, _ := runArgs("--no-color", "rules")
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	for _, name := range []string{"full", "quick", "simple"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("profile listing missing %s:\n%s", name, stdout)
		}
	}

	code, stdout, _ = runArgs("rules", "effect-missing-deps")
	if code != exitOK || !strings.Contains(stdout, "effect-missing-deps (high)") {
		t.Errorf("rule detail exit = %d, output %q", code, stdout)
	}

	code, stdout, _ = runArgs("--no-color", "rules", "quick")
	if code != exitOK || !strings.Contains(stdout, "missing-list-key") || strings.Contains(stdout, "console-in-render") {
		t.Errorf("quick rules exit = %d, output:\n%s", code, stdout)
	}

	if code, _, _ := runArgs("rules", "nope"); code != exitConfig {
		t.Errorf("unknown profile exit = %d, want %d", code, exitConfig)
	}
}

func TestMalformedEnvIsConfigError(t *testing.T) {
	t.Setenv("PERFGUARD_WORKERS", "abc")
	code, _, stderr := runArgs("analyze", filepath.Join(t.TempDir(), "missing.jsx"))
	if code != exitConfig {
		t.Errorf("exit = %d, want %d", code, exitConfig)
	}
	if !strings.Contains(stderr, "workers") || strings.Count(strings.TrimSpace(stderr), "\n") != 0 {
		t.Errorf("want a single-line message naming workers, got %q", stderr)
	}

	if code, stdout, _ := runArgs("ci", "--help"); code != exitOK || !strings.Contains(stdout, "--baseline-branch") {
		t.Errorf("ci --help exit = %d, output %q", code, stdout)
	}
}

func TestAnalyzeFile(t *testing.T) {
	e := newEnv(t)
	e.write("src/Panel.jsx", regressedSource)
	out := filepath.Join(t.TempDir(), "result.json")

	code, _, stderr := runArgs("analyze", filepath.Join(e.project, "src", "Panel.jsx"), "-o", out)
	if code != exitOK {
		t.Fatalf("exit = %d (stderr: %s)", code, stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var res analysis.Result
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Score != 80 || res.Summary.High != 2 {
		t.Errorf("score = %d, high = %d, want 80 and 2", res.Score, res.Summary.High)
	}
}

func TestAnalyzeInputErrors(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"analyze", filepath.Join(dir, "missing.js")},
		{"quick", txt},
		{"fix", filepath.Join(dir, "missing.tsx")},
		{"bulk", filepath.Join(dir, "nope")},
	} {
		if code, _, _ := runArgs(args...); code != exitInput {
			t.Errorf("%v: exit = %d, want %d", args, code, exitInput)
		}
	}
}

func TestOutputWriteFailure(t *testing.T) {
	e := newEnv(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, _ := runArgs("health", e.project, "-o", filepath.Join(blocker, "health.json"))
	if code != exitStorage {
		t.Errorf("exit = %d, want %d", code, exitStorage)
	}
}

func TestFixPrintsPlan(t *testing.T) {
	e := newEnv(t)
	e.write("src/Panel.jsx", regressedSource)
	code, stdout, _ := runArgs("fix", filepath.Join(e.project, "src", "Panel.jsx"))
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout, "Line 2: useEffect(() => {") {
		t.Errorf("fix plan missing line 2:\n%s", stdout)
	}
}

func TestSnapshotsList(t *testing.T) {
	e := newEnv(t)
	if code, _, _ := e.ci("main"); code != exitOK {
		t.Fatal("ci failed")
	}
	id := e.readReport().SnapshotID

	code, stdout, _ := runArgs("--no-color", "snapshots", "list", "--snapshots-dir", e.snapshots)
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout, id) {
		t.Errorf("listing missing %s:\n%s", id, stdout)
	}

	code, stdout, _ = runArgs("snapshots", "prune", "--keep", "0", "--snapshots-dir", e.snapshots)
	if code != exitOK || !strings.Contains(stdout, "Removed 1 snapshot") {
		t.Errorf("prune exit = %d, output %q", code, stdout)
	}
}

func TestInteractiveHandlers(t *testing.T) {
	e := newEnv(t)
	var out bytes.Buffer
	a := &app{cfg: config.Default(), stdout: &out, stderr: io.Discard, logger: log.New(io.Discard, "", 0)}
	a.flags.noColor = true
	r := repl.New(repl.Config{Handlers: a.handlers(), Out: &out})

	ctx := context.Background()
	if err := r.Execute(ctx, "health "+e.project); err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out.String(), "100") {
		t.Errorf("health output missing score:\n%s", out.String())
	}
	if err := r.Execute(ctx, "analyze "+filepath.Join(e.project, "missing.js")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
