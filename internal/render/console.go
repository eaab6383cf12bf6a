package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/regression"
	"github.com/dshills/perfguard/internal/rules"
	"github.com/dshills/perfguard/internal/snapshot"
)

// DefaultTop is how many files the health and comparison views list when
// not verbose.
const DefaultTop = 10

// Console renders human-readable terminal output. Color and verbosity are
// per-renderer settings.
type Console struct {
	Color   bool
	Verbose bool
	Top     int

	pal *palette
}

type palette struct {
	high, medium, low *color.Color
	good, warn, bad   *color.Color
	bold, dim         *color.Color
}

func newColor(enabled bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (c *Console) colors() *palette {
	if c.pal == nil {
		c.pal = &palette{
			high:   newColor(c.Color, color.FgRed, color.Bold),
			medium: newColor(c.Color, color.FgYellow),
			low:    newColor(c.Color, color.FgCyan),
			good:   newColor(c.Color, color.FgGreen),
			warn:   newColor(c.Color, color.FgYellow, color.Bold),
			bad:    newColor(c.Color, color.FgRed, color.Bold),
			bold:   newColor(c.Color, color.Bold),
			dim:    newColor(c.Color, color.FgHiBlack),
		}
	}
	return c.pal
}

func (c *Console) top() int {
	if c.Top > 0 {
		return c.Top
	}
	return DefaultTop
}

func (c *Console) severity(s analysis.Severity) string {
	p := c.colors()
	switch s {
	case analysis.SeverityHigh:
		return p.high.Sprint(s)
	case analysis.SeverityMedium:
		return p.medium.Sprint(s)
	case analysis.SeverityLow:
		return p.low.Sprint(s)
	}
	return string(s)
}

func (c *Console) score(n int) string {
	p := c.colors()
	switch {
	case n >= 90:
		return p.good.Sprint(n)
	case n >= 70:
		return p.warn.Sprint(n)
	}
	return p.bad.Sprint(n)
}

func (c *Console) status(s regression.Status) string {
	p := c.colors()
	switch s {
	case regression.StatusFail:
		return p.bad.Sprint("FAIL")
	case regression.StatusWarn:
		return p.warn.Sprint("WARN")
	}
	return p.good.Sprint("PASS")
}

// Grade names the health band of a score.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 50:
		return "fair"
	}
	return "poor"
}

func table(w io.Writer, header []string, rows [][]string) error {
	t := tablewriter.NewWriter(w)
	h := make([]any, len(header))
	for i, s := range header {
		h[i] = s
	}
	t.Header(h...)
	if err := t.Bulk(rows); err != nil {
		return err
	}
	return t.Render()
}

// Result writes one file's issues. Suggestions are shown when verbose.
func (c *Console) Result(w io.Writer, r analysis.Result) error {
	p := c.colors()
	fmt.Fprintf(w, "%s  score %s/100  (%d high, %d medium, %d low)\n",
		p.bold.Sprint(r.FilePath), c.score(r.Score), r.Summary.High, r.Summary.Medium, r.Summary.Low)
	if len(r.Issues) == 0 {
		fmt.Fprintln(w, p.good.Sprint("No performance issues found."))
		return nil
	}

	header := []string{"Line", "Severity", "Rule", "Message"}
	if c.Verbose {
		header = append(header, "Suggestion")
	}
	rows := make([][]string, 0, len(r.Issues))
	for _, iss := range r.Issues {
		row := []string{strconv.Itoa(iss.Line), c.severity(iss.Severity), iss.RuleID, iss.Message}
		if c.Verbose {
			row = append(row, iss.Suggestion)
		}
		rows = append(rows, row)
	}
	return table(w, header, rows)
}

// Bulk writes a per-file overview of a directory scan.
func (c *Console) Bulk(w io.Writer, results []analysis.Result) error {
	p := c.colors()
	sum := snapshot.Aggregate(results)
	fmt.Fprintf(w, "%s %d files, score %s/100, %d issues (%d high, %d medium, %d low)\n",
		p.bold.Sprint("Analyzed"), sum.Files, c.score(sum.Score), sum.TotalIssues, sum.High, sum.Medium, sum.Low)

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r.Summary.TotalIssues == 0 && !c.Verbose {
			continue
		}
		rows = append(rows, []string{
			r.FilePath, c.score(r.Score),
			strconv.Itoa(r.Summary.High), strconv.Itoa(r.Summary.Medium), strconv.Itoa(r.Summary.Low),
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, p.good.Sprint("No performance issues found."))
		return nil
	}
	if err := table(w, []string{"File", "Score", "High", "Medium", "Low"}, rows); err != nil {
		return err
	}
	if c.Verbose {
		for _, r := range results {
			if len(r.Issues) == 0 {
				continue
			}
			fmt.Fprintln(w)
			if err := c.Result(w, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Health writes the aggregate health of a set of results: overall score
// and grade, the lowest scoring files, and the most frequent rules.
func (c *Console) Health(w io.Writer, results []analysis.Result) error {
	p := c.colors()
	sum := snapshot.Aggregate(results)
	fmt.Fprintf(w, "%s %s/100 (%s)\n", p.bold.Sprint("Health score:"), c.score(sum.Score), Grade(sum.Score))
	fmt.Fprintf(w, "Files: %d  Issues: %d  (%d high, %d medium, %d low)\n",
		sum.Files, sum.TotalIssues, sum.High, sum.Medium, sum.Low)
	if sum.TotalIssues == 0 {
		return nil
	}

	worst := make([]analysis.Result, 0, len(results))
	for _, r := range results {
		if r.Summary.TotalIssues > 0 {
			worst = append(worst, r)
		}
	}
	sort.SliceStable(worst, func(i, j int) bool { return worst[i].Score < worst[j].Score })
	if !c.Verbose && len(worst) > c.top() {
		worst = worst[:c.top()]
	}
	fmt.Fprintf(w, "\n%s\n", p.bold.Sprint("Lowest scoring files"))
	rows := make([][]string, 0, len(worst))
	for _, r := range worst {
		rows = append(rows, []string{r.FilePath, c.score(r.Score), strconv.Itoa(r.Summary.TotalIssues)})
	}
	if err := table(w, []string{"File", "Score", "Issues"}, rows); err != nil {
		return err
	}

	counts := map[string]int{}
	sev := map[string]analysis.Severity{}
	for _, r := range results {
		for _, iss := range r.Issues {
			counts[iss.RuleID]++
			sev[iss.RuleID] = iss.Severity
		}
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	fmt.Fprintf(w, "\n%s\n", p.bold.Sprint("Most frequent rules"))
	rows = rows[:0]
	for _, id := range ids {
		rows = append(rows, []string{id, c.severity(sev[id]), strconv.Itoa(counts[id])})
	}
	return table(w, []string{"Rule", "Severity", "Count"}, rows)
}

// Comparison writes a regression report.
func (c *Console) Comparison(w io.Writer, rep regression.Report) error {
	p := c.colors()
	fmt.Fprintf(w, "%s %s\n", p.bold.Sprint("Performance check:"), c.status(rep.Status))
	if rep.Notice != "" {
		fmt.Fprintln(w, p.dim.Sprint(rep.Notice))
	}
	if !rep.Compared {
		fmt.Fprintf(w, "Score: %s/100\n", c.score(rep.CurrentScore))
		return nil
	}

	base, cur := rep.BaselineCounts, rep.CurrentCounts
	rows := [][]string{
		{"Score", strconv.Itoa(rep.BaselineScore), strconv.Itoa(rep.CurrentScore), signed(rep.ScoreDelta)},
		{"High", strconv.Itoa(base.High), strconv.Itoa(cur.High), signed(rep.SeverityDeltas.High)},
		{"Medium", strconv.Itoa(base.Medium), strconv.Itoa(cur.Medium), signed(rep.SeverityDeltas.Medium)},
		{"Low", strconv.Itoa(base.Low), strconv.Itoa(cur.Low), signed(rep.SeverityDeltas.Low)},
		{"Total issues", strconv.Itoa(base.TotalIssues), strconv.Itoa(cur.TotalIssues), signed(rep.TotalIssuesDelta)},
	}
	if err := table(w, []string{"Metric", "Baseline", "Current", "Delta"}, rows); err != nil {
		return err
	}

	for _, v := range rep.Regressions {
		fmt.Fprintf(w, "%s %s\n", p.bad.Sprint("regression:"), v.Message)
	}
	for _, imp := range rep.Improvements {
		fmt.Fprintf(w, "%s %s\n", p.good.Sprint("improvement:"), imp.Message)
	}

	files := rep.Files
	if !c.Verbose && len(files) > c.top() {
		files = files[:c.top()]
	}
	if len(files) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", p.bold.Sprint("Changed files"))
	rows = make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Path, string(f.Change), strconv.Itoa(f.CurrentScore), signed(f.ScoreDelta), signed(f.HighDelta)})
	}
	if err := table(w, []string{"File", "Change", "Score", "Delta", "High"}, rows); err != nil {
		return err
	}
	if hidden := len(rep.Files) - len(files); hidden > 0 {
		fmt.Fprintln(w, p.dim.Sprintf("%d more files changed; use --verbose to list all", hidden))
	}
	return nil
}

// Rules writes the rule catalogue of a set.
func (c *Console) Rules(w io.Writer, set *rules.Set) error {
	rows := make([][]string, 0, set.Len())
	for _, r := range set.Rules() {
		row := []string{r.ID, c.severity(r.Severity)}
		if c.Verbose {
			row = append(row, r.Suggestion)
		}
		rows = append(rows, row)
	}
	header := []string{"Rule", "Severity"}
	if c.Verbose {
		header = append(header, "Suggestion")
	}
	return table(w, header, rows)
}
