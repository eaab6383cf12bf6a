// Package scan runs detection over one file or a whole directory tree using
// a bounded pool of workers.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/detect"
	"github.com/dshills/perfguard/internal/source"
	"github.com/dshills/perfguard/internal/walk"
)

// DefaultWorkers is the pool size used when Workers is not set.
const DefaultWorkers = 4

// Scanner combines a Detector and a Scorer into per-file results.
type Scanner struct {
	Detector *detect.Detector
	Scorer   analysis.Scorer
	Workers  int
	Logger   *log.Logger
}

// Skip records a file that was enumerated but could not be analyzed.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Outcome is the result of a directory scan. Results are ordered by path.
type Outcome struct {
	Root      string            `json:"root"`
	Results   []analysis.Result `json:"results"`
	Skipped   []Skip            `json:"skipped,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`
	Elapsed   time.Duration     `json:"-"`
}

func (s *Scanner) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func (s *Scanner) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return DefaultWorkers
}

// File analyzes a single file. The result's FilePath is path as given.
func (s *Scanner) File(ctx context.Context, path string) (analysis.Result, error) {
	return s.analyze(ctx, path, path)
}

func (s *Scanner) analyze(ctx context.Context, path, display string) (analysis.Result, error) {
	f, err := source.Load(path)
	if err != nil {
		return analysis.Result{}, err
	}
	issues := s.Detector.Detect(ctx, f.Raw, display)
	if err := ctx.Err(); err != nil {
		return analysis.Result{}, err
	}
	return s.Scorer.Result(display, issues), nil
}

// Dir enumerates root and analyzes every matching file. Unreadable files are
// reported in Outcome.Skipped. If ctx is cancelled before all files finish,
// Dir returns ctx.Err() and no results.
func (s *Scanner) Dir(ctx context.Context, root string, opts walk.Options) (*Outcome, error) {
	start := time.Now()
	files, err := walk.Enumerate(root, opts)
	truncated := errors.Is(err, walk.ErrTooManyFiles)
	if err != nil && !truncated {
		return nil, &source.InputError{Path: root, Err: err}
	}
	if truncated {
		s.logf("file limit reached, analyzing the first %d files", len(files))
	}
	s.logf("analyzing %d files with %d workers", len(files), s.workers())

	results := make([]analysis.Result, len(files))
	skipErrs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.analyze(gctx, filepath.Join(root, filepath.FromSlash(rel)), rel)
			if err != nil {
				var inErr *source.InputError
				if errors.As(err, &inErr) {
					skipErrs[i] = err
					return nil
				}
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{Root: root, Truncated: truncated, Results: make([]analysis.Result, 0, len(files))}
	for i, rel := range files {
		if skipErrs[i] != nil {
			s.logf("skip %s: %v", rel, errors.Unwrap(skipErrs[i]))
			out.Skipped = append(out.Skipped, Skip{Path: rel, Reason: reason(skipErrs[i])})
			continue
		}
		out.Results = append(out.Results, results[i])
	}
	out.Elapsed = time.Since(start)
	s.logf("analyzed %d files (%d skipped) in %s", len(out.Results), len(out.Skipped), out.Elapsed.Round(time.Millisecond))
	return out, nil
}

func reason(err error) string {
	if inner := errors.Unwrap(err); inner != nil {
		return inner.Error()
	}
	return fmt.Sprint(err)
}
