package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/config"
	"github.com/dshills/perfguard/internal/detect"
	"github.com/dshills/perfguard/internal/profile"
	"github.com/dshills/perfguard/internal/render"
	"github.com/dshills/perfguard/internal/rules"
	"github.com/dshills/perfguard/internal/scan"
	"github.com/dshills/perfguard/internal/source"
)

type globalFlags struct {
	verbose    bool
	noColor    bool
	output     string
	configPath string
	workers    int
}

// app carries the state shared by all commands of one invocation.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
}

func (a *app) setup(cmd *cobra.Command) error {
	a.logger = log.New(a.stderr, "", 0)
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = a.flags.workers
	}
	a.cfg = cfg
	a.verbose("Loaded configuration (profile %s, %d workers)", cfg.Profile, cfg.Workers)
	return nil
}

func (a *app) verbose(msg string, args ...any) {
	if a.flags.verbose {
		a.logger.Printf(msg, args...)
	}
}

// diagnostics returns the logger handed to the detector and scanner.
func (a *app) diagnostics() *log.Logger {
	if !a.flags.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(a.stderr, "[perfguard:scan] ", log.Ltime)
}

func (a *app) console() *render.Console {
	return &render.Console{Color: !a.flags.noColor && !color.NoColor, Verbose: a.flags.verbose}
}

// scanner builds a Scanner for the named built-in profile or YAML profile
// file. Profile problems are configuration errors.
func (a *app) scanner(ref string) (*scan.Scanner, *profile.Profile, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, exitError(exitConfig, "%v", err)
	}
	prof, err := profile.Resolve(ref)
	if err != nil {
		return nil, nil, exitError(exitConfig, "failed to load profile: %v", err)
	}
	set, err := prof.RuleSet(rules.Builtin())
	if err != nil {
		return nil, nil, exitError(exitConfig, "invalid profile: %v", err)
	}
	maxLines := a.cfg.MaxLines
	if prof.MaxLines > 0 && prof.MaxLines < maxLines {
		maxLines = prof.MaxLines
	}
	a.verbose("Using profile %s (%d rules, max %d lines)", prof.Name, set.Len(), maxLines)

	logger := a.diagnostics()
	det := detect.New(set, detect.Options{MaxLines: maxLines, Timeout: a.cfg.Timeout(), Logger: logger})
	return &scan.Scanner{
		Detector: det,
		Scorer:   analysis.NewScorer(prof.Weights),
		Workers:  a.cfg.Workers,
		Logger:   logger,
	}, prof, nil
}

// inputError maps a scan failure to an exit error.
func inputError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return exitError(exitInterrupted, "analysis aborted: %v", err)
	}
	var ie *source.InputError
	if errors.As(err, &ie) {
		return exitError(exitInput, "%v", err)
	}
	return exitError(exitInput, "analysis failed: %v", err)
}

// report is one command's output in its three renderings.
type report struct {
	value    any
	markdown func() string
	console  func(c *render.Console, w io.Writer) error
}

// emit writes r to --output, choosing the format from the file extension,
// or to stdout as console text.
func (a *app) emit(r report) error {
	if a.flags.output == "" {
		return r.console(a.console(), a.stdout)
	}
	a.verbose("Writing output to %s", a.flags.output)
	if err := a.writeFile(a.flags.output, func(w io.Writer) error {
		switch strings.ToLower(filepath.Ext(a.flags.output)) {
		case ".json":
			return render.WriteJSON(w, r.value)
		case ".md", ".markdown":
			_, err := io.WriteString(w, r.markdown())
			return err
		}
		return r.console(&render.Console{Verbose: a.flags.verbose}, w)
	}); err != nil {
		return exitError(exitStorage, "failed to write output: %v", err)
	}
	return nil
}

// writeFile creates path and its parent directories and fills it with fn.
// A path of "-" writes to stdout.
func (a *app) writeFile(path string, fn func(w io.Writer) error) error {
	if path == "-" {
		return fn(a.stdout)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
