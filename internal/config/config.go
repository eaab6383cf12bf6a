// Package config loads perfguard settings from built-in defaults, an
// optional JSON file, and PERFGUARD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dshills/perfguard/internal/detect"
	"github.com/dshills/perfguard/internal/profile"
	"github.com/dshills/perfguard/internal/regression"
	"github.com/dshills/perfguard/internal/render"
	"github.com/dshills/perfguard/internal/scan"
	"github.com/dshills/perfguard/internal/snapshot"
	"github.com/dshills/perfguard/internal/walk"
)

const (
	// DefaultFile is read from the working directory when present.
	DefaultFile = ".perfguard.json"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PERFGUARD_"
)

// ConfigError reports an invalid setting. It is always fatal and is
// raised before any analysis starts.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Config holds every setting shared by the commands.
type Config struct {
	Profile        string   `koanf:"profile"`
	Workers        int      `koanf:"workers"`
	MaxLines       int      `koanf:"max_lines"`
	TimeoutSeconds float64  `koanf:"timeout_seconds"`
	MaxFiles       int      `koanf:"max_files"`
	Include        []string `koanf:"include"`
	Exclude        []string `koanf:"exclude"`
	CI             CI       `koanf:"ci"`
}

// CI holds the settings of the ci command.
type CI struct {
	BaselineBranch   string                `koanf:"baseline_branch"`
	SnapshotsDir     string                `koanf:"snapshots_dir"`
	OutputFormats    string                `koanf:"output_formats"`
	ReportFile       string                `koanf:"report_file"`
	CommentFile      string                `koanf:"comment_file"`
	FailOnRegression bool                  `koanf:"fail_on_regression"`
	WarnOnRegression bool                  `koanf:"warn_on_regression"`
	UpdateBaseline   bool                  `koanf:"update_baseline"`
	Keep             int                   `koanf:"keep"`
	Thresholds       regression.Thresholds `koanf:"thresholds"`
}

func defaults() map[string]any {
	t := regression.DefaultThresholds
	return map[string]any{
		"profile":         profile.Full,
		"workers":         scan.DefaultWorkers,
		"max_lines":       detect.DefaultMaxLines,
		"timeout_seconds": detect.DefaultTimeout.Seconds(),
		"max_files":       walk.DefaultMaxFiles,
		"include":         []string{},
		"exclude":         []string{},

		"ci.baseline_branch":                       "main",
		"ci.snapshots_dir":                         snapshot.DefaultDir,
		"ci.output_formats":                        "console,json",
		"ci.report_file":                           "performance-report.json",
		"ci.comment_file":                          "performance-comment.md",
		"ci.fail_on_regression":                    true,
		"ci.warn_on_regression":                    true,
		"ci.update_baseline":                       true,
		"ci.keep":                                  0,
		"ci.thresholds.max_score_regression":       t.MaxScoreRegression,
		"ci.thresholds.max_high_severity_increase": t.MaxHighSeverityIncrease,
		"ci.thresholds.max_total_issues_increase":  t.MaxTotalIssuesIncrease,
		"ci.thresholds.min_score_improvement":      t.MinScoreImprovement,
	}
}

// Default returns the built-in configuration. It reads neither the config
// file nor the environment, so it cannot fail on user input.
func Default() *Config {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		panic(err)
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		panic(err)
	}
	return &c
}

// Load reads the configuration. An empty path reads DefaultFile when it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	if path == "" {
		return load(DefaultFile, false)
	}
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config.Load: defaults: %w", err)
	}

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(path), json.Parser()); err != nil {
				return nil, &ConfigError{Field: path, Message: err.Error()}
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return nil, &ConfigError{Field: path, Message: err.Error()}
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("environment: %v", err)}
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		// Decoder errors span several lines.
		return nil, &ConfigError{Message: strings.Join(strings.Fields(err.Error()), " ")}
	}
	return &c, nil
}

// envKey maps PERFGUARD_CI_THRESHOLDS_MAX_SCORE_REGRESSION to
// ci.thresholds.max_score_regression. List settings are comma separated.
func envKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	switch {
	case strings.HasPrefix(key, "ci_thresholds_"):
		key = "ci.thresholds." + strings.TrimPrefix(key, "ci_thresholds_")
	case strings.HasPrefix(key, "ci_"):
		key = "ci." + strings.TrimPrefix(key, "ci_")
	}
	if key == "include" || key == "exclude" {
		var list []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return key, list
	}
	return key, v
}

// Validate checks every setting and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Profile) == "":
		return &ConfigError{Field: "profile", Message: "required"}
	case c.Workers < 1:
		return &ConfigError{Field: "workers", Message: fmt.Sprintf("must be >= 1, got %d", c.Workers)}
	case c.MaxLines < 1:
		return &ConfigError{Field: "max_lines", Message: fmt.Sprintf("must be >= 1, got %d", c.MaxLines)}
	case c.TimeoutSeconds <= 0:
		return &ConfigError{Field: "timeout_seconds", Message: fmt.Sprintf("must be > 0, got %v", c.TimeoutSeconds)}
	case c.MaxFiles < 1:
		return &ConfigError{Field: "max_files", Message: fmt.Sprintf("must be >= 1, got %d", c.MaxFiles)}
	}
	if err := walk.ValidatePatterns(c.Include); err != nil {
		return &ConfigError{Field: "include", Message: err.Error()}
	}
	if err := walk.ValidatePatterns(c.Exclude); err != nil {
		return &ConfigError{Field: "exclude", Message: err.Error()}
	}
	return c.CI.Validate()
}

// Validate checks the ci settings.
func (ci *CI) Validate() error {
	if strings.TrimSpace(ci.BaselineBranch) == "" {
		return &ConfigError{Field: "ci.baseline_branch", Message: "required"}
	}
	if strings.TrimSpace(ci.SnapshotsDir) == "" {
		return &ConfigError{Field: "ci.snapshots_dir", Message: "required"}
	}
	if _, err := render.ParseFormats(ci.OutputFormats); err != nil {
		return &ConfigError{Field: "ci.output_formats", Message: err.Error()}
	}
	if ci.Keep < 0 {
		return &ConfigError{Field: "ci.keep", Message: fmt.Sprintf("must be >= 0, got %d", ci.Keep)}
	}
	if err := ci.Thresholds.Validate(); err != nil {
		return &ConfigError{Field: "ci.thresholds", Message: err.Error()}
	}
	return nil
}

// Timeout returns the per-file detection timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// Walk returns the file selection options.
func (c *Config) Walk() walk.Options {
	return walk.Options{Include: c.Include, Exclude: c.Exclude, MaxFiles: c.MaxFiles}
}

// Policy returns the regression gates.
func (ci *CI) Policy() regression.Policy {
	return regression.Policy{FailOnRegression: ci.FailOnRegression, WarnOnRegression: ci.WarnOnRegression}
}

// Formats returns the parsed output formats. Call Validate first.
func (ci *CI) Formats() []render.Format {
	f, _ := render.ParseFormats(ci.OutputFormats)
	return f
}
