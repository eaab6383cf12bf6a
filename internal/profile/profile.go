// Package profile loads the rule profiles that select which rules run in
// each analysis mode and how their issues are weighted.
package profile

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/rules"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Built-in profile names.
const (
	Full   = "full"
	Quick  = "quick"
	Simple = "simple"
)

// Profile selects a subset of the rule catalogue, optionally adds
// pattern rules, and sets the scoring weights.
type Profile struct {
	Name        string           `yaml:"name"`
	Version     int              `yaml:"version"`
	Description string           `yaml:"description"`
	Rules       []string         `yaml:"rules"`
	Weights     analysis.Weights `yaml:"weights"`
	MaxLines    int              `yaml:"max_lines"`
	CustomRules []CustomRule     `yaml:"custom_rules"`
}

// CustomRule is a line-oriented regexp rule declared in YAML.
type CustomRule struct {
	ID         string `yaml:"id"`
	Severity   string `yaml:"severity"`
	Pattern    string `yaml:"pattern"`
	Message    string `yaml:"message"`
	Suggestion string `yaml:"suggestion"`
}

// LoadBuiltin loads a built-in profile by name.
func LoadBuiltin(name string) (*Profile, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("profile.LoadBuiltin: unknown profile %q: %w", name, err)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile.LoadBuiltin: parse %q: %w", name, err)
	}
	return p, nil
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile.Load: %w", err)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile.Load: parse %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Resolve treats ref as a YAML file path when it has a YAML extension,
// and as a built-in profile name otherwise.
func Resolve(ref string) (*Profile, error) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml":
		return Load(ref)
	}
	return LoadBuiltin(ref)
}

func parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Weights.IsZero() {
		p.Weights = analysis.DefaultWeights
	}
	if err := p.Weights.Validate(); err != nil {
		return nil, err
	}
	if p.MaxLines < 0 {
		return nil, fmt.Errorf("max_lines must be non-negative, got %d", p.MaxLines)
	}
	return &p, nil
}

// List returns the names of all available built-in profiles.
func List() ([]string, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, ".yaml") {
			names = append(names, strings.TrimSuffix(n, ".yaml"))
		}
	}
	return names, nil
}

// RuleSet narrows base to the profile's rules (all of base when none are
// listed) and appends the profile's custom rules.
func (p *Profile) RuleSet(base *rules.Set) (*rules.Set, error) {
	set := base
	if len(p.Rules) > 0 {
		sub, err := base.Subset(p.Rules)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		set = sub
	}
	if len(p.CustomRules) == 0 {
		return set, nil
	}

	extra := make([]rules.Rule, 0, len(p.CustomRules))
	for _, cr := range p.CustomRules {
		sev, ok := analysis.ParseSeverity(cr.Severity)
		if !ok {
			return nil, fmt.Errorf("profile %s: custom rule %q: invalid severity %q", p.Name, cr.ID, cr.Severity)
		}
		r, err := rules.PatternRule(cr.ID, sev, cr.Pattern, cr.Message, cr.Suggestion)
		if err != nil {
			return nil, fmt.Errorf("profile %s: custom rule %q: %w", p.Name, cr.ID, err)
		}
		extra = append(extra, r)
	}
	ext, err := set.Extend(extra...)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return ext, nil
}

// Describe renders the profile and its rules as plain text.
func Describe(p *Profile, set *rules.Set) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Profile: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n", strings.TrimSpace(p.Description))
	}
	fmt.Fprintf(&b, "Weights: high=%d medium=%d low=%d\n\n", p.Weights.High, p.Weights.Medium, p.Weights.Low)

	for _, r := range set.Rules() {
		fmt.Fprintf(&b, "  %-36s %-6s %s\n", r.ID, r.Severity, firstSentence(r.Suggestion))
	}
	return b.String()
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
