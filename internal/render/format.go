// Package render produces console, JSON, and Markdown output from analysis
// results and regression reports.
package render

import (
	"fmt"
	"strings"
)

// Format is one CI output format.
type Format string

const (
	FormatConsole       Format = "console"
	FormatJSON          Format = "json"
	FormatGitHubComment Format = "github-comment"
)

// Formats lists the accepted formats in canonical order.
var Formats = []Format{FormatConsole, FormatJSON, FormatGitHubComment}

// ParseFormats parses a comma-separated format list. Entries are
// case-insensitive and deduplicated; an empty list or unknown entry is an
// error.
func ParseFormats(list string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, part := range strings.Split(list, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		if !f.Valid() {
			return nil, fmt.Errorf("unknown output format %q (want a subset of %s)", part, joinFormats(Formats))
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no output formats given (want a subset of %s)", joinFormats(Formats))
	}
	return out, nil
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	for _, k := range Formats {
		if f == k {
			return true
		}
	}
	return false
}

// Has reports whether f is in formats.
func Has(formats []Format, f Format) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}

func joinFormats(fs []Format) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}
