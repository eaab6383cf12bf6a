// Package source reads analyzable files from disk.
package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupported = errors.New("unsupported file extension")
	ErrIsDirectory = errors.New("path is a directory")
)

// Extensions lists the file extensions the rule catalogue understands.
var Extensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"}

// InputError reports a file that could not be analyzed. It is local to
// that file and never aborts a bulk run.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// File holds a loaded source file with its content and metadata.
type File struct {
	Path string
	Raw  string
	Hash string
}

// Supported reports whether path has an analyzable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads a source file and computes its SHA-256 hash.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &InputError{Path: path, Err: ErrIsDirectory}
	}
	if !Supported(path) {
		return nil, &InputError{Path: path, Err: ErrUnsupported}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	h := sha256.Sum256(data)
	return &File{
		Path: path,
		Raw:  string(data),
		Hash: fmt.Sprintf("sha256:%x", h),
	}, nil
}
