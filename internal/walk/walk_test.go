package walk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("export {};\n"), 0o644))
	}
}

func TestEnumerateDefaults(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/App.tsx",
		"src/util/format.ts",
		"src/styles.css",
		"node_modules/react/index.js",
		"dist/bundle.min.js",
		"src/types.d.ts",
		"README.md",
	)

	files, err := Enumerate(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/App.tsx", "src/util/format.ts"}, files)
}

func TestEnumerateIncludeExclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/App.tsx",
		"src/App.test.tsx",
		"scripts/build.js",
	)

	files, err := Enumerate(root, Options{
		Include: []string{"src/**"},
		Exclude: []string{"**/*.test.*"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/App.tsx"}, files)
}

func TestEnumerateMaxFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.js", "b.js", "c.js")

	files, err := Enumerate(root, Options{MaxFiles: 2})
	assert.True(t, errors.Is(err, ErrTooManyFiles))
	assert.Equal(t, []string{"a.js", "b.js"}, files)
}

func TestEnumerateNoDefaultExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "build/out.js")

	files, err := Enumerate(root, Options{NoDefaultExcludes: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"build/out.js"}, files)
}

func TestEnumerateMissingRoot(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)
}

func TestValidatePatterns(t *testing.T) {
	assert.NoError(t, ValidatePatterns([]string{"src/**/*.tsx", "*.js"}))
	assert.Error(t, ValidatePatterns([]string{"src/[a-"}))
	_, err := Enumerate(t.TempDir(), Options{Exclude: []string{"[z"}})
	assert.Error(t, err)
}
