package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultDir is the snapshot directory used when none is configured.
const DefaultDir = ".performance-snapshots"

const (
	snapshotPrefix = "snapshot-"
	baselinePrefix = "baseline-"
	fileExt        = ".json"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	ErrCorrupt  = errors.New("snapshot is corrupt")
)

// StorageError reports a failure reading or writing the snapshot directory.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store keeps snapshots as JSON documents in a flat directory. Run
// snapshots are named by ID and never overwritten; baselines are named by
// branch and replaced atomically.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir, or DefaultDir when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir}
}

// Entry is the listing metadata of a stored run snapshot.
type Entry struct {
	ID        string    `json:"id"`
	Branch    string    `json:"branch,omitempty"`
	Commit    string    `json:"commit,omitempty"`
	Profile   string    `json:"profile,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Summary   Summary   `json:"summary"`
	Path      string    `json:"-"`
}

func (st *Store) snapshotPath(id string) string {
	return filepath.Join(st.Dir, snapshotPrefix+id+fileExt)
}

// BaselinePath returns the file that holds the baseline for branch.
func (st *Store) BaselinePath(branch string) string {
	return filepath.Join(st.Dir, baselinePrefix+sanitizeBranch(branch)+fileExt)
}

func sanitizeBranch(branch string) string {
	var b strings.Builder
	for _, r := range branch {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

func encode(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (st *Store) ensureDir() error {
	if err := os.MkdirAll(st.Dir, 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: st.Dir, Err: err}
	}
	return nil
}

// Save writes s as a new run snapshot and returns its path. It fails if a
// snapshot with the same ID already exists.
func (st *Store) Save(s *Snapshot) (string, error) {
	if s == nil || s.ID == "" {
		return "", &StorageError{Op: "save", Path: st.Dir, Err: errors.New("snapshot has no id")}
	}
	if err := st.ensureDir(); err != nil {
		return "", err
	}
	path := st.snapshotPath(s.ID)
	data, err := encode(s)
	if err != nil {
		return "", &StorageError{Op: "encode", Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", &StorageError{Op: "create", Path: path, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", &StorageError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// SaveBaseline writes s as the baseline for branch, replacing any previous
// baseline through a temp-file rename.
func (st *Store) SaveBaseline(s *Snapshot, branch string) (string, error) {
	if err := st.ensureDir(); err != nil {
		return "", err
	}
	path := st.BaselinePath(branch)
	data, err := encode(s)
	if err != nil {
		return "", &StorageError{Op: "encode", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(st.Dir, ".baseline-*.tmp")
	if err != nil {
		return "", &StorageError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", &StorageError{Op: "rename", Path: path, Err: err}
	}
	return path, nil
}

func (st *Store) read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &StorageError{Op: "decode", Path: path, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	if errs := Validate(&s); len(errs) > 0 {
		return nil, &StorageError{Op: "verify", Path: path, Err: fmt.Errorf("%w: %s", ErrCorrupt, errs[0])}
	}
	return &s, nil
}

// Load reads the run snapshot with the given ID.
func (st *Store) Load(id string) (*Snapshot, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return st.read(st.snapshotPath(id))
}

// List returns metadata for every readable run snapshot, newest first.
// Documents that cannot be decoded are left out.
func (st *Store) List() ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(st.Dir, snapshotPrefix+"*"+fileExt))
	if err != nil {
		return nil, &StorageError{Op: "list", Path: st.Dir, Err: err}
	}
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.ID == "" {
			continue
		}
		e.Path = p
		entries = append(entries, e)
	}
	// ULIDs sort lexicographically by creation time.
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}

// LoadLatest reads the most recent run snapshot.
func (st *Store) LoadLatest() (*Snapshot, error) {
	entries, err := st.List()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no snapshots in %s", ErrNotFound, st.Dir)
	}
	return st.read(entries[0].Path)
}

// LoadBaseline reads the baseline for branch. Without a baseline file it
// falls back to the most recent run snapshot tagged with branch.
func (st *Store) LoadBaseline(branch string) (*Snapshot, error) {
	return st.loadBaseline(branch, "")
}

func (st *Store) loadBaseline(branch, excludeID string) (*Snapshot, error) {
	s, err := st.read(st.BaselinePath(branch))
	if err == nil || !errors.Is(err, ErrNotFound) {
		return s, err
	}
	entries, err := st.List()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Branch == branch && e.ID != excludeID {
			return st.read(e.Path)
		}
	}
	return nil, fmt.Errorf("%w: no baseline for branch %q", ErrNotFound, branch)
}

// Prune removes all but the keep most recent run snapshots and returns the
// IDs it removed. Baselines are never pruned.
func (st *Store) Prune(keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("snapshot: keep must be >= 0, got %d", keep)
	}
	entries, err := st.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for i := keep; i < len(entries); i++ {
		if err := os.Remove(entries[i].Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, &StorageError{Op: "remove", Path: entries[i].Path, Err: err}
		}
		removed = append(removed, entries[i].ID)
	}
	return removed, nil
}
