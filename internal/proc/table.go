// Package proc reads the local process table for name, liveness, and
// executable lookups.
package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheSize = 256

// ErrGone reports that a pid no longer maps to a running process.
var ErrGone = errors.New("process no longer exists")

// Table answers process queries from /proc with bounded pid memoization.
// Cache entries are evicted for a pid whenever a lookup for it fails.
type Table struct {
	root  string
	self  uint32
	names *lru.Cache[uint32, string]
	paths *lru.Cache[uint32, string]
}

// New builds a Table over the real /proc mount.
func New() *Table {
	return NewWithRoot("/proc", uint32(os.Getpid()))
}

// NewWithRoot builds a Table over an alternate proc root. Tests use this with
// a synthetic directory tree.
func NewWithRoot(root string, self uint32) *Table {
	names, _ := lru.New[uint32, string](cacheSize)
	paths, _ := lru.New[uint32, string](cacheSize)
	return &Table{root: root, self: self, names: names, paths: paths}
}

// Self returns the calling process's pid.
func (t *Table) Self() uint32 {
	return t.self
}

// Name returns the executable name for pid.
func (t *Table) Name(pid uint32) (string, error) {
	if name, ok := t.names.Get(pid); ok {
		return name, nil
	}

	data, err := os.ReadFile(t.pidPath(pid, "comm"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.evict(pid)
			return "", ErrGone
		}
		return "", fmt.Errorf("read comm for pid %d: %w", pid, err)
	}

	name := strings.TrimSpace(string(data))
	if name == "" {
		t.evict(pid)
		return "", ErrGone
	}
	t.names.Add(pid, name)
	return name, nil
}

// Path returns the executable path for pid, or "" when unreadable.
func (t *Table) Path(pid uint32) (string, error) {
	if path, ok := t.paths.Get(pid); ok {
		return path, nil
	}

	target, err := os.Readlink(t.pidPath(pid, "exe"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.evict(pid)
			return "", ErrGone
		}
		// Permission failures leave the process alive but unreadable.
		return "", nil
	}

	t.paths.Add(pid, target)
	return target, nil
}

// Exists reports process liveness. A permission error counts as alive: the
// process is there, just unreadable, and must not be treated as exited.
func (t *Table) Exists(pid uint32) bool {
	if pid == 0 {
		return false
	}
	_, err := os.Stat(t.pidPath(pid, ""))
	if err == nil {
		return true
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	t.evict(pid)
	return false
}

// PidsOf returns pids whose executable name matches name case-insensitively,
// in process-table enumeration order. A trailing ".exe" on either side is
// ignored so mappings written against Windows-style names still match.
func (t *Table) PidsOf(name string) []uint32 {
	want := normalizeExeName(name)
	if want == "" {
		return nil
	}

	entries, err := os.ReadDir(t.root)
	if err != nil {
		return nil
	}

	var pids []uint32
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		pid := uint32(n)
		got, err := t.Name(pid)
		if err != nil {
			continue
		}
		if normalizeExeName(got) == want {
			pids = append(pids, pid)
		}
	}
	return pids
}

func (t *Table) pidPath(pid uint32, leaf string) string {
	return filepath.Join(t.root, strconv.FormatUint(uint64(pid), 10), leaf)
}

func (t *Table) evict(pid uint32) {
	t.names.Remove(pid)
	t.paths.Remove(pid)
}

func normalizeExeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}
