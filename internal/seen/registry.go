// Package seen tracks which listing links have already been reported, so a
// listing is pushed to a user at most once across all their filters and every
// sweep. Entries are never removed.
package seen

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Registry is the seen-listing set, scoped per user: two users watching the
// same item each get a listing once, but no user ever gets the same link twice.
type Registry interface {
	Seen(userID int64, link string) bool
	Add(userID int64, link string) error
}

// FileRegistry backs the registry with a line-oriented append log. Lines are
// "<userID>\t<link>". Bare link lines (the legacy format, no tab) are accepted
// on load and match every user.
type FileRegistry struct {
	path    string
	mu      sync.Mutex
	entries map[string]struct{} // "<userID>\t<link>"
	global  map[string]struct{} // legacy unscoped links
}

func NewFileRegistry(path string) (*FileRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()

	r := &FileRegistry{
		path:    path,
		entries: make(map[string]struct{}),
		global:  make(map[string]struct{}),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRegistry) load() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 10*1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.Contains(line, "\t") {
			r.entries[line] = struct{}{}
		} else {
			r.global[line] = struct{}{}
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

func (r *FileRegistry) Seen(userID int64, link string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seenUnlocked(userID, link)
}

func (r *FileRegistry) seenUnlocked(userID int64, link string) bool {
	if _, ok := r.global[link]; ok {
		return true
	}
	_, ok := r.entries[entryKey(userID, link)]
	return ok
}

// Add records the link as seen for the user and appends it to the log.
// Adding an already-seen link is a no-op.
func (r *FileRegistry) Add(userID int64, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seenUnlocked(userID, link) {
		return nil
	}
	key := entryKey(userID, link)
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	r.entries[key] = struct{}{}
	return nil
}

func entryKey(userID int64, link string) string {
	return strconv.FormatInt(userID, 10) + "\t" + link
}
