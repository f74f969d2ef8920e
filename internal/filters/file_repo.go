package filters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// FileRepository stores filters as a single JSON document keyed by the decimal
// chat ID: {"123456": [{"item":...,"price":...,"location":...}]}.
// Every mutation is a full load-mutate-save cycle; saves replace the whole
// file atomically via a temp-file rename so a concurrent reader never sees a
// half-written collection.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	// Touch file if not exists
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) ForUser(userID int64) ([]Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.loadUnlocked()
	return all[strconv.FormatInt(userID, 10)], nil
}

func (r *FileRepository) Append(userID int64, f Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.loadUnlocked()
	key := strconv.FormatInt(userID, 10)
	all[key] = append(all[key], f)
	return r.saveUnlocked(all)
}

func (r *FileRepository) UserIDs() ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.loadUnlocked()
	ids := make([]int64, 0, len(all))
	for key := range all {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *FileRepository) loadUnlocked() map[string][]Filter {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return map[string][]Filter{}
	}
	var all map[string][]Filter
	if err := json.Unmarshal(data, &all); err != nil || all == nil {
		// empty or malformed -> start fresh
		return map[string][]Filter{}
	}
	return all
}

func (r *FileRepository) saveUnlocked(all map[string][]Filter) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".filters-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}
