package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/logger"
)

// jsonWatermarkRepo keeps watermarks in memory and rewrites the whole
// JSON file on every advance
type jsonWatermarkRepo struct {
	mu    sync.Mutex
	path  string
	marks map[string]int64
}

// NewJSONWatermarkRepo opens the JSON state file at path.
// A missing or unreadable file starts from an empty state.
func NewJSONWatermarkRepo(path string) (repo.WatermarkRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	r := &jsonWatermarkRepo{path: path, marks: make(map[string]int64)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(raw, &r.marks); err != nil {
		logger.Named("state").Warn().Err(err).Str("path", path).Msg("state file unreadable, starting empty")
		r.marks = make(map[string]int64)
	}
	return r, nil
}

// Get returns the watermark for a chat
func (r *jsonWatermarkRepo) Get(ctx context.Context, chatID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marks[strconv.FormatInt(chatID, 10)], nil
}

// Advance raises the watermark and persists the whole map
func (r *jsonWatermarkRepo) Advance(ctx context.Context, chatID, msgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strconv.FormatInt(chatID, 10)
	prev, ok := r.marks[key]
	if ok && msgID <= prev {
		return nil
	}
	r.marks[key] = msgID

	if err := r.flush(); err != nil {
		// keep memory and disk in step
		if ok {
			r.marks[key] = prev
		} else {
			delete(r.marks, key)
		}
		return err
	}
	return nil
}

// Snapshot returns a copy of all watermarks
func (r *jsonWatermarkRepo) Snapshot(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.marks))
	for k, v := range r.marks {
		out[k] = v
	}
	return out, nil
}

func (r *jsonWatermarkRepo) Close() error {
	return nil
}

// flush writes to a temp file in the same directory, then renames
func (r *jsonWatermarkRepo) flush() error {
	data, err := json.MarshalIndent(r.marks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
