package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileHints stores hints in a small YAML file.
type FileHints struct {
	mu   sync.Mutex
	path string
}

// NewFileHints returns a store backed by path. The file is created on the
// first Save.
func NewFileHints(path string) *FileHints {
	return &FileHints{path: path}
}

// Load reads the hints. A missing file yields empty hints.
func (f *FileHints) Load(context.Context) (Hints, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var h Hints
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return h, fmt.Errorf("failed to read hints file: %w", err)
	}
	if err := yaml.Unmarshal(data, &h); err != nil {
		return Hints{}, fmt.Errorf("failed to parse hints file: %w", err)
	}
	return h, nil
}

// Save replaces the file contents with h.
func (f *FileHints) Save(_ context.Context, h Hints) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode hints: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create hints dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write hints file: %w", err)
	}
	return os.Rename(tmp, f.path)
}
