package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps one JSON document per profile, readable only by the owner.
type FileStore struct {
	typed
	f *fileKV
}

type fileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileStore stores credentials at path.
func NewFileStore(path string) *FileStore {
	f := &fileKV{path: path}
	return &FileStore{typed: typed{kv: f}, f: f}
}

// DefaultPath returns ~/.config/consola/<profile>.json.
func DefaultPath(profile string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	return filepath.Join(dir, "consola", profile+".json"), nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.f.path }

func (f *fileKV) get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *fileKV) put(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *fileKV) clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file %s: %w", f.path, err)
	}
	return nil
}

func (f *fileKV) load() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read credential file %s: %w", f.path, err)
	}
	values := map[string]string{}
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("failed to parse credential file %s: %w", f.path, err)
	}
	return values, nil
}

// save replaces the file atomically so a crash never leaves a torn document.
func (f *fileKV) save(values map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential file: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cred-*")
	if err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}
