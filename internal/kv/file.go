package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// File keeps every key in a single JSON document on disk, the way a browser
// keeps its local storage in one profile file. A sidecar lock file guards
// each read and each write against other processes sharing the document.
type File struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("kv: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("kv: create data dir: %w", err)
	}
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("kv: lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	entries, err := f.readLocked()
	if err != nil {
		return nil, err
	}
	value, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(value), nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	return f.update(func(entries map[string]string) {
		entries[key] = string(value)
	})
}

func (f *File) Delete(_ context.Context, key string) error {
	return f.update(func(entries map[string]string) {
		delete(entries, key)
	})
}

func (f *File) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := os.Stat(filepath.Dir(f.path))
	return err
}

func (f *File) Close() error {
	return f.lock.Close()
}

func (f *File) update(mutate func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("kv: lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	entries, err := f.readLocked()
	if err != nil {
		return err
	}
	mutate(entries)
	return f.writeLocked(entries)
}

func (f *File) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv: read %s: %w", f.path, err)
	}
	entries := make(map[string]string)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("kv: parse %s: %w", f.path, err)
	}
	return entries, nil
}

// writeLocked replaces the document through a rename so readers never see
// a half-written file.
func (f *File) writeLocked(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", f.path, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("kv: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("kv: replace %s: %w", f.path, err)
	}
	return nil
}
