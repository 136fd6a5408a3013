// Package local persists the progress snapshot as a pretty-printed JSON
// file in the data directory. It is the default backend for a local
// installation.
package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pointerquest/engine/internal/domain"
)

const snapshotFile = "snapshot.json"

// Store provides thread-safe JSON file storage for the state snapshot.
// One file holds the whole snapshot; every save replaces it.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a snapshot store rooted at basePath, creating the
// directory if needed.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Path returns the location of the snapshot file.
func (s *Store) Path() string {
	return filepath.Join(s.basePath, snapshotFile)
}

// Save persists the snapshot, replacing any previous one.
func (s *Store) Save(snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Create(s.Path())
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// Load reads the persisted snapshot. Returns domain.ErrNotFound when no
// snapshot has been saved yet.
func (s *Store) Load() (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no snapshot at %s", domain.ErrNotFound, s.Path())
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	var snap domain.Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	return &snap, nil
}

// Exists checks if a snapshot has been persisted.
func (s *Store) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path())
	return err == nil
}
