// Package persist stores a local snapshot of the entity store across
// process restarts.
//
// Only the todo list and the signed-in user survive a restart; projects and
// transient flags are always re-fetched. The snapshot is a single JSON file
// keyed by a fixed namespace so a foreign or stale file is ignored rather
// than loaded.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/pkg/model"
)

// Namespace identifies taskd's snapshot envelope.
const Namespace = "todo-app-storage"

// State is the persisted subset of the entity store.
type State struct {
	Todos []model.Todo `json:"todos"`
	User  *model.User  `json:"user"`
}

type envelope struct {
	Name  string `json:"name"`
	State State  `json:"state"`
}

// Store reads and writes the snapshot file.
type Store struct {
	mu   sync.Mutex
	path string
	log  *logging.Logger
}

// New creates a snapshot store writing to path.
func New(path string, log *logging.Logger) *Store {
	return &Store{path: path, log: log.Named("persist")}
}

// Load reads the snapshot.
//
// A missing file, an unreadable envelope, or a namespace mismatch all yield
// an empty state without error: local persistence is a cache, never a source
// of failures at startup.
func (s *Store) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return State{}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Name != Namespace {
		return State{}
	}
	return env.State
}

// Save writes the snapshot atomically with owner-only permissions.
func (s *Store) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(envelope{Name: Namespace, State: state}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot file. A missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}
