// Package store implements taskd's synchronized entity store.
//
// A Store mirrors the remote document collections (todos, projects, users)
// into in-memory state and keeps it current through live subscriptions.
// Mutations are forwarded to the remote collections and, except for deletes,
// do not touch local state directly: the active subscription observes the
// change and replaces state wholesale. Deletes additionally prune local
// state optimistically so the UI does not wait on the next snapshot.
//
// The remote store is authoritative. A snapshot always wins over any
// optimistic local edit because applying it replaces the mirrored slice
// entirely.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/internal/metrics"
	"github.com/fyrsmithlabs/taskd/internal/persist"
	"github.com/fyrsmithlabs/taskd/pkg/docstore"
	"github.com/fyrsmithlabs/taskd/pkg/model"
)

// CancelFunc stops a subscription. Safe to call more than once.
type CancelFunc func()

// State is the reactive state mirrored by the store.
//
// Slices are replaced wholesale, never mutated in place, so a State copy
// returned to a consumer stays stable while the store moves on.
type State struct {
	User           *model.User
	Todos          []model.Todo
	Projects       []model.Project
	AvailableUsers []model.User
	Loading        bool
	Error          string
}

// Store is a constructible, process-wide entity container.
//
// All methods are safe for concurrent use. Consumers read state with State()
// and learn about changes through Watch().
type Store struct {
	mu    sync.RWMutex
	state State

	todos    *docstore.Collection
	projects *docstore.Collection

	snapshot *persist.Store
	log      *logging.Logger

	watchMu  sync.Mutex
	watchers []chan struct{}

	now func() time.Time
}

// New creates a store over the todo and project collections.
//
// snapshot may be nil to disable local persistence; when set, the persisted
// {todos, user} subset seeds the initial state so the UI has data before the
// first live snapshot arrives.
func New(todos, projects *docstore.Collection, snapshot *persist.Store, log *logging.Logger) *Store {
	if log == nil {
		log = logging.NewNop()
	}
	s := &Store{
		todos:    todos,
		projects: projects,
		snapshot: snapshot,
		log:      log.Named("store"),
		now:      time.Now,
	}
	if snapshot != nil {
		cached := snapshot.Load()
		s.state.Todos = cached.Todos
		s.state.User = cached.User
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Watch returns a channel that receives a signal after every state change.
// Signals are coalesced: a slow consumer sees at least one signal for any
// burst of changes, not necessarily one per change.
func (s *Store) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.watchMu.Lock()
	s.watchers = append(s.watchers, ch)
	s.watchMu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SetUser replaces the signed-in user and persists the change.
func (s *Store) SetUser(user *model.User) {
	s.mu.Lock()
	s.state.User = user
	s.mu.Unlock()
	s.persistState()
	s.notify()
}

// ClearUser signs the local user out. Todos are kept; the caller is expected
// to cancel the user's subscriptions.
func (s *Store) ClearUser() {
	s.SetUser(nil)
}

// SetAvailableUsers replaces the assignee picker list. Never persisted.
func (s *Store) SetAvailableUsers(users []model.User) {
	s.mu.Lock()
	s.state.AvailableUsers = users
	s.mu.Unlock()
	s.notify()
}

// begin marks an operation as started: loading on, previous error cleared.
func (s *Store) begin() {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()
	s.notify()
}

// done marks an operation as finished successfully.
func (s *Store) done(op string) {
	s.mu.Lock()
	s.state.Loading = false
	s.mu.Unlock()
	metrics.MutationsTotal.WithLabelValues(op, "success").Inc()
	s.notify()
}

// fail records a human-readable error message, leaving prior data intact.
func (s *Store) fail(ctx context.Context, op, msg string, err error) {
	s.mu.Lock()
	s.state.Loading = false
	s.state.Error = msg
	s.mu.Unlock()
	metrics.MutationsTotal.WithLabelValues(op, "error").Inc()
	s.log.Error(ctx, msg, zap.String("op", op), zap.Error(err))
	s.notify()
}

// setStreamError records a subscription stream error without touching the
// loading flag or cancelling the stream.
func (s *Store) setStreamError(ctx context.Context, collection, msg string, err error) {
	s.mu.Lock()
	s.state.Error = msg
	s.mu.Unlock()
	metrics.SubscriptionErrors.WithLabelValues(collection).Inc()
	s.log.Warn(ctx, msg, zap.String("collection", collection), zap.Error(err))
	s.notify()
}

// persistState saves the {todos, user} subset. Persistence failures are
// logged but never surface as store errors: the local snapshot is a cache.
func (s *Store) persistState() {
	if s.snapshot == nil {
		return
	}
	s.mu.RLock()
	state := persist.State{Todos: s.state.Todos, User: s.state.User}
	s.mu.RUnlock()
	if err := s.snapshot.Save(state); err != nil {
		s.log.Warn(context.Background(), "failed to persist local snapshot", zap.Error(err))
	}
}

// sortTodos orders a snapshot deterministically: oldest first, id as
// tie-break so equal timestamps cannot flap between snapshots.
func sortTodos(todos []model.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if !todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].CreatedAt.Before(todos[j].CreatedAt)
		}
		return todos[i].ID < todos[j].ID
	})
}

func sortProjects(projects []model.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
}
