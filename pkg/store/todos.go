package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/metrics"
	"github.com/fyrsmithlabs/taskd/pkg/docstore"
	"github.com/fyrsmithlabs/taskd/pkg/model"
)

// Human-readable error messages stored in shared error state.
const (
	msgAddTodoFailed        = "failed to add todo"
	msgUpdateTodoFailed     = "failed to update todo"
	msgDeleteTodoFailed     = "failed to delete todo"
	msgDeleteAllTodosFailed = "failed to delete all todos"
	msgTodoStreamError      = "todo subscription error"
)

// AddTodo sends a full todo record to the remote collection.
//
// Local state is not updated directly; the active subscription observes the
// new record. Returns model.ErrInvalidTodo without touching shared error
// state when required fields are missing: validation failures are the
// caller's to prevent, not transport errors to display.
func (s *Store) AddTodo(ctx context.Context, todo model.Todo) error {
	if err := todo.Validate(); err != nil {
		return err
	}

	s.begin()

	now := s.now()
	if todo.Status == "" {
		todo.Status = model.StatusPending
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	todo.UpdatedAt = now

	if _, err := s.todos.Create(ctx, todo); err != nil {
		s.fail(ctx, "add_todo", msgAddTodoFailed, err)
		return fmt.Errorf("%s: %w", msgAddTodoFailed, err)
	}

	s.done("add_todo")
	return nil
}

// UpdateTodo sends a partial patch for the todo by id.
//
// Only fields set on the patch change. Status transitions drive the
// completion timestamp: moving to completed stamps CompletedDate with the
// current time, moving to any other status (including cancelled) clears it.
// Local state updates via the subscription, not directly.
func (s *Store) UpdateTodo(ctx context.Context, id string, patch model.TodoPatch) error {
	s.begin()

	fields := patch.Fields()
	if patch.Status != nil {
		if *patch.Status == model.StatusCompleted {
			fields["completedDate"] = s.now()
		} else {
			fields["completedDate"] = nil
		}
	}
	fields["updatedAt"] = s.now()

	if err := s.todos.Update(ctx, id, fields); err != nil {
		s.fail(ctx, "update_todo", msgUpdateTodoFailed, err)
		return fmt.Errorf("%s: %w", msgUpdateTodoFailed, err)
	}

	s.done("update_todo")
	return nil
}

// DeleteTodo deletes the todo remotely, then optimistically prunes it from
// local state by id regardless of subscription timing.
func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	s.begin()

	if err := s.todos.Delete(ctx, id); err != nil {
		s.fail(ctx, "delete_todo", msgDeleteTodoFailed, err)
		return fmt.Errorf("%s: %w", msgDeleteTodoFailed, err)
	}

	s.mu.Lock()
	s.state.Todos = pruneTodos(s.state.Todos, func(t model.Todo) bool { return t.ID == id })
	s.state.Loading = false
	s.mu.Unlock()
	metrics.MutationsTotal.WithLabelValues("delete_todo", "success").Inc()
	s.persistState()
	s.notify()
	return nil
}

// DeleteAllTodos deletes every todo owned by ownerID.
//
// The owner's todos are queried, deleted as concurrent requests, and the
// call waits for all deletions to settle. On success local state drops the
// owner's todos only; other owners' todos visible in the mirror are kept.
func (s *Store) DeleteAllTodos(ctx context.Context, ownerID string) error {
	s.begin()

	docs, err := s.todos.Find(ctx, docstore.Filter{Field: "userId", Equals: ownerID})
	if err != nil {
		s.fail(ctx, "delete_all_todos", msgDeleteAllTodosFailed, err)
		return fmt.Errorf("%s: %w", msgDeleteAllTodosFailed, err)
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(docs))
	)
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = s.todos.Delete(ctx, id)
		}(i, doc.ID)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			s.fail(ctx, "delete_all_todos", msgDeleteAllTodosFailed, err)
			return fmt.Errorf("%s: %w", msgDeleteAllTodosFailed, err)
		}
	}

	s.mu.Lock()
	s.state.Todos = pruneTodos(s.state.Todos, func(t model.Todo) bool { return t.UserID == ownerID })
	s.state.Loading = false
	s.mu.Unlock()
	metrics.MutationsTotal.WithLabelValues("delete_all_todos", "success").Inc()
	s.persistState()
	s.notify()

	s.log.Info(ctx, "deleted all todos for owner",
		zap.String("owner.id", ownerID), zap.Int("count", len(docs)))
	return nil
}

// SubscribeToTodos opens a live subscription over the full todo collection.
//
// On every snapshot the visible subset is recomputed for the viewing user
// (an elevated role sees everything, a plain user only todos that list them
// as an assignee) and local todo state is replaced wholesale. Stream errors
// are recorded in shared error state but leave the subscription open.
//
// The returned cancel handle must be invoked when the viewing user changes
// or the consumer goes away; an uncancelled subscription leaks its watcher.
func (s *Store) SubscribeToTodos(ctx context.Context, userID string, user model.User) (CancelFunc, error) {
	sub, err := s.todos.Subscribe(ctx)
	if err != nil {
		s.setStreamError(ctx, "todos", msgTodoStreamError, err)
		return nil, fmt.Errorf("subscribe to todos: %w", err)
	}

	go s.consumeTodos(ctx, sub, userID, user)
	return CancelFunc(sub.Cancel), nil
}

func (s *Store) consumeTodos(ctx context.Context, sub *docstore.Subscription, userID string, user model.User) {
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			if !ok {
				return
			}
			s.applyTodoSnapshot(ctx, snap, userID, user)
		case err := <-sub.Errors():
			s.setStreamError(ctx, "todos", msgTodoStreamError, err)
		}
	}
}

func (s *Store) applyTodoSnapshot(ctx context.Context, snap docstore.Snapshot, userID string, user model.User) {
	start := time.Now()

	todos, err := docstore.Decode[model.Todo](snap)
	if err != nil {
		s.setStreamError(ctx, "todos", msgTodoStreamError, err)
		return
	}

	visible := visibleTodos(todos, userID, user)
	sortTodos(visible)

	s.mu.Lock()
	s.state.Todos = visible
	s.mu.Unlock()

	metrics.SnapshotsApplied.WithLabelValues("todos").Inc()
	metrics.SnapshotApplyDuration.Observe(time.Since(start).Seconds())
	s.persistState()
	s.notify()

	s.log.Trace(ctx, "todo snapshot applied",
		zap.Int("total", len(todos)), zap.Int("visible", len(visible)))
}

// visibleTodos applies the role-based visibility rule.
func visibleTodos(todos []model.Todo, userID string, user model.User) []model.Todo {
	if user.Role.Elevated() {
		return todos
	}
	visible := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if t.AssignedTo(userID) {
			visible = append(visible, t)
		}
	}
	return visible
}

// pruneTodos returns a new slice without the todos matching drop.
func pruneTodos(todos []model.Todo, drop func(model.Todo) bool) []model.Todo {
	kept := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if !drop(t) {
			kept = append(kept, t)
		}
	}
	return kept
}
