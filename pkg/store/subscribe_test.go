package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskd/pkg/model"
	"github.com/fyrsmithlabs/taskd/pkg/views"
)

// waitForState polls the store until cond holds or the deadline passes.
func waitForState(t *testing.T, s *Store, cond func(State) bool) State {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		state := s.State()
		if cond(state) {
			return state
		}
		select {
		case <-deadline:
			t.Fatalf("state condition not met, last state: %+v", state)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func titles(todos []model.Todo) []string {
	out := make([]string, 0, len(todos))
	for _, t := range todos {
		out = append(out, t.Title)
	}
	return out
}

func TestSubscribeToTodos_PlainUserSeesAssignedOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.todos.Create(ctx, testTodo("for alice", "alice"))
	require.NoError(t, err)
	_, err = env.todos.Create(ctx, testTodo("for bob", "bob"))
	require.NoError(t, err)
	_, err = env.todos.Create(ctx, testTodo("shared", "bob", "bob", "alice"))
	require.NoError(t, err)

	cancel, err := env.store.SubscribeToTodos(ctx, "alice", plainUser("alice"))
	require.NoError(t, err)
	defer cancel()

	state := waitForState(t, env.store, func(s State) bool { return len(s.Todos) == 2 })
	assert.ElementsMatch(t, []string{"for alice", "shared"}, titles(state.Todos),
		"a plain user sees only todos listing them as an assignee")
}

func TestSubscribeToTodos_ElevatedUserSeesEverything(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.todos.Create(ctx, testTodo("for alice", "alice"))
	require.NoError(t, err)
	_, err = env.todos.Create(ctx, testTodo("for bob", "bob"))
	require.NoError(t, err)

	cancel, err := env.store.SubscribeToTodos(ctx, "root", elevatedUser("root"))
	require.NoError(t, err)
	defer cancel()

	state := waitForState(t, env.store, func(s State) bool { return len(s.Todos) == 2 })
	assert.ElementsMatch(t, []string{"for alice", "for bob"}, titles(state.Todos))
}

func TestSubscribeToTodos_SnapshotReplacesWholesale(t *testing.T) {
	// A stale todo in local state that no longer exists remotely must vanish
	// on the first snapshot: snapshots replace, they never merge.
	stale := testTodo("stale", "alice")
	stale.ID = "gone"
	env := newTestEnv(t, nil)
	env.store.mu.Lock()
	env.store.state.Todos = []model.Todo{stale}
	env.store.mu.Unlock()

	ctx := context.Background()
	_, err := env.todos.Create(ctx, testTodo("fresh", "alice"))
	require.NoError(t, err)

	cancel, err := env.store.SubscribeToTodos(ctx, "alice", plainUser("alice"))
	require.NoError(t, err)
	defer cancel()

	state := waitForState(t, env.store, func(s State) bool {
		return len(s.Todos) == 1 && s.Todos[0].Title == "fresh"
	})
	assert.Equal(t, []string{"fresh"}, titles(state.Todos))
}

func TestSubscribeToProjects_ServerSideOwnerFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.projects.Create(ctx, model.Project{Name: "alpha", UserID: "alice"})
	require.NoError(t, err)
	_, err = env.projects.Create(ctx, model.Project{Name: "beta", UserID: "bob"})
	require.NoError(t, err)

	cancel, err := env.store.SubscribeToProjects(ctx, "alice")
	require.NoError(t, err)
	defer cancel()

	state := waitForState(t, env.store, func(s State) bool { return len(s.Projects) == 1 })
	assert.Equal(t, "alpha", state.Projects[0].Name)
}

func TestDeleteProject_OptimisticPrune(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id, err := env.projects.Create(ctx, model.Project{Name: "doomed", UserID: "alice"})
	require.NoError(t, err)

	env.store.mu.Lock()
	env.store.state.Projects = []model.Project{{ID: id, Name: "doomed", UserID: "alice"}}
	env.store.mu.Unlock()

	require.NoError(t, env.store.DeleteProject(ctx, id))
	assert.Empty(t, env.store.State().Projects, "pruned immediately without a snapshot")

	_, err = env.projects.Get(ctx, id)
	assert.Error(t, err, "the remote record is gone too")
}

// TestTodoLifecycle drives a todo through the full flow a client would:
// create it, watch it arrive, complete it, then cancel it.
func TestTodoLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user := plainUser("alice")
	cancel, err := env.store.SubscribeToTodos(ctx, "alice", user)
	require.NoError(t, err)
	defer cancel()

	release := testTodo("Ship release", "alice")
	release.Priority = model.PriorityCritical
	require.NoError(t, env.store.AddTodo(ctx, release))

	state := waitForState(t, env.store, func(s State) bool { return len(s.Todos) == 1 })
	id := state.Todos[0].ID
	require.NotEmpty(t, id)

	active, resolved := views.PartitionByStatus(state.Todos)
	require.Len(t, active, 1)
	assert.Empty(t, resolved)
	assert.Equal(t, model.PriorityCritical, active[0].Priority)

	// Complete it: it moves to the resolved partition with a completion time.
	completed := model.StatusCompleted
	require.NoError(t, env.store.UpdateTodo(ctx, id, model.TodoPatch{Status: &completed}))
	state = waitForState(t, env.store, func(s State) bool {
		return len(s.Todos) == 1 && s.Todos[0].Status == model.StatusCompleted
	})
	require.NotNil(t, state.Todos[0].CompletedDate)
	active, resolved = views.PartitionByStatus(state.Todos)
	assert.Empty(t, active)
	assert.Len(t, resolved, 1)

	// Cancel it: still resolved, but the completion time is gone.
	cancelled := model.StatusCancelled
	require.NoError(t, env.store.UpdateTodo(ctx, id, model.TodoPatch{Status: &cancelled}))
	state = waitForState(t, env.store, func(s State) bool {
		return len(s.Todos) == 1 && s.Todos[0].Status == model.StatusCancelled
	})
	assert.Nil(t, state.Todos[0].CompletedDate)
	_, resolved = views.PartitionByStatus(state.Todos)
	assert.Len(t, resolved, 1)
}
