package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "snapshot.json"), logging.NewTestLogger().Logger)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	state := State{
		Todos: []model.Todo{{
			ID:        "t1",
			Title:     "persisted todo",
			Priority:  model.PriorityNormal,
			Status:    model.StatusPending,
			Users:     []string{"u1"},
			UserID:    "u1",
			CreatedAt: created,
			UpdatedAt: created,
		}},
		User: &model.User{ID: "u1", Email: "alice@example.com", Role: model.RoleAdmin},
	}
	require.NoError(t, store.Save(state))

	loaded := store.Load()
	require.Len(t, loaded.Todos, 1)
	assert.Equal(t, "persisted todo", loaded.Todos[0].Title)
	assert.True(t, loaded.Todos[0].CreatedAt.Equal(created))
	require.NotNil(t, loaded.User)
	assert.Equal(t, model.RoleAdmin, loaded.User.Role)
}

func TestLoad_MissingFile(t *testing.T) {
	store := newTestStore(t)

	state := store.Load()
	assert.Empty(t, state.Todos)
	assert.Nil(t, state.User)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store := New(path, logging.NewTestLogger().Logger)
	assert.Empty(t, store.Load().Todos)
}

func TestLoad_NamespaceMismatchIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	foreign, err := json.Marshal(map[string]any{
		"name": "some-other-app",
		"state": map[string]any{
			"todos": []map[string]any{{"id": "x", "title": "foreign"}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, foreign, 0600))

	store := New(path, logging.NewTestLogger().Logger)
	state := store.Load()
	assert.Empty(t, state.Todos, "a foreign snapshot is ignored, not loaded")
	assert.Nil(t, state.User)
}

func TestSave_EnvelopeAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	store := New(path, logging.NewTestLogger().Logger)

	require.NoError(t, store.Save(State{User: &model.User{ID: "u1"}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var env struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, Namespace, env.Name)
}

func TestSave_Overwrites(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(State{User: &model.User{ID: "first"}}))
	require.NoError(t, store.Save(State{User: &model.User{ID: "second"}}))

	loaded := store.Load()
	require.NotNil(t, loaded.User)
	assert.Equal(t, "second", loaded.User.ID)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(State{User: &model.User{ID: "u1"}}))
	require.NoError(t, store.Clear())
	assert.Nil(t, store.Load().User)

	// Clearing an already-missing snapshot is fine.
	require.NoError(t, store.Clear())
}
