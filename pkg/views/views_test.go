package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskd/pkg/model"
)

func sampleTodos() []model.Todo {
	return []model.Todo{
		{ID: "1", Title: "draft proposal", Status: model.StatusPending, ProjectID: "p1"},
		{ID: "2", Title: "review contract", Status: model.StatusInProgress, ProjectID: "p2"},
		{ID: "3", Title: "send invoice", Status: model.StatusCompleted, ProjectID: "p1"},
		{ID: "4", Title: "old followup", Status: model.StatusCancelled},
	}
}

func ids(todos []model.Todo) []string {
	out := make([]string, 0, len(todos))
	for _, t := range todos {
		out = append(out, t.ID)
	}
	return out
}

func TestFilterByProject(t *testing.T) {
	todos := sampleTodos()

	assert.Equal(t, []string{"1", "3"}, ids(FilterByProject(todos, "p1")))
	assert.Empty(t, FilterByProject(todos, "nonexistent"))

	// Empty id selects everything.
	assert.Equal(t, todos, FilterByProject(todos, ""))
}

func TestFilterByProject_Idempotent(t *testing.T) {
	todos := sampleTodos()

	once := FilterByProject(todos, "p1")
	twice := FilterByProject(once, "p1")
	assert.Equal(t, once, twice)
}

func TestFilterByProject_DoesNotMutateInput(t *testing.T) {
	todos := sampleTodos()
	before := ids(todos)

	FilterByProject(todos, "p2")
	assert.Equal(t, before, ids(todos))
}

func TestPartitionByStatus(t *testing.T) {
	active, resolved := PartitionByStatus(sampleTodos())

	assert.Equal(t, []string{"1", "2"}, ids(active), "pending and in_progress are active")
	assert.Equal(t, []string{"3", "4"}, ids(resolved), "completed and cancelled are resolved")
}

func TestPartitionByStatus_DisjointAndExhaustive(t *testing.T) {
	todos := sampleTodos()
	active, resolved := PartitionByStatus(todos)

	require.Equal(t, len(todos), len(active)+len(resolved))

	seen := map[string]bool{}
	for _, t := range active {
		seen[t.ID] = true
	}
	for _, todo := range resolved {
		assert.False(t, seen[todo.ID], "todo %s appears in both partitions", todo.ID)
	}
}

func TestPartitionByStatus_Empty(t *testing.T) {
	active, resolved := PartitionByStatus(nil)
	assert.Empty(t, active)
	assert.Empty(t, resolved)
}

func TestMemo_CachesOnSliceIdentity(t *testing.T) {
	var m Memo
	todos := sampleTodos()

	active1, resolved1 := m.Derive(todos, "p1")
	active2, resolved2 := m.Derive(todos, "p1")

	// Same input slice, same project: the exact cached slices come back.
	assert.Same(t, &active1[0], &active2[0])
	assert.Same(t, &resolved1[0], &resolved2[0])
}

func TestMemo_RecomputesOnProjectChange(t *testing.T) {
	var m Memo
	todos := sampleTodos()

	m.Derive(todos, "p1")
	active, _ := m.Derive(todos, "")
	assert.Equal(t, []string{"1", "2"}, ids(active))
}

func TestMemo_RecomputesOnNewSlice(t *testing.T) {
	var m Memo

	active, _ := m.Derive(sampleTodos(), "")
	require.Len(t, active, 2)

	// The store replaces the slice wholesale on every change; a new slice
	// means a fresh computation even with equal contents.
	replaced := sampleTodos()
	replaced[0].Status = model.StatusCompleted
	active, resolved := m.Derive(replaced, "")
	assert.Equal(t, []string{"2"}, ids(active))
	assert.Equal(t, []string{"1", "3", "4"}, ids(resolved))
}

func TestMemo_Invalidate(t *testing.T) {
	var m Memo
	todos := sampleTodos()

	active1, _ := m.Derive(todos, "")
	m.Invalidate()
	active2, _ := m.Derive(todos, "")

	assert.Equal(t, ids(active1), ids(active2))
	assert.NotSame(t, &active1[0], &active2[0], "invalidate forces a recompute")
}
