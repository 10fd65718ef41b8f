package views

import "github.com/fyrsmithlabs/taskd/pkg/model"

// Memo caches the last derived view, keyed on the identity of the input
// slice and the filter parameter. It is meant for a single consumer that
// rerenders more often than store state changes; it is not safe for
// concurrent use.
type Memo struct {
	lastTodos   []model.Todo
	lastProject string
	active      []model.Todo
	resolved    []model.Todo
	valid       bool
}

// Derive returns the active and resolved partitions of the project-filtered
// todo list, recomputing only when the input slice or project id changes.
func (m *Memo) Derive(todos []model.Todo, projectID string) (active, resolved []model.Todo) {
	if m.valid && m.lastProject == projectID && sameSlice(m.lastTodos, todos) {
		return m.active, m.resolved
	}

	m.active, m.resolved = PartitionByStatus(FilterByProject(todos, projectID))
	m.lastTodos = todos
	m.lastProject = projectID
	m.valid = true
	return m.active, m.resolved
}

// Invalidate drops the cached view.
func (m *Memo) Invalidate() {
	m.valid = false
	m.lastTodos = nil
}

// sameSlice reports whether two slices share identity: same length and same
// backing array start. The store replaces the todo slice wholesale on every
// change, so identity is a sound cache key.
func sameSlice(a, b []model.Todo) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
