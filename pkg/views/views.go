// Package views derives presentation-facing slices from entity store state.
//
// Every function is pure: the same inputs always produce the same outputs
// and inputs are never mutated. Views are cheap to recompute on each state
// change for per-user todo volumes; Memo exists for callers that rerender
// more often than state changes.
package views

import "github.com/fyrsmithlabs/taskd/pkg/model"

// FilterByProject returns the todos belonging to the selected project,
// preserving relative order. An empty projectID selects all todos.
//
// The filter is idempotent: filtering an already-filtered sequence by the
// same project id returns an equal sequence.
func FilterByProject(todos []model.Todo, projectID string) []model.Todo {
	if projectID == "" {
		return todos
	}
	filtered := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if t.ProjectID == projectID {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// PartitionByStatus splits todos into active and resolved, preserving
// relative order in both halves.
//
// A todo is resolved when its status is completed or cancelled; everything
// else is active. The two partitions are disjoint and together cover the
// input exactly.
func PartitionByStatus(todos []model.Todo) (active, resolved []model.Todo) {
	for _, t := range todos {
		if t.Status.Resolved() {
			resolved = append(resolved, t)
		} else {
			active = append(active, t)
		}
	}
	return active, resolved
}
