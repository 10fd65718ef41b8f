// Package model defines the entities tracked by taskd: users, projects,
// and todos, plus the explicit patch types used for partial updates.
package model

import (
	"errors"
	"time"
)

// Sentinel errors for entity validation.
var (
	// ErrInvalidTodo indicates a todo is missing required fields.
	ErrInvalidTodo = errors.New("invalid todo: title and priority are required")

	// ErrInvalidProject indicates a project is missing required fields.
	ErrInvalidProject = errors.New("invalid project: name is required")
)

// Status represents the lifecycle state of a todo.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Resolved reports whether the status is terminal (completed or cancelled).
func (s Status) Resolved() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority represents the urgency of a todo.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityNormal   Priority = "normal"
	PriorityMinor    Priority = "minor"
)

// Todo is a single tracked task.
//
// The ID is assigned by the document store at creation time; a todo built
// locally carries an empty ID until it has been persisted. ProjectID is
// optional and may reference a project that no longer exists, in which case
// views treat the todo as having no project.
type Todo struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Priority      Priority   `json:"priority"`
	Status        Status     `json:"status"`
	Users         []string   `json:"users"`
	ProjectID     string     `json:"projectId,omitempty"`
	UserID        string     `json:"userId"`
	EstimatedDate *time.Time `json:"estimatedDate,omitempty"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Validate checks the fields required before a todo may be persisted.
//
// Returns ErrInvalidTodo if the title or priority is missing.
func (t *Todo) Validate() error {
	if t.Title == "" || t.Priority == "" {
		return ErrInvalidTodo
	}
	return nil
}

// AssignedTo reports whether the given user id appears in the assignee list.
func (t *Todo) AssignedTo(userID string) bool {
	for _, id := range t.Users {
		if id == userID {
			return true
		}
	}
	return false
}

// TodoPatch names every todo field that can change in a partial update.
// A nil field leaves the stored value untouched.
//
// Status transitions drive the completion timestamp: the store sets
// CompletedDate when a patch moves a todo to StatusCompleted and clears it
// when a patch moves it to any other status, including StatusCancelled.
type TodoPatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	Users         *[]string  `json:"users,omitempty"`
	ProjectID     *string    `json:"projectId,omitempty"`
	EstimatedDate *time.Time `json:"estimatedDate,omitempty"`
}

// Fields returns the set fields as a document patch map.
func (p TodoPatch) Fields() map[string]any {
	m := map[string]any{}
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.Priority != nil {
		m["priority"] = *p.Priority
	}
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.Users != nil {
		m["users"] = *p.Users
	}
	if p.ProjectID != nil {
		m["projectId"] = *p.ProjectID
	}
	if p.EstimatedDate != nil {
		m["estimatedDate"] = *p.EstimatedDate
	}
	return m
}
