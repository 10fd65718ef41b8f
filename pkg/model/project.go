package model

import "time"

// Project groups todos for a single client or initiative.
//
// Deleting a project does not cascade to its todos; a todo keeps its
// ProjectID and is rendered as having no project once the reference dangles.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Client      string    `json:"client,omitempty"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks the fields required before a project may be persisted.
func (p *Project) Validate() error {
	if p.Name == "" {
		return ErrInvalidProject
	}
	return nil
}

// ProjectPatch names every project field that can change in a partial update.
// A nil field leaves the stored value untouched.
type ProjectPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	Client      *string `json:"client,omitempty"`
}

// Fields returns the set fields as a document patch map.
func (p ProjectPatch) Fields() map[string]any {
	m := map[string]any{}
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.Color != nil {
		m["color"] = *p.Color
	}
	if p.Client != nil {
		m["client"] = *p.Client
	}
	return m
}
