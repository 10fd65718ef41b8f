package model

import "time"

// Role is the access-level tag controlling todo visibility.
type Role string

const (
	// RoleUser sees only todos where their id appears in the assignee list.
	RoleUser Role = "user"
	// RoleAdmin sees every todo in the collection.
	RoleAdmin Role = "admin"
)

// Elevated reports whether the role grants visibility over all todos.
func (r Role) Elevated() bool {
	return r == RoleAdmin
}

// User is the locally mirrored profile of an authenticated identity.
//
// Identity fields (ID, Email) come from the auth provider. Role and
// CreatedAt are owned by the profile collection and survive re-authentication:
// a sign-in event never overwrites them for an existing profile.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfilePatch names the profile-display fields a user may change.
// Role and CreatedAt are deliberately absent: they cannot be patched.
type ProfilePatch struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
	Email  *string `json:"email,omitempty"`
}

// Fields returns the set fields as a document patch map.
func (p ProfilePatch) Fields() map[string]any {
	m := map[string]any{}
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Avatar != nil {
		m["avatar"] = *p.Avatar
	}
	if p.Email != nil {
		m["email"] = *p.Email
	}
	return m
}
