package domain

import "time"

// RoleChange captures a single role mentioned by an event.
type RoleChange struct {
	RoleID   string
	RoleCode string
}

// RolesAssignedEvent represents the payload for authz.user.roles.assigned messages.
type RolesAssignedEvent struct {
	EventID    string
	UserID     string
	RolesAdded []RoleChange
	AssignedBy string
	AssignedAt time.Time
	Metadata   map[string]any
}

// RolesRevokedEvent represents the payload for authz.user.roles.revoked messages.
type RolesRevokedEvent struct {
	EventID      string
	UserID       string
	RolesRemoved []RoleChange
	RevokedBy    string
	RevokedAt    time.Time
	Reason       string
	Metadata     map[string]any
}

// GrantsChangedEvent represents the payload for authz.role.grants.changed messages.
type GrantsChangedEvent struct {
	EventID   string
	RoleID    string
	Added     []PermissionCode
	Removed   []PermissionCode
	ChangedBy string
	ChangedAt time.Time
	Metadata  map[string]any
}

// UserCreatedEvent represents the payload for authz.user.created messages.
type UserCreatedEvent struct {
	EventID   string
	UserID    string
	Username  string
	Email     *string
	CreatedBy string
	CreatedAt time.Time
	Metadata  map[string]any
}

// SessionEndedEvent represents the payload for authz.session.ended messages.
type SessionEndedEvent struct {
	EventID  string
	UserID   string
	OriginID string
	Reason   string
	EndedAt  time.Time
	Metadata map[string]any
}
