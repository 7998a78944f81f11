package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-authz/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignInRequest defines the payload for the sign-in endpoint.
type SignInRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// IdentityView describes the authenticated principal.
type IdentityView struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
}

// SessionResponse is the serialized view of a session snapshot.
type SessionResponse struct {
	Phase       string        `json:"phase"`
	Identity    *IdentityView `json:"identity,omitempty"`
	Permissions []string      `json:"permissions"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
	Version     uint64        `json:"version"`
	Error       string        `json:"error,omitempty"`
}

// NewSessionResponse converts a snapshot into its transport representation.
func NewSessionResponse(snap domain.SessionSnapshot) SessionResponse {
	resp := SessionResponse{
		Phase:       snap.Phase.String(),
		Permissions: permissionStrings(snap.Permissions.Codes()),
		Version:     snap.Version,
	}

	if snap.Identity != nil {
		resp.Identity = &IdentityView{
			UserID:   snap.Identity.UserID,
			Username: snap.Identity.Username,
			Email:    snap.Identity.Email,
		}
	}

	if !snap.ExpiresAt.IsZero() {
		expires := snap.ExpiresAt
		resp.ExpiresAt = &expires
	}

	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}

	return resp
}

// CheckRequest defines the payload for permission checks. Exactly one of the
// fields drives the evaluation mode.
type CheckRequest struct {
	Permission string   `json:"permission,omitempty"`
	AnyOf      []string `json:"any_of,omitempty"`
	AllOf      []string `json:"all_of,omitempty"`
	Pattern    string   `json:"pattern,omitempty"`
}

// CheckResponse reports the outcome of a permission check.
type CheckResponse struct {
	Allowed bool `json:"allowed"`
	Loading bool `json:"loading"`
}

// RoleResponse is the serialized view of a role.
type RoleResponse struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	IsSystem bool   `json:"is_system"`
	IsActive bool   `json:"is_active"`
}

// NewRoleResponse converts a role into its transport representation.
func NewRoleResponse(role domain.Role) RoleResponse {
	return RoleResponse{
		ID:       role.ID,
		Code:     role.Code,
		Name:     role.Name,
		Level:    role.Level,
		IsSystem: role.IsSystem,
		IsActive: role.IsActive,
	}
}

// CreateRoleRequest defines the payload for role creation.
type CreateRoleRequest struct {
	Code  string `json:"code" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Level int    `json:"level"`
}

// UpdateRoleRequest defines the payload for role updates.
type UpdateRoleRequest struct {
	Name     *string `json:"name,omitempty"`
	Level    *int    `json:"level,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// AssignRoleRequest defines the payload for role assignment.
type AssignRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// RevokeRoleRequest defines the payload for role revocation.
type RevokeRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// GrantsRequest defines the payload for adding or removing grants.
type GrantsRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

// GrantsResponse reports the number of grants affected.
type GrantsResponse struct {
	Affected int `json:"affected"`
}

// CreateUserRequest defines the payload for account provisioning.
type CreateUserRequest struct {
	Username string  `json:"username" binding:"required"`
	Email    *string `json:"email,omitempty"`
	Password string  `json:"password" binding:"required"`
}

// UserResponse is the serialized view of a managed account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func permissionStrings(codes []domain.PermissionCode) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, string(code))
	}
	return out
}

func permissionCodes(values []string) []domain.PermissionCode {
	out := make([]domain.PermissionCode, 0, len(values))
	for _, v := range values {
		out = append(out, domain.PermissionCode(v))
	}
	return out
}
