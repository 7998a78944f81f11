package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-authz/internal/repository"
	"github.com/arklim/social-platform-authz/internal/transport/http/middleware"
	"github.com/arklim/social-platform-authz/internal/usecase"
)

// RoleHandler exposes the privileged role administration endpoints.
type RoleHandler struct {
	roles *usecase.RoleService
}

// NewRoleHandler builds a role handler instance.
func NewRoleHandler(roles *usecase.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// RegisterRoutes attaches the role admin endpoints to the provided group.
func (h *RoleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.CreateRole)
	r.GET("", h.ListRoles)
	r.GET("/:id", h.GetRole)
	r.PATCH("/:id", h.UpdateRole)
	r.DELETE("/:id", h.DeleteRole)
	r.POST("/:id/assign", h.AssignRole)
	r.POST("/:id/revoke", h.RevokeRole)
	r.GET("/:id/grants", h.ListGrants)
	r.POST("/:id/grants", h.AddGrants)
	r.DELETE("/:id/grants", h.RemoveGrants)
}

var roleErrorCases = []ErrorCase{
	{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "permission denied"},
	{Err: usecase.ErrRoleLevelDenied, Status: http.StatusForbidden, Message: "actor role level does not dominate target"},
	{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
	{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role code already exists"},
	{Err: usecase.ErrSystemRoleProtected, Status: http.StatusConflict, Message: "system role is protected"},
	{Err: usecase.ErrInvalidRoleLevel, Status: http.StatusBadRequest, Message: "role level out of range"},
	{Err: usecase.ErrInvalidPermissionCode, Status: http.StatusBadRequest, Message: "invalid permission code"},
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
}

func actorID(c *gin.Context) (string, bool) {
	id := middleware.GetUserID(c)
	if id == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return "", false
	}
	return id, true
}

// CreateRole creates a role below the actor's own level.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), actor, usecase.CreateRoleInput{
		Code:   strings.TrimSpace(req.Code),
		Name:   strings.TrimSpace(req.Name),
		Level:  req.Level,
		Active: true,
	})
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role creation failed")
		return
	}

	c.JSON(http.StatusCreated, NewRoleResponse(*role))
}

// ListRoles enumerates all roles.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role listing failed")
		return
	}

	out := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, NewRoleResponse(role))
	}

	c.JSON(http.StatusOK, out)
}

// GetRole fetches a single role by ID.
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roles.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role lookup failed")
		return
	}

	c.JSON(http.StatusOK, NewRoleResponse(*role))
}

// UpdateRole applies a partial update. System roles refuse level and
// active changes.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.UpdateRole(c.Request.Context(), actor, usecase.UpdateRoleInput{
		ID:     c.Param("id"),
		Name:   req.Name,
		Level:  req.Level,
		Active: req.IsActive,
	})
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role update failed")
		return
	}

	c.JSON(http.StatusOK, NewRoleResponse(*role))
}

// DeleteRole removes a non-system role.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	if err := h.roles.DeleteRole(c.Request.Context(), actor, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role deletion failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role deleted"})
}

// AssignRole grants the role to a user.
func (h *RoleHandler) AssignRole(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid assignment payload"))
		return
	}

	if err := h.roles.AssignRole(c.Request.Context(), actor, req.UserID, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role assignment failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role assigned"})
}

// RevokeRole removes the role from a user.
func (h *RoleHandler) RevokeRole(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req RevokeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid revocation payload"))
		return
	}

	if err := h.roles.RevokeRole(c.Request.Context(), actor, req.UserID, c.Param("id"), req.Reason); err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role revocation failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role revoked"})
}

// ListGrants enumerates the permission codes attached to a role.
func (h *RoleHandler) ListGrants(c *gin.Context) {
	codes, err := h.roles.ListGrants(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "grant listing failed")
		return
	}

	c.JSON(http.StatusOK, permissionStrings(codes))
}

// AddGrants attaches permission codes to a role.
func (h *RoleHandler) AddGrants(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req GrantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid grants payload"))
		return
	}

	added, err := h.roles.AddGrants(c.Request.Context(), actor, c.Param("id"), permissionCodes(req.Codes))
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "grant addition failed")
		return
	}

	c.JSON(http.StatusOK, GrantsResponse{Affected: added})
}

// RemoveGrants detaches permission codes from a role.
func (h *RoleHandler) RemoveGrants(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req GrantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid grants payload"))
		return
	}

	removed, err := h.roles.RemoveGrants(c.Request.Context(), actor, c.Param("id"), permissionCodes(req.Codes))
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "grant removal failed")
		return
	}

	c.JSON(http.StatusOK, GrantsResponse{Affected: removed})
}
