package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-authz/internal/infra/security"
	"github.com/arklim/social-platform-authz/internal/usecase"
)

// UserHandler exposes privileged account provisioning.
type UserHandler struct {
	users *usecase.UserService
	roles *usecase.RoleService
}

// NewUserHandler builds a user handler instance.
func NewUserHandler(users *usecase.UserService, roles *usecase.RoleService) *UserHandler {
	return &UserHandler{users: users, roles: roles}
}

// RegisterRoutes attaches the user admin endpoints to the provided group.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.CreateUser)
	r.GET("/:id/roles", h.ListUserRoles)
}

// CreateUser provisions an account with a policy-checked password.
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid user payload"))
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), actor, usecase.CreateUserInput{
		Username: strings.TrimSpace(req.Username),
		Email:    req.Email,
		Password: req.Password,
		Active:   true,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "permission denied"},
			{Err: usecase.ErrUserExists, Status: http.StatusConflict, Message: "user already exists"},
			{Err: security.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet the strength policy"},
		}, http.StatusInternalServerError, "user creation failed")
		return
	}

	c.JSON(http.StatusCreated, UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	})
}

// ListUserRoles enumerates the roles assigned to a user.
func (h *UserHandler) ListUserRoles(c *gin.Context) {
	roles, err := h.roles.ListRolesForUser(c.Request.Context(), c.Param("id"))
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
