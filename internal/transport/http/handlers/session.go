package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/retry"
	"github.com/arklim/social-platform-authz/internal/usecase"
)

// SessionHandler drives the session coordinator: sign-in, refresh, sign-out,
// and snapshot inspection.
type SessionHandler struct {
	coordinator *usecase.SessionCoordinator
}

// NewSessionHandler builds a session handler instance.
func NewSessionHandler(coordinator *usecase.SessionCoordinator) *SessionHandler {
	return &SessionHandler{coordinator: coordinator}
}

// RegisterRoutes attaches the session endpoints to the provided group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.Snapshot)
	r.POST("/sign-in", h.SignIn)
	r.POST("/refresh", h.Refresh)
	r.POST("/sign-out", h.SignOut)
}

// Snapshot returns the current session state without side effects.
func (h *SessionHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, NewSessionResponse(h.coordinator.Snapshot()))
}

// SignIn authenticates the session. Permissions are resolved before the
// authenticated state becomes observable.
func (h *SessionHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid credentials payload"))
		return
	}

	snap, err := h.coordinator.SignIn(c.Request.Context(), port.Credentials{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		c.JSON(failureStatus(err), NewSessionResponse(snap))
		return
	}

	c.JSON(http.StatusOK, NewSessionResponse(snap))
}

// failureStatus maps coordinator failures onto HTTP status codes. Terminal
// credential rejections are the caller's fault; everything else is an
// upstream failure.
func failureStatus(err error) int {
	if errors.Is(err, usecase.ErrNotAuthenticated) {
		return http.StatusConflict
	}
	if usecase.AuthErrorClassifier(err) == retry.Terminal {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// Refresh rotates the session credentials and re-resolves permissions.
func (h *SessionHandler) Refresh(c *gin.Context) {
	snap, err := h.coordinator.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(failureStatus(err), NewSessionResponse(snap))
		return
	}

	c.JSON(http.StatusOK, NewSessionResponse(snap))
}

// SignOut clears the session from any state and notifies other contexts.
func (h *SessionHandler) SignOut(c *gin.Context) {
	c.JSON(http.StatusOK, NewSessionResponse(h.coordinator.SignOut(c.Request.Context())))
}
