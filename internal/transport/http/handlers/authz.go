package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/infra/telemetry"
	"github.com/arklim/social-platform-authz/internal/usecase"
)

// AuthzHandler evaluates permission checks against the session's effective
// permission set. Checks fail closed: anything short of a fully
// authenticated session answers false.
type AuthzHandler struct {
	authz   *usecase.AuthorizationContext
	metrics *telemetry.Metrics
}

// NewAuthzHandler builds an authorization check handler.
func NewAuthzHandler(authz *usecase.AuthorizationContext, metrics *telemetry.Metrics) *AuthzHandler {
	return &AuthzHandler{authz: authz, metrics: metrics}
}

// RegisterRoutes attaches the check endpoint to the provided group.
func (h *AuthzHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/check", h.Check)
}

// Check evaluates exactly one of: a single permission, any-of, all-of, or a
// wildcard pattern.
func (h *AuthzHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid check payload"))
		return
	}

	kind, allowed, ok := h.evaluate(req)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "exactly one of permission, any_of, all_of, pattern is required"))
		return
	}

	if h.metrics != nil {
		outcome := "denied"
		if allowed {
			outcome = "allowed"
		}
		h.metrics.PermissionChecks.WithLabelValues(kind, outcome).Inc()
	}

	c.JSON(http.StatusOK, CheckResponse{
		Allowed: allowed,
		Loading: h.authz.IsLoading(),
	})
}

func (h *AuthzHandler) evaluate(req CheckRequest) (kind string, allowed, ok bool) {
	modes := 0
	if req.Permission != "" {
		modes++
	}
	if len(req.AnyOf) > 0 {
		modes++
	}
	if len(req.AllOf) > 0 {
		modes++
	}
	if req.Pattern != "" {
		modes++
	}
	if modes != 1 {
		return "", false, false
	}

	switch {
	case req.Permission != "":
		return "exact", h.authz.HasPermission(domain.PermissionCode(req.Permission)), true
	case len(req.AnyOf) > 0:
		return "any", h.authz.HasAnyPermission(permissionCodes(req.AnyOf)...), true
	case len(req.AllOf) > 0:
		return "all", h.authz.HasAllPermissions(permissionCodes(req.AllOf)...), true
	default:
		return "pattern", h.authz.HasPermissionPattern(req.Pattern), true
	}
}
