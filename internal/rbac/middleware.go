package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-platform/internal/auth"
	"messaging-platform/pkg/logger"
)

// RequireTenant enforces the multi-tenant invariant: tenant_id must exist in context.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tid, err := auth.TenantID(c.Request.Context())
		if err != nil || tid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
			return
		}
		c.Next()
	}
}

// RequirePermission admits callers whose role grants p.
func RequirePermission(p Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !Can(role, p) {
			logger.FromGin(c).Warn("permission denied", "role", role, "permission", p)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// Tenant bundles the two checks every tenant-scoped route needs.
func Tenant(p Permission) []gin.HandlerFunc {
	return []gin.HandlerFunc{RequireTenant(), RequirePermission(p)}
}
