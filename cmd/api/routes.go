package main

import (
	"context"
	"net/http"

	"messaging-platform/internal/auth"
	"messaging-platform/internal/httpapi"
	"messaging-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	auth     *auth.Manager
	authMW   gin.HandlerFunc
	webhook  httpapi.TwilioWebhook
	handlers httpapi.Handlers
	ready    func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if d.ready != nil {
			if err := d.ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public, signature-checked when enabled).
	r.POST("/webhooks/twilio/messages", d.webhook.HandleInboundMessage)

	if d.auth != nil {
		r.POST("/v1/auth/refresh", httpapi.RefreshToken(d.auth))
	}

	v1 := r.Group("/v1")
	v1.Use(d.authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			id, err := auth.IdentityFrom(c.Request.Context())
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "tenant_id": id.TenantID, "role": id.Role})
		})

		convs := v1.Group("/conversations")
		convs.Use(rbac.RequireTenant())
		{
			convs.GET("/:id/messages", rbac.RequirePermission(rbac.PermConversationsRead), d.handlers.Messages)
			convs.GET("/:id/audit", rbac.RequirePermission(rbac.PermAuditRead), d.handlers.ConversationAudit)

			write := rbac.RequirePermission(rbac.PermConversationsWrite)
			convs.POST("/:id/reply", write, d.handlers.Reply)
			convs.POST("/:id/escalate", write, d.handlers.EscalateConversation)
			convs.POST("/:id/resolve", write, d.handlers.ResolveConversation)
		}

		contacts := v1.Group("/contacts")
		contacts.Use(rbac.Tenant(rbac.PermContactsWrite)...)
		{
			contacts.PATCH("/:id/status", d.handlers.SetContactStatus)
		}

		reports := v1.Group("/reports")
		reports.Use(rbac.Tenant(rbac.PermReportsRead)...)
		{
			reports.GET("/conversations", d.handlers.ConversationsReport)
		}
	}
}
