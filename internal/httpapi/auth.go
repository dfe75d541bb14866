package httpapi

import (
	"net/http"
	"strings"
	"time"

	"messaging-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken exchanges a refresh token for a new pair. Initial pairs are minted
// out of band (msgctl token issue).
func RefreshToken(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
			return
		}
		pair, err := m.Refresh(strings.TrimSpace(req.RefreshToken), time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		c.JSON(http.StatusOK, pair)
	}
}
