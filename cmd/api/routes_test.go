package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-platform/internal/auth"
	"messaging-platform/internal/config"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/httpapi"
	"messaging-platform/internal/reporting"
)

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "messaging",
		JWTAudience:     "agents",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	r := gin.New()
	registerRoutes(r, routeDeps{
		auth:   m,
		authMW: auth.RequireAccessToken(m),
		handlers: httpapi.Handlers{
			Reports: reporting.NewService(conversations.NewService(conversations.NewMemoryRepo())),
		},
	})
	return r, m
}

func get(r *gin.Engine, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	r, _ := newTestRouter(t)
	if code := get(r, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := get(r, "/readyz", ""); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRoutes_ReportsRequireAnalystOrOwner(t *testing.T) {
	r, m := newTestRouter(t)

	if code := get(r, "/v1/reports/conversations", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	agent, err := m.IssuePair(time.Now(), "u1", "t1", "agent")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code := get(r, "/v1/reports/conversations", agent.AccessToken); code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent, got %d", code)
	}

	analyst, err := m.IssuePair(time.Now(), "u2", "t1", "analyst")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code := get(r, "/v1/reports/conversations", analyst.AccessToken); code != http.StatusOK {
		t.Fatalf("expected 200 for analyst, got %d", code)
	}
	if code := get(r, "/v1/me", analyst.AccessToken); code != http.StatusOK {
		t.Fatalf("expected 200 for /v1/me, got %d", code)
	}
}

func TestRoutes_RefreshTokenIsNotAccepted(t *testing.T) {
	r, m := newTestRouter(t)
	pair, err := m.IssuePair(time.Now(), "u1", "t1", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code := get(r, "/v1/me", pair.RefreshToken); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", code)
	}
}

func TestRoutes_RefreshIssuesNewPair(t *testing.T) {
	r, m := newTestRouter(t)
	pair, err := m.IssuePair(time.Now(), "u1", "t1", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", strings.NewReader(`{"refresh_token":"`+pair.RefreshToken+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "access_token") {
		t.Fatalf("expected new pair, got %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", strings.NewReader(`{"refresh_token":"`+pair.AccessToken+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for access token, got %d", w.Code)
	}
}

func TestRoutes_AnalystCannotWriteConversations(t *testing.T) {
	r, m := newTestRouter(t)
	analyst, err := m.IssuePair(time.Now(), "u2", "t1", "analyst")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/reply", strings.NewReader(`{"body":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+analyst.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for analyst reply, got %d", w.Code)
	}
}
