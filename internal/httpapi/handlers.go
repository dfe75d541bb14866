package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"messaging-platform/internal/audit"
	"messaging-platform/internal/auth"
	"messaging-platform/internal/contacts"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/engine"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/reporting"
	"messaging-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Agent is the operator surface of the engine.
type Agent interface {
	Resolve(ctx context.Context, tenantID, conversationID string, actor audit.Actor) (conversations.Conversation, error)
	Escalate(ctx context.Context, tenantID, conversationID string, actor audit.Actor) (conversations.Conversation, error)
	AgentReply(ctx context.Context, tenantID, conversationID string, actor audit.Actor, body string) (messages.Message, error)
	SetContactStatus(ctx context.Context, tenantID, contactID string, status contacts.Status, actor audit.Actor) (contacts.Contact, error)
	Transcript(ctx context.Context, tenantID, conversationID string, limit int) ([]messages.Message, error)
}

type Reports interface {
	ConversationsSummary(ctx context.Context, req reporting.ConversationsSummaryRequest) (reporting.ConversationsSummary, error)
}

type AuditLog interface {
	List(ctx context.Context, tenantID string, f audit.Filter) ([]audit.Event, error)
}

// Handlers groups the authenticated agent endpoints.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Agent   Agent
	Reports Reports
	Audit   AuditLog
}

// actor builds the audit actor from the verified identity. ok is false when the
// request carries no tenant, in which case a response has been written.
func actor(c *gin.Context) (string, audit.Actor, bool) {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil || id.TenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return "", audit.Actor{}, false
	}
	return id.TenantID, audit.Actor{UserID: id.UserID, Role: id.Role, IP: c.ClientIP()}, true
}

func (h Handlers) ResolveConversation(c *gin.Context) {
	if h.Agent == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return
	}
	tenantID, a, ok := actor(c)
	if !ok {
		return
	}
	conv, err := h.Agent.Resolve(c.Request.Context(), tenantID, c.Param("id"), a)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h Handlers) EscalateConversation(c *gin.Context) {
	if h.Agent == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return
	}
	tenantID, a, ok := actor(c)
	if !ok {
		return
	}
	conv, err := h.Agent.Escalate(c.Request.Context(), tenantID, c.Param("id"), a)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type replyRequest struct {
	Body string `json:"body"`
}

// Reply sends an agent-written message. A transport failure still returns 201 with
// delivery_status "failed".
func (h Handlers) Reply(c *gin.Context) {
	if h.Agent == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return
	}
	tenantID, a, ok := actor(c)
	if !ok {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	msg, err := h.Agent.AgentReply(c.Request.Context(), tenantID, c.Param("id"), a, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h Handlers) Messages(c *gin.Context) {
	if h.Agent == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return
	}
	tenantID, _, ok := actor(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	msgs, err := h.Agent.Transcript(c.Request.Context(), tenantID, c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []messages.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ConversationAudit lists escalations, resolutions, compliance changes and delivery
// failures recorded against one conversation, newest first.
func (h Handlers) ConversationAudit(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	tenantID, _, ok := actor(c)
	if !ok {
		return
	}
	f := audit.Filter{ConversationID: c.Param("id"), Type: audit.EventType(c.Query("type"))}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		f.Limit = n
	}
	evs, err := h.Audit.List(c.Request.Context(), tenantID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	if evs == nil {
		evs = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

type contactStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) SetContactStatus(c *gin.Context) {
	if h.Agent == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return
	}
	tenantID, a, ok := actor(c)
	if !ok {
		return
	}
	var req contactStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status, err := contacts.ParseStatus(req.Status)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status must be active or unsubscribed"})
		return
	}
	contact, err := h.Agent.SetContactStatus(c.Request.Context(), tenantID, c.Param("id"), status, a)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// ConversationsReport accepts optional RFC 3339 from/to and a channel filter.
func (h Handlers) ConversationsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	tenantID, _, ok := actor(c)
	if !ok {
		return
	}
	req := reporting.ConversationsSummaryRequest{TenantID: tenantID}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &req.Range.From}, {"to", &req.Range.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + p.name})
			return
		}
		*p.dst = t
	}
	if raw := c.Query("channel"); raw != "" {
		ch, err := conversations.ParseChannel(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
			return
		}
		req.Channel = ch
	}
	sum, err := h.Reports.ConversationsSummary(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversations.ErrNotFound), errors.Is(err, contacts.ErrNotFound), errors.Is(err, messages.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, conversations.ErrInvalidTransition), errors.Is(err, engine.ErrConversationClosed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "conversation is resolved"})
	case errors.Is(err, engine.ErrContactUnsubscribed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "contact is unsubscribed"})
	case errors.Is(err, conversations.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "concurrent update, retry"})
	case errors.Is(err, engine.ErrEmptyReply),
		errors.Is(err, conversations.ErrInvalidArgument),
		errors.Is(err, contacts.ErrInvalidArgument),
		errors.Is(err, messages.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
