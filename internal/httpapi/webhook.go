package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"messaging-platform/internal/engine"
	"messaging-platform/internal/tenants"
	"messaging-platform/internal/transport"
	"messaging-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type TenantResolver interface {
	ResolveByNumber(ctx context.Context, to string) (string, error)
}

type InboundHandler interface {
	HandleInbound(ctx context.Context, in engine.Inbound) engine.Result
}

// TwilioWebhook converts the messaging webhook to an engine.Inbound and always
// acknowledges with empty TwiML. Replies go out through the REST API.
type TwilioWebhook struct {
	Tenants TenantResolver
	Engine  InboundHandler
	// Guard is optional; without it every delivery is processed.
	Guard InboundGuard

	AuthToken         string
	PublicBaseURL     string
	ValidateSignature bool

	Now func() time.Time
}

func (h TwilioWebhook) HandleInboundMessage(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Tenants == nil || h.Engine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "inbound engine not configured"})
		return
	}

	msg, err := transport.ParseTwilioInboundMessage(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if h.ValidateSignature {
		url := h.PublicBaseURL + c.Request.URL.RequestURI()
		if !transport.ValidateTwilioSignature(h.AuthToken, url, c.Request) {
			log.Warn("twilio signature rejected", "message_sid", msg.ExternalID)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	}

	ctx := c.Request.Context()
	tenantID, err := h.Tenants.ResolveByNumber(ctx, msg.To)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			log.Warn("inbound to unknown number", "to", msg.To, "message_sid", msg.ExternalID)
			ack(c)
			return
		}
		log.Error("tenant resolution failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "tenant lookup failed"})
		return
	}
	log = log.With("tenant_id", tenantID, "message_sid", msg.ExternalID)
	ctx = logger.With(ctx, log)

	if h.Guard != nil {
		release, ok, err := h.Guard.Acquire(ctx, tenantID)
		if err != nil {
			log.Warn("inbound concurrency cap unavailable", "err", err)
		} else if !ok {
			log.Warn("inbound concurrency cap reached")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
			return
		}
		defer release()

		if msg.ExternalID != "" {
			first, err := h.Guard.Claim(ctx, tenantID, msg.ExternalID)
			switch {
			case err != nil:
				log.Warn("inbound claim unavailable, relying on store dedup", "err", err)
			case !first:
				log.Info("duplicate delivery skipped")
				ack(c)
				return
			}
		}
	}

	res := h.Engine.HandleInbound(ctx, engine.Inbound{
		TenantID:   tenantID,
		From:       msg.From,
		To:         msg.To,
		Body:       msg.Body,
		Channel:    msg.Channel,
		ExternalID: msg.ExternalID,
		ReceivedAt: h.Now().UTC(),
	})
	if res.Outcome == engine.OutcomeFailed && h.Guard != nil && msg.ExternalID != "" {
		if err := h.Guard.Unclaim(context.WithoutCancel(ctx), tenantID, msg.ExternalID); err != nil {
			log.Warn("inbound claim release failed", "err", err)
		}
	}
	log.Info("inbound handled", "outcome", res.Outcome, "conversation_id", res.ConversationID)
	ack(c)
}

func ack(c *gin.Context) {
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, transport.RenderAck())
}
