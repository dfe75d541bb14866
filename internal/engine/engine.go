// Package engine turns one inbound message into an identity, a conversation, a
// compliance or AI-driven decision, an outbound action and a durable record.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"messaging-platform/internal/audit"
	"messaging-platform/internal/classifier"
	"messaging-platform/internal/contacts"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/dispatch"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/responder"
	"messaging-platform/internal/tenants"
)

// Classifier labels a message. It must not fail; failures become fallback values.
type Classifier interface {
	Classify(ctx context.Context, body string) classifier.Result
}

// Responder drafts a reply. It must not fail; failures become fallback values.
type Responder interface {
	Respond(ctx context.Context, req responder.Request) responder.Reply
}

// Sender delivers and records outbound messages.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) (dispatch.DeliveryResult, error)
}

// Deps are the collaborators of an Engine. Audit and Alerter are optional.
type Deps struct {
	Tenants       *tenants.Service
	Contacts      *contacts.Service
	Conversations *conversations.Service
	Messages      *messages.Service
	Classifier    Classifier
	Responder     Responder
	Dispatcher    Sender
	Audit         *audit.Service
	Alerter       Alerter
}

type Options struct {
	// HistoryWindow is the number of prior turns given to the responder.
	HistoryWindow int
}

type Engine struct {
	tenants    *tenants.Service
	contacts   *contacts.Service
	convs      *conversations.Service
	msgs       *messages.Service
	classifier Classifier
	responder  Responder
	dispatcher Sender
	audit      *audit.Service
	alerter    Alerter

	historyWindow int
	clock         func() time.Time
}

func New(d Deps, opts Options) (*Engine, error) {
	if d.Contacts == nil || d.Conversations == nil || d.Messages == nil {
		return nil, errors.New("engine: contacts, conversations and messages are required")
	}
	if d.Classifier == nil || d.Responder == nil || d.Dispatcher == nil {
		return nil, errors.New("engine: classifier, responder and dispatcher are required")
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	alerter := d.Alerter
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &Engine{
		tenants:       d.Tenants,
		contacts:      d.Contacts,
		convs:         d.Conversations,
		msgs:          d.Messages,
		classifier:    d.Classifier,
		responder:     d.Responder,
		dispatcher:    d.Dispatcher,
		audit:         d.Audit,
		alerter:       alerter,
		historyWindow: opts.HistoryWindow,
		clock:         time.Now,
	}, nil
}

// tenantConfig never fails: a missing or unreadable tenant degrades to defaults.
func (e *Engine) tenantConfig(ctx context.Context, log *slog.Logger, tenantID string) tenants.Tenant {
	if e.tenants == nil {
		return tenants.Default(tenantID)
	}
	t, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		log.Warn("tenant config unavailable, using defaults", "err", err)
		return tenants.Default(tenantID)
	}
	return t
}

// auditf runs fn against the audit service when configured, logging failures.
func (e *Engine) auditf(log *slog.Logger, what string, fn func(a *audit.Service) error) {
	if e.audit == nil {
		return
	}
	if err := fn(e.audit); err != nil {
		log.Warn("audit failed", "event", what, "err", err)
	}
}
