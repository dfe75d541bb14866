package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"messaging-platform/internal/audit"
	"messaging-platform/internal/classifier"
	"messaging-platform/internal/compliance"
	"messaging-platform/internal/contacts"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/dispatch"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/responder"
	"messaging-platform/internal/taxonomy"
	"messaging-platform/pkg/logger"
)

// Inbound is one message delivered by the transport.
type Inbound struct {
	TenantID   string
	From       string
	To         string
	Body       string
	Channel    conversations.Channel
	ExternalID string
	ReceivedAt time.Time
}

type Outcome string

const (
	OutcomeReplied         Outcome = "replied"
	OutcomeFallbackReplied Outcome = "fallback_replied"
	OutcomeEscalated       Outcome = "escalated"
	OutcomeOptedOut        Outcome = "opted_out"
	OutcomeOptedIn         Outcome = "opted_in"
	OutcomeHelp            Outcome = "help"
	OutcomeSuppressed      Outcome = "suppressed"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeFailed          Outcome = "failed"
)

// Result reports what HandleInbound did. Acknowledged is always true: the transport
// must never be asked to redeliver.
type Result struct {
	Acknowledged bool
	Outcome      Outcome

	ContactID         string
	ConversationID    string
	InboundMessageID  string
	OutboundMessageID string

	Classification classifier.Result
	// Delivered is true when an outbound message was accepted by the transport.
	Delivered bool

	// Err is the cause of OutcomeFailed.
	Err error
}

// HandleInbound runs the full pipeline for one message. It never returns an error;
// fatal store failures are alerted and reported in Result.Err.
func (e *Engine) HandleInbound(ctx context.Context, in Inbound) Result {
	if in.Channel == "" {
		in.Channel = conversations.ChannelSMS
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = e.clock()
	}
	log := logger.From(ctx).With(
		slog.String("tenant_id", in.TenantID),
		slog.String("from", logger.MaskPhone(in.From)),
		slog.String("channel", string(in.Channel)),
		slog.String("external_id", in.ExternalID),
		slog.Time("received_at", in.ReceivedAt),
	)
	ctx = logger.With(ctx, log)

	tenant := e.tenantConfig(ctx, log, in.TenantID)

	contact, _, err := e.contacts.Resolve(ctx, in.TenantID, in.From)
	if err != nil {
		if errors.Is(err, contacts.ErrInvalidAddress) || errors.Is(err, contacts.ErrInvalidArgument) {
			log.Warn("inbound sender address rejected", "err", err)
			return Result{Acknowledged: true, Outcome: OutcomeFailed, Err: err}
		}
		return e.fail(ctx, in, "identity", err)
	}
	res := Result{Acknowledged: true, ContactID: contact.ID}
	log = log.With(slog.String("contact_id", contact.ID))

	conv, _, err := e.convs.Resolve(ctx, in.TenantID, contact.ID, in.Channel, in.To)
	if err != nil {
		return e.fail(ctx, in, "conversation", err)
	}
	res.ConversationID = conv.ID
	log = log.With(slog.String("conversation_id", conv.ID))
	ctx = logger.With(ctx, log)

	if in.ExternalID != "" {
		seen, err := e.msgs.SeenExternal(ctx, in.TenantID, in.ExternalID)
		if err != nil {
			log.Warn("dedup lookup failed", "err", err)
		} else if seen {
			log.Info("duplicate inbound delivery ignored")
			res.Outcome = OutcomeDuplicate
			return res
		}
	}

	if decision := compliance.Interpret(in.Body); decision.Matched() {
		return e.handleCompliance(ctx, log, in, contact, conv, decision, res)
	}

	cls := e.classifier.Classify(ctx, in.Body)
	res.Classification = cls
	log.Debug("classified", "stage", "classifier", "intent", cls.Intent, "sentiment", cls.Sentiment, "fallback", cls.Fallback)

	inbound, created, err := e.msgs.RecordInbound(ctx, messages.Message{
		TenantID:       in.TenantID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Type:           messages.TypeInbound,
		Body:           in.Body,
		Intent:         cls.Intent,
		Sentiment:      cls.Sentiment,
		ExternalID:     in.ExternalID,
	})
	switch {
	case err != nil:
		log.Error("record inbound failed", "err", err)
		e.alerter.Alert(ctx, Alert{TenantID: in.TenantID, Stage: "record_inbound", ExternalID: in.ExternalID, Error: err.Error(), At: e.clock().UTC()})
	case !created:
		log.Info("duplicate inbound delivery ignored")
		res.Outcome = OutcomeDuplicate
		return res
	default:
		res.InboundMessageID = inbound.ID
	}

	if err := e.convs.Annotate(ctx, in.TenantID, conv.ID, cls.Intent, cls.Sentiment); err != nil {
		log.Warn("annotate conversation failed", "err", err)
	}

	if !contact.CanReceiveAutomated() {
		log.Info("contact unsubscribed, reply suppressed")
		res.Outcome = OutcomeSuppressed
		return res
	}
	if conv.Status == conversations.StatusEscalated && tenant.PauseBotOnEscalation {
		log.Info("conversation escalated, bot paused")
		res.Outcome = OutcomeSuppressed
		return res
	}

	history, err := e.msgs.History(ctx, in.TenantID, conv.ID, e.historyWindow, inbound.Seq)
	if err != nil {
		log.Warn("history unavailable", "err", err)
		history = nil
	}

	reply := e.responder.Respond(ctx, responder.Request{
		Body:      in.Body,
		History:   responder.HistoryFromMessages(history),
		Tenant:    tenant,
		Channel:   in.Channel,
		Intent:    cls.Intent,
		Sentiment: cls.Sentiment,
	})
	log.Debug("reply drafted", "stage", "responder", "escalate", reply.Escalate, "fallback", reply.Fallback, "truncated", reply.Truncated)

	if cls.Fallback && reply.Sentiment != "" {
		intent := cls.Intent
		if reply.Intent != "" {
			intent = reply.Intent
		}
		if err := e.convs.Annotate(ctx, in.TenantID, conv.ID, intent, reply.Sentiment); err != nil {
			log.Warn("annotate conversation failed", "err", err)
		}
	}

	escalated := false
	if reply.Escalate || cls.Intent == taxonomy.IntentEscalate {
		escalated = e.escalate(ctx, log, in.TenantID, conv.ID, escalationReason(reply, cls))
	}

	msgType := messages.TypeAutoReply
	if reply.Fallback {
		msgType = messages.TypeFallbackReply
	}
	e.send(ctx, log, &res, dispatch.Request{
		TenantID:       in.TenantID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        in.Channel,
		From:           in.To,
		To:             contact.Phone,
		Body:           reply.Text,
		Sender:         messages.SenderBot,
		Type:           msgType,
	})

	switch {
	case escalated:
		res.Outcome = OutcomeEscalated
	case reply.Fallback:
		res.Outcome = OutcomeFallbackReplied
	default:
		res.Outcome = OutcomeReplied
	}
	return res
}

func (e *Engine) handleCompliance(ctx context.Context, log *slog.Logger, in Inbound, contact contacts.Contact, conv conversations.Conversation, d compliance.Decision, res Result) Result {
	log = log.With(slog.String("stage", "compliance"), slog.String("keyword", d.Keyword))

	var (
		msgType messages.Type
		outcome Outcome
		status  contacts.Status
		event   audit.EventType
	)
	switch d.Action {
	case compliance.ActionOptOut:
		msgType, outcome, status, event = messages.TypeOptOut, OutcomeOptedOut, contacts.StatusUnsubscribed, audit.EventTypeOptOut
	case compliance.ActionOptIn:
		msgType, outcome, status, event = messages.TypeOptIn, OutcomeOptedIn, contacts.StatusActive, audit.EventTypeOptIn
	default:
		msgType, outcome = messages.TypeHelp, OutcomeHelp
	}

	// Bookkeeping failures below are logged; the confirmation is still sent.
	inbound, created, err := e.msgs.RecordInbound(ctx, messages.Message{
		TenantID:       in.TenantID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Type:           msgType,
		Body:           in.Body,
		ExternalID:     in.ExternalID,
	})
	switch {
	case err != nil:
		log.Error("record compliance inbound failed", "err", err)
	case !created:
		log.Info("duplicate inbound delivery ignored")
		res.Outcome = OutcomeDuplicate
		return res
	default:
		res.InboundMessageID = inbound.ID
	}

	if status != "" {
		if _, err := e.contacts.SetStatus(ctx, in.TenantID, contact.ID, status); err != nil {
			log.Error("update contact status failed", "status", status, "err", err)
		}
		e.auditf(log, string(event), func(a *audit.Service) error {
			return a.LogCompliance(ctx, in.TenantID, event, contact.ID, conv.ID, inbound.ID, d.Keyword)
		})
	}

	// Compliance confirmations go out regardless of the contact's subscription status.
	e.send(ctx, log, &res, dispatch.Request{
		TenantID:       in.TenantID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        in.Channel,
		From:           in.To,
		To:             contact.Phone,
		Body:           d.Reply,
		Sender:         messages.SenderBot,
		Type:           msgType,
	})
	log.Info("compliance keyword handled", "action", d.Action)
	res.Outcome = outcome
	return res
}

func (e *Engine) send(ctx context.Context, log *slog.Logger, res *Result, req dispatch.Request) {
	out, err := e.dispatcher.Send(ctx, req)
	res.Delivered = out.Delivered
	if err != nil {
		log.Error("outbound not recorded", "err", err, "delivered", out.Delivered)
		return
	}
	res.OutboundMessageID = out.Message.ID
	if !out.Delivered {
		reason := ""
		if out.SendErr != nil {
			reason = out.SendErr.Error()
		}
		e.auditf(log, string(audit.EventTypeDeliveryFailed), func(a *audit.Service) error {
			return a.LogDeliveryFailure(ctx, req.TenantID, req.ConversationID, out.Message.ID, reason)
		})
	}
}

// escalate moves the conversation to escalated and reports whether it is escalated afterwards.
func (e *Engine) escalate(ctx context.Context, log *slog.Logger, tenantID, convID, reason string) bool {
	conv, changed, err := e.convs.Escalate(ctx, tenantID, convID)
	if err != nil {
		log.Error("escalation failed", "err", err)
		return false
	}
	if changed {
		log.Info("conversation escalated", "reason", reason)
		e.auditf(log, string(audit.EventTypeEscalated), func(a *audit.Service) error {
			return a.LogTransition(ctx, tenantID, audit.EventTypeEscalated, audit.Actor{}, convID, reason)
		})
	}
	return conv.Status == conversations.StatusEscalated
}

func escalationReason(reply responder.Reply, cls classifier.Result) string {
	var reasons []string
	if reply.Escalate {
		reasons = append(reasons, "responder requested escalation")
	}
	if cls.Intent == taxonomy.IntentEscalate {
		reasons = append(reasons, "customer asked for a human")
	}
	return strings.Join(reasons, "; ")
}

// fail handles a store failure that leaves no identity or thread to work with.
func (e *Engine) fail(ctx context.Context, in Inbound, stage string, err error) Result {
	e.alerter.Alert(ctx, Alert{
		TenantID:   in.TenantID,
		Stage:      stage,
		ExternalID: in.ExternalID,
		Error:      err.Error(),
		At:         e.clock().UTC(),
	})
	e.auditf(logger.From(ctx), string(audit.EventTypeStoreFailure), func(a *audit.Service) error {
		return a.LogStoreFailure(ctx, in.TenantID, stage, in.ExternalID, err)
	})
	return Result{Acknowledged: true, Outcome: OutcomeFailed, Err: err}
}
