package engine

import (
	"context"
	"errors"
	"strings"

	"messaging-platform/internal/audit"
	"messaging-platform/internal/contacts"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/dispatch"
	"messaging-platform/internal/messages"
	"messaging-platform/pkg/logger"
)

var (
	ErrConversationClosed  = errors.New("engine: conversation is resolved")
	ErrContactUnsubscribed = errors.New("engine: contact is unsubscribed")
	ErrEmptyReply          = errors.New("engine: reply body is empty")
)

// Resolve closes a conversation on behalf of an agent.
func (e *Engine) Resolve(ctx context.Context, tenantID, conversationID string, actor audit.Actor) (conversations.Conversation, error) {
	conv, _, err := e.convs.MarkResolved(ctx, tenantID, conversationID)
	if err != nil {
		return conversations.Conversation{}, err
	}
	log := logger.From(ctx).With("conversation_id", conversationID, "actor_user_id", actor.UserID)
	log.Info("conversation resolved")
	e.auditf(log, string(audit.EventTypeResolved), func(a *audit.Service) error {
		return a.LogTransition(ctx, tenantID, audit.EventTypeResolved, actor, conversationID, "resolved by agent")
	})
	return conv, nil
}

// Escalate hands a conversation to humans manually. Escalating twice is a no-op.
func (e *Engine) Escalate(ctx context.Context, tenantID, conversationID string, actor audit.Actor) (conversations.Conversation, error) {
	conv, changed, err := e.convs.Escalate(ctx, tenantID, conversationID)
	if err != nil {
		return conversations.Conversation{}, err
	}
	if changed {
		log := logger.From(ctx).With("conversation_id", conversationID, "actor_user_id", actor.UserID)
		e.auditf(log, string(audit.EventTypeEscalated), func(a *audit.Service) error {
			return a.LogTransition(ctx, tenantID, audit.EventTypeEscalated, actor, conversationID, "escalated by agent")
		})
	}
	return conv, nil
}

// AgentReply sends a human-written message into an active conversation.
// The returned message carries the delivery status; a transport failure is not an error.
func (e *Engine) AgentReply(ctx context.Context, tenantID, conversationID string, actor audit.Actor, body string) (messages.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return messages.Message{}, ErrEmptyReply
	}
	conv, err := e.convs.Get(ctx, tenantID, conversationID)
	if err != nil {
		return messages.Message{}, err
	}
	if !conv.Active() {
		return messages.Message{}, ErrConversationClosed
	}
	contact, err := e.contacts.Get(ctx, tenantID, conv.ContactID)
	if err != nil {
		return messages.Message{}, err
	}
	if !contact.CanReceiveAutomated() {
		return messages.Message{}, ErrContactUnsubscribed
	}

	log := logger.From(ctx).With("conversation_id", conv.ID, "actor_user_id", actor.UserID)
	out, err := e.dispatcher.Send(ctx, dispatch.Request{
		TenantID:       tenantID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        conv.Channel,
		From:           conv.BusinessAddress,
		To:             contact.Phone,
		Body:           body,
		Sender:         messages.SenderAgent,
		Type:           messages.TypeAgentReply,
	})
	if err != nil {
		return messages.Message{}, err
	}
	if !out.Delivered {
		e.auditf(log, string(audit.EventTypeDeliveryFailed), func(a *audit.Service) error {
			return a.LogDeliveryFailure(ctx, tenantID, conv.ID, out.Message.ID, out.Message.DeliveryError)
		})
	}
	return out.Message, nil
}

// SetContactStatus is the manual counterpart of the STOP/START keywords.
func (e *Engine) SetContactStatus(ctx context.Context, tenantID, contactID string, status contacts.Status, actor audit.Actor) (contacts.Contact, error) {
	c, err := e.contacts.SetStatus(ctx, tenantID, contactID, status)
	if err != nil {
		return contacts.Contact{}, err
	}
	log := logger.From(ctx).With("contact_id", contactID, "actor_user_id", actor.UserID)
	e.auditf(log, string(audit.EventTypeContactStatus), func(a *audit.Service) error {
		return a.LogContactStatus(ctx, tenantID, actor, contactID, string(status))
	})
	return c, nil
}

// Transcript returns a conversation's messages, oldest first.
func (e *Engine) Transcript(ctx context.Context, tenantID, conversationID string, limit int) ([]messages.Message, error) {
	if _, err := e.convs.Get(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	return e.msgs.Transcript(ctx, tenantID, conversationID, limit)
}
