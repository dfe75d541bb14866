// Package dispatch sends outbound replies and records them as conversation turns.
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"messaging-platform/internal/conversations"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/transport"
	"messaging-platform/pkg/logger"
)

// Recorder stores outbound turns.
type Recorder interface {
	RecordOutbound(ctx context.Context, m messages.Message) (messages.Message, error)
}

// Toucher bumps a conversation's updated_at.
type Toucher interface {
	Touch(ctx context.Context, tenantID, id string) error
}

// Request is one outbound send on behalf of a conversation.
type Request struct {
	TenantID       string
	ConversationID string
	ContactID      string
	Channel        conversations.Channel
	From           string // business address
	To             string // contact address
	Body           string
	Sender         messages.Sender
	Type           messages.Type
}

// DeliveryResult describes what happened to one outbound message.
type DeliveryResult struct {
	Message   messages.Message
	Delivered bool
	// SendErr is the transport failure, if any. It is recorded on the message, not returned.
	SendErr error
}

type Dispatcher struct {
	transport transport.Transport
	messages  Recorder
	convs     Toucher
}

func New(t transport.Transport, rec Recorder, convs Toucher) *Dispatcher {
	return &Dispatcher{transport: t, messages: rec, convs: convs}
}

var ErrInvalidRequest = errors.New("dispatch: invalid request")

// Send delivers req and records the outbound message whatever the transport outcome.
// A transport failure yields DeliveryStatus=failed and a nil error; the returned error is
// reserved for failing to record the message, which loses only this reply.
func (d *Dispatcher) Send(ctx context.Context, req Request) (DeliveryResult, error) {
	if req.TenantID == "" || req.ConversationID == "" || req.Body == "" {
		return DeliveryResult{}, ErrInvalidRequest
	}
	if req.Sender == "" {
		req.Sender = messages.SenderBot
	}
	log := logger.From(ctx).With(
		slog.String("stage", "dispatch"),
		slog.String("conversation_id", req.ConversationID),
		slog.String("to", logger.MaskPhone(req.To)),
	)

	out := messages.Message{
		TenantID:       req.TenantID,
		ConversationID: req.ConversationID,
		ContactID:      req.ContactID,
		Sender:         req.Sender,
		Type:           req.Type,
		Body:           req.Body,
	}

	res, sendErr := d.transport.Send(ctx, transport.OutboundRequest{
		Channel: req.Channel,
		From:    req.From,
		To:      req.To,
		Body:    req.Body,
	})
	if sendErr != nil {
		log.Warn("outbound send failed", "transport", d.transport.Name(), "err", sendErr)
		out.DeliveryStatus = messages.DeliveryFailed
		out.DeliveryError = sendErr.Error()
	} else {
		out.DeliveryStatus = messages.DeliverySent
		out.ExternalID = res.ExternalID
	}

	stored, err := d.messages.RecordOutbound(ctx, out)
	if err != nil {
		log.Error("record outbound failed", "err", err, "delivered", sendErr == nil)
		return DeliveryResult{Delivered: sendErr == nil, SendErr: sendErr}, err
	}
	if d.convs != nil {
		if err := d.convs.Touch(ctx, req.TenantID, req.ConversationID); err != nil {
			log.Warn("touch conversation failed", "err", err)
		}
	}
	return DeliveryResult{Message: stored, Delivered: sendErr == nil, SendErr: sendErr}, nil
}
