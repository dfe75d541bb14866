// Package transport adapts the SMS/WhatsApp/RCS provider. No provider SDK calls happen
// outside this package.
package transport

import (
	"context"
	"errors"

	"messaging-platform/internal/conversations"
)

// Transport sends outbound messages. Implementations must be safe for concurrent use.
type Transport interface {
	Name() string
	Send(ctx context.Context, req OutboundRequest) (SendResult, error)
}

// OutboundRequest addresses are plain E.164; adapters add channel prefixes.
type OutboundRequest struct {
	Channel conversations.Channel `json:"channel"`
	From    string                `json:"from"`
	To      string                `json:"to"`
	Body    string                `json:"body"`
}

// SendResult is the provider's acknowledgment of an accepted message.
type SendResult struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// InboundMessage is a provider-agnostic inbound delivery.
type InboundMessage struct {
	ExternalID string                `json:"external_id"`
	AccountID  string                `json:"account_id,omitempty"`
	Channel    conversations.Channel `json:"channel"`
	From       string                `json:"from"`
	To         string                `json:"to"`
	Body       string                `json:"body"`
	NumMedia   int                   `json:"num_media"`
}

var (
	ErrInvalidRequest     = errors.New("transport: invalid request")
	ErrUnsupportedChannel = errors.New("transport: unsupported channel")
)

func (r OutboundRequest) validate() error {
	if r.To == "" || r.From == "" || r.Body == "" {
		return ErrInvalidRequest
	}
	return nil
}
