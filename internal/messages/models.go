package messages

import (
	"errors"
	"time"

	"messaging-platform/internal/taxonomy"
)

// Message is one turn of a conversation. Messages are append-only: the pipeline never
// updates or deletes a stored row.
//
// Seq is assigned by the store and is strictly increasing in insertion order; it is the
// ordering key within a conversation (CreatedAt may tie at clock resolution).
type Message struct {
	ID             string    `json:"id" db:"id"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	ContactID      string    `json:"contact_id" db:"contact_id"`
	Direction      Direction `json:"direction" db:"direction"`
	Sender         Sender    `json:"sender" db:"sender"`
	Type           Type      `json:"type" db:"type"`
	Body           string    `json:"body" db:"body"`

	// Intent and Sentiment are set on inbound messages only.
	Intent    taxonomy.Intent    `json:"intent,omitempty" db:"intent"`
	Sentiment taxonomy.Sentiment `json:"sentiment,omitempty" db:"sentiment"`

	// ExternalID is the transport's message id (inbound: provider sid, outbound: send id).
	ExternalID     string         `json:"external_id,omitempty" db:"external_id"`
	DeliveryStatus DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	DeliveryError  string         `json:"delivery_error,omitempty" db:"delivery_error"`

	Seq       int64     `json:"seq" db:"seq"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderBot      Sender = "bot"
	SenderAgent    Sender = "agent"
)

// Type records why a message exists.
type Type string

const (
	TypeInbound       Type = "inbound"
	TypeOptOut        Type = "opt_out"
	TypeOptIn         Type = "opt_in"
	TypeHelp          Type = "help"
	TypeAutoReply     Type = "auto_reply"
	TypeFallbackReply Type = "fallback_reply"
	TypeAgentReply    Type = "agent_reply"
)

type DeliveryStatus string

const (
	DeliveryReceived DeliveryStatus = "received"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
)

var (
	ErrNotFound        = errors.New("messages: not found")
	ErrInvalidArgument = errors.New("messages: invalid argument")
)

func (m Message) validate() error {
	if m.ID == "" || m.TenantID == "" || m.ConversationID == "" {
		return ErrInvalidArgument
	}
	switch {
	case m.Direction == DirectionInbound && m.Sender == SenderCustomer:
	case m.Direction == DirectionOutbound && (m.Sender == SenderBot || m.Sender == SenderAgent):
	default:
		return ErrInvalidArgument
	}
	if m.Direction == DirectionOutbound && (m.Intent != "" || m.Sentiment != "") {
		return ErrInvalidArgument
	}
	return nil
}
