package conversations

import (
	"errors"
	"time"

	"messaging-platform/internal/taxonomy"
)

// Conversation is a thread between one contact and the business on one channel.
//
// Invariants:
// - At most one conversation with status open or escalated exists per (contact_id, channel).
// - A resolved conversation is never reopened; new inbound traffic starts a new one.
// - Intent and sentiment hold the latest inbound annotation.
type Conversation struct {
	ID        string  `json:"id" db:"id"`
	TenantID  string  `json:"tenant_id" db:"tenant_id"`
	ContactID string  `json:"contact_id" db:"contact_id"`
	Channel   Channel `json:"channel" db:"channel"`

	// BusinessAddress is the tenant number the thread started on; agent replies are sent from it.
	BusinessAddress string `json:"business_address" db:"business_address"`

	Status    Status             `json:"status" db:"status"`
	Intent    taxonomy.Intent    `json:"intent,omitempty" db:"intent"`
	Sentiment taxonomy.Sentiment `json:"sentiment,omitempty" db:"sentiment"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Active reports whether the conversation still counts against the one-open-thread rule.
func (c Conversation) Active() bool { return c.Status.Active() }

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelRCS      Channel = "rcs"
	ChannelEmail    Channel = "email"
	ChannelVoice    Channel = "voice"
)

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelSMS, ChannelWhatsApp, ChannelRCS, ChannelEmail, ChannelVoice:
		return Channel(s), nil
	default:
		return "", ErrInvalidArgument
	}
}

type Status string

const (
	StatusOpen      Status = "open"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
)

func (s Status) Active() bool {
	return s == StatusOpen || s == StatusEscalated
}

// ActiveStatuses are the statuses covered by the uniqueness rule.
var ActiveStatuses = []Status{StatusOpen, StatusEscalated}

var (
	ErrNotFound          = errors.New("conversations: not found")
	ErrInvalidArgument   = errors.New("conversations: invalid argument")
	ErrInvalidTransition = errors.New("conversations: invalid transition")
	// ErrConflict is returned by Repository.Transition when the stored status no longer matches.
	ErrConflict = errors.New("conversations: status changed concurrently")
)
