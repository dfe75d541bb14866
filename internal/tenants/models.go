package tenants

import (
	"errors"
	"time"

	"messaging-platform/internal/conversations"
)

// Tenant is the business account that owns contacts and conversations, plus the
// configuration the responder needs to speak on its behalf.
type Tenant struct {
	ID              string `json:"id" db:"id"`
	BusinessName    string `json:"business_name" db:"business_name"`
	Persona         string `json:"persona,omitempty" db:"persona"`
	Industry        string `json:"industry,omitempty" db:"industry"`
	KnowledgeBase   string `json:"knowledge_base,omitempty" db:"knowledge_base"`
	EscalationRules string `json:"escalation_rules,omitempty" db:"escalation_rules"`

	// MaxReplyLength lowers the per-channel reply cap when > 0. It never raises it.
	MaxReplyLength int `json:"max_reply_length,omitempty" db:"max_reply_length"`

	// PauseBotOnEscalation silences automated replies while a thread is escalated.
	PauseBotOnEscalation bool `json:"pause_bot_on_escalation" db:"pause_bot_on_escalation"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

var channelReplyLimits = map[conversations.Channel]int{
	conversations.ChannelSMS:      160,
	conversations.ChannelWhatsApp: 1000,
	conversations.ChannelRCS:      1000,
	conversations.ChannelEmail:    4000,
	conversations.ChannelVoice:    500,
}

// ReplyLimit is the maximum reply length in characters for channel.
func (t Tenant) ReplyLimit(ch conversations.Channel) int {
	limit, ok := channelReplyLimits[ch]
	if !ok {
		limit = channelReplyLimits[conversations.ChannelSMS]
	}
	if t.MaxReplyLength > 0 {
		return min(t.MaxReplyLength, limit)
	}
	return limit
}

// Default is the configuration used when a tenant record cannot be loaded.
func Default(id string) Tenant {
	return Tenant{ID: id, BusinessName: "our team"}
}

var (
	ErrNotFound        = errors.New("tenants: not found")
	ErrInvalidArgument = errors.New("tenants: invalid argument")
	// ErrNumberTaken is returned when a business number already belongs to another tenant.
	ErrNumberTaken = errors.New("tenants: number assigned to another tenant")
)
