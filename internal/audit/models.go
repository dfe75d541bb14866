package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
// - Recording is best-effort; callers never block the messaging pipeline on audit failures.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the agent causing the event; empty for pipeline-originated events.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	ContactID      string `json:"contact_id,omitempty" db:"contact_id"`
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`
	MessageID      string `json:"message_id,omitempty" db:"message_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeOptOut         EventType = "opt_out"
	EventTypeOptIn          EventType = "opt_in"
	EventTypeEscalated      EventType = "escalated"
	EventTypeResolved       EventType = "resolved"
	EventTypeDeliveryFailed EventType = "delivery_failed"
	EventTypeStoreFailure   EventType = "store_failure"
	EventTypeContactStatus  EventType = "contact_status"
)

// Actor identifies who caused an event. The zero value is the pipeline itself.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Type           EventType
	ConversationID string
	ContactID      string
	Since          time.Time
	Limit          int
}

const maxListLimit = 200

func (f Filter) matches(e Event) bool {
	switch {
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.ConversationID != "" && e.ConversationID != f.ConversationID:
		return false
	case f.ContactID != "" && e.ContactID != f.ContactID:
		return false
	case !f.Since.IsZero() && e.CreatedAt.Before(f.Since):
		return false
	}
	return true
}
