package conversations

import (
	"context"
	"time"

	"messaging-platform/internal/taxonomy"
)

// Repository is the persistence contract for conversations.
//
// FindOrCreateActive MUST be one atomic conditional insert keyed on
// (contact_id, channel) restricted to active statuses. It returns the existing active
// conversation or inserts c, never both, even under concurrent callers.
//
// Transition is a compare-and-set: it updates status only when the stored status is one
// of from, otherwise it returns ErrConflict (or ErrNotFound).
type Repository interface {
	FindOrCreateActive(ctx context.Context, c Conversation) (Conversation, bool, error)
	Get(ctx context.Context, tenantID, id string) (Conversation, error)
	Annotate(ctx context.Context, tenantID, id string, intent taxonomy.Intent, sentiment taxonomy.Sentiment, at time.Time) error
	Transition(ctx context.Context, tenantID, id string, from []Status, to Status, at time.Time) (Conversation, error)
	Touch(ctx context.Context, tenantID, id string, at time.Time) error
	List(ctx context.Context, tenantID string, from, to time.Time) ([]Conversation, error)
}
