package conversations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"messaging-platform/internal/taxonomy"
)

// Service is the conversation resolver plus the status state machine.
type Service struct {
	repo  Repository
	clock func() time.Time
	newID func() string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now, newID: uuid.NewString}
}

// Resolve returns the contact's active conversation on channel, opening a new one when
// none exists. It never changes the status of an existing conversation.
func (s *Service) Resolve(ctx context.Context, tenantID, contactID string, channel Channel, businessAddress string) (Conversation, bool, error) {
	if tenantID == "" || contactID == "" {
		return Conversation{}, false, ErrInvalidArgument
	}
	if _, err := ParseChannel(string(channel)); err != nil {
		return Conversation{}, false, err
	}
	now := s.clock().UTC()
	return s.repo.FindOrCreateActive(ctx, Conversation{
		ID:              s.newID(),
		TenantID:        tenantID,
		ContactID:       contactID,
		Channel:         channel,
		BusinessAddress: businessAddress,
		Status:          StatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (Conversation, error) {
	if tenantID == "" || id == "" {
		return Conversation{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, tenantID, id)
}

// Annotate stores the latest inbound intent and sentiment on the conversation.
func (s *Service) Annotate(ctx context.Context, tenantID, id string, intent taxonomy.Intent, sentiment taxonomy.Sentiment) error {
	if !intent.Valid() || !sentiment.Valid() {
		return ErrInvalidArgument
	}
	return s.repo.Annotate(ctx, tenantID, id, intent, sentiment, s.clock().UTC())
}

// Touch bumps updated_at after outbound activity.
func (s *Service) Touch(ctx context.Context, tenantID, id string) error {
	return s.repo.Touch(ctx, tenantID, id, s.clock().UTC())
}

// Apply runs ev through the state machine against the stored status.
// A lost race against another writer is retried from the fresh status.
// changed is false when the event was a no-op (escalating an escalated thread).
func (s *Service) Apply(ctx context.Context, tenantID, id string, ev Event) (conv Conversation, changed bool, err error) {
	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cur, err := s.Get(ctx, tenantID, id)
		if err != nil {
			return Conversation{}, false, err
		}
		next, err := Transition(cur.Status, ev)
		if err != nil {
			return cur, false, err
		}
		if next == cur.Status {
			return cur, false, nil
		}
		out, err := s.repo.Transition(ctx, tenantID, id, []Status{cur.Status}, next, s.clock().UTC())
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return Conversation{}, false, err
		}
		return out, true, nil
	}
	return Conversation{}, false, ErrConflict
}

func (s *Service) Escalate(ctx context.Context, tenantID, id string) (Conversation, bool, error) {
	return s.Apply(ctx, tenantID, id, EventEscalate)
}

func (s *Service) MarkResolved(ctx context.Context, tenantID, id string) (Conversation, bool, error) {
	return s.Apply(ctx, tenantID, id, EventResolve)
}

// List returns the tenant's conversations created in [from, to).
func (s *Service) List(ctx context.Context, tenantID string, from, to time.Time) ([]Conversation, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.List(ctx, tenantID, from, to)
}
