package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. Events are never updated
// or deleted.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, tenantID string, f Filter) ([]Event, error)
}

// Service records compliance and conversation lifecycle events.
//
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogCompliance records an opt-out or opt-in keyword and the message that carried it.
func (s *Service) LogCompliance(ctx context.Context, tenantID string, typ EventType, contactID, conversationID, messageID, keyword string) error {
	return s.Append(ctx, Event{
		TenantID:       tenantID,
		Type:           typ,
		ContactID:      contactID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Message:        "keyword " + keyword,
		Metadata:       metadata(map[string]string{"keyword": keyword}),
	})
}

// LogTransition records a conversation status change.
func (s *Service) LogTransition(ctx context.Context, tenantID string, typ EventType, actor Actor, conversationID, reason string) error {
	return s.Append(ctx, Event{
		TenantID:       tenantID,
		Type:           typ,
		ActorUserID:    actor.UserID,
		ActorRole:      actor.Role,
		IPAddress:      actor.IP,
		ConversationID: conversationID,
		Message:        reason,
	})
}

// LogContactStatus records a manual subscription change by an agent.
func (s *Service) LogContactStatus(ctx context.Context, tenantID string, actor Actor, contactID, status string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeContactStatus,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		ContactID:   contactID,
		Message:     "status set to " + status,
	})
}

// LogDeliveryFailure records an outbound message the transport refused.
func (s *Service) LogDeliveryFailure(ctx context.Context, tenantID, conversationID, messageID, reason string) error {
	return s.Append(ctx, Event{
		TenantID:       tenantID,
		Type:           EventTypeDeliveryFailed,
		ConversationID: conversationID,
		MessageID:      messageID,
		Message:        reason,
	})
}

// LogStoreFailure records an inbound delivery that could not be processed.
func (s *Service) LogStoreFailure(ctx context.Context, tenantID, stage, externalID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.Append(ctx, Event{
		TenantID: tenantID,
		Type:     EventTypeStoreFailure,
		Message:  msg,
		Metadata: metadata(map[string]string{"stage": stage, "external_id": externalID}),
	})
}

// List returns a tenant's events matching f, newest first.
func (s *Service) List(ctx context.Context, tenantID string, f Filter) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if tenantID == "" {
		return nil, ErrInvalidEvent
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.repo.List(ctx, tenantID, f)
}

func metadata(m map[string]string) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
