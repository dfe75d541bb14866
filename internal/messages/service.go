package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service records conversation turns.
type Service struct {
	repo  Repository
	clock func() time.Time
	newID func() string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now, newID: uuid.NewString}
}

// RecordInbound stores a customer message. created is false when the same transport
// delivery (ExternalID) was already stored; the returned message is then the zero value.
func (s *Service) RecordInbound(ctx context.Context, m Message) (Message, bool, error) {
	m.Direction = DirectionInbound
	m.Sender = SenderCustomer
	if m.Type == "" {
		m.Type = TypeInbound
	}
	if m.DeliveryStatus == "" {
		m.DeliveryStatus = DeliveryReceived
	}
	s.stamp(&m)
	if err := m.validate(); err != nil {
		return Message{}, false, err
	}
	return s.repo.AppendInbound(ctx, m)
}

// RecordOutbound stores a bot or agent message along with its delivery result.
func (s *Service) RecordOutbound(ctx context.Context, m Message) (Message, error) {
	m.Direction = DirectionOutbound
	if m.Sender == "" {
		m.Sender = SenderBot
	}
	s.stamp(&m)
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return s.repo.Append(ctx, m)
}

func (s *Service) SeenExternal(ctx context.Context, tenantID, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	return s.repo.SeenExternal(ctx, tenantID, externalID)
}

// History returns the last limit turns before beforeSeq, oldest first.
func (s *Service) History(ctx context.Context, tenantID, conversationID string, limit int, beforeSeq int64) ([]Message, error) {
	if tenantID == "" || conversationID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		return nil, nil
	}
	return s.repo.ListRecent(ctx, tenantID, conversationID, limit, beforeSeq)
}

// Transcript returns up to limit most recent messages of a conversation, oldest first.
func (s *Service) Transcript(ctx context.Context, tenantID, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	return s.History(ctx, tenantID, conversationID, limit, 0)
}

func (s *Service) stamp(m *Message) {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock().UTC()
	}
}
