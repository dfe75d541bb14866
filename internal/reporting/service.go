package reporting

import (
	"context"
	"errors"
	"time"

	"messaging-platform/internal/conversations"
	"messaging-platform/internal/taxonomy"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations must filter by tenant.
type Repository interface {
	List(ctx context.Context, tenantID string, from, to time.Time) ([]conversations.Conversation, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

// ConversationsSummary aggregates conversation status, intent and sentiment.
// A zero range defaults to the last 30 days.
func (s *Service) ConversationsSummary(ctx context.Context, req ConversationsSummaryRequest) (ConversationsSummary, error) {
	if req.TenantID == "" {
		return ConversationsSummary{}, ErrInvalidRequest
	}
	if req.Range.To.IsZero() {
		req.Range.To = s.clock().UTC()
	}
	if req.Range.From.IsZero() {
		req.Range.From = req.Range.To.AddDate(0, 0, -30)
	}
	if !req.Range.From.Before(req.Range.To) {
		return ConversationsSummary{}, ErrInvalidRequest
	}

	convs, err := s.repo.List(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return ConversationsSummary{}, err
	}

	out := ConversationsSummary{
		TenantID:    req.TenantID,
		Range:       req.Range,
		ByChannel:   map[conversations.Channel]int{},
		ByIntent:    map[taxonomy.Intent]int{},
		BySentiment: map[taxonomy.Sentiment]int{},
	}
	negative := 0
	for _, c := range convs {
		if req.Channel != "" && c.Channel != req.Channel {
			continue
		}
		out.Total++
		out.ByChannel[c.Channel]++
		switch c.Status {
		case conversations.StatusOpen:
			out.Open++
		case conversations.StatusEscalated:
			out.Escalated++
		case conversations.StatusResolved:
			out.Resolved++
		}
		if c.Intent == "" {
			out.Unclassified++
		} else {
			out.ByIntent[c.Intent]++
		}
		if c.Sentiment != "" {
			out.BySentiment[c.Sentiment]++
			if c.Sentiment.Severity() >= taxonomy.SentimentNegative.Severity() {
				negative++
			}
		}
	}
	if out.Total > 0 {
		out.EscalationRate = float64(out.Escalated) / float64(out.Total)
		out.NegativeRate = float64(negative) / float64(out.Total)
	}
	return out, nil
}
