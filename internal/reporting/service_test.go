package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"messaging-platform/internal/conversations"
	"messaging-platform/internal/taxonomy"
)

func seed(t *testing.T) (*conversations.Service, time.Time) {
	t.Helper()
	svc := conversations.NewService(conversations.NewMemoryRepo())
	ctx := context.Background()

	c1, _, _ := svc.Resolve(ctx, "t1", "p1", conversations.ChannelSMS, "")
	c2, _, _ := svc.Resolve(ctx, "t1", "p2", conversations.ChannelSMS, "")
	c3, _, _ := svc.Resolve(ctx, "t1", "p3", conversations.ChannelWhatsApp, "")
	_, _, _ = svc.Resolve(ctx, "t2", "p9", conversations.ChannelSMS, "")

	if err := svc.Annotate(ctx, "t1", c1.ID, taxonomy.IntentOrderStatus, taxonomy.SentimentNegative); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if err := svc.Annotate(ctx, "t1", c2.ID, taxonomy.IntentGreeting, taxonomy.SentimentPositive); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if _, _, err := svc.Escalate(ctx, "t1", c1.ID); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if _, _, err := svc.MarkResolved(ctx, "t1", c2.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_ = c3
	return svc, time.Now().UTC()
}

func TestConversationsSummary(t *testing.T) {
	convs, now := seed(t)
	svc := NewService(convs)

	got, err := svc.ConversationsSummary(context.Background(), ConversationsSummaryRequest{
		TenantID: "t1",
		Range:    TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.Total != 3 || got.Open != 1 || got.Escalated != 1 || got.Resolved != 1 {
		t.Fatalf("unexpected status counts: %+v", got)
	}
	if got.ByIntent[taxonomy.IntentOrderStatus] != 1 || got.Unclassified != 1 {
		t.Fatalf("unexpected intent counts: %+v", got.ByIntent)
	}
	if got.ByChannel[conversations.ChannelWhatsApp] != 1 {
		t.Fatalf("unexpected channel counts: %+v", got.ByChannel)
	}
	if got.EscalationRate < 0.33 || got.EscalationRate > 0.34 {
		t.Fatalf("unexpected escalation rate %v", got.EscalationRate)
	}
	if got.NegativeRate < 0.33 || got.NegativeRate > 0.34 {
		t.Fatalf("unexpected negative rate %v", got.NegativeRate)
	}
}

func TestConversationsSummary_ChannelFilterAndDefaults(t *testing.T) {
	convs, _ := seed(t)
	svc := NewService(convs)

	got, err := svc.ConversationsSummary(context.Background(), ConversationsSummaryRequest{TenantID: "t1", Channel: conversations.ChannelSMS})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.Total != 2 {
		t.Fatalf("expected 2 sms conversations, got %d", got.Total)
	}
	if got.Range.From.IsZero() || got.Range.To.IsZero() {
		t.Fatalf("expected default range")
	}
}

func TestConversationsSummary_Validation(t *testing.T) {
	svc := NewService(conversations.NewService(conversations.NewMemoryRepo()))
	if _, err := svc.ConversationsSummary(context.Background(), ConversationsSummaryRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	now := time.Now()
	_, err := svc.ConversationsSummary(context.Background(), ConversationsSummaryRequest{TenantID: "t1", Range: TimeRange{From: now, To: now.Add(-time.Hour)}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for inverted range, got %v", err)
	}
}
