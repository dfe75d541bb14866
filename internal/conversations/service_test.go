package conversations

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"messaging-platform/internal/taxonomy"
)

func newTestService(repo Repository) *Service {
	svc := NewService(repo)
	var tick int64
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second) }
	var seq int64
	svc.newID = func() string { return fmt.Sprintf("conv-%d", atomic.AddInt64(&seq, 1)) }
	return svc
}

func TestService_ResolveReusesActiveConversation(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	ctx := context.Background()

	c1, created, err := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "+15550001111")
	if err != nil || !created {
		t.Fatalf("expected new conversation, created=%v err=%v", created, err)
	}
	if c1.Status != StatusOpen {
		t.Fatalf("expected open, got %s", c1.Status)
	}

	c2, created, err := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "+15550001111")
	if err != nil || created || c2.ID != c1.ID {
		t.Fatalf("expected reuse of %s, got %s created=%v err=%v", c1.ID, c2.ID, created, err)
	}

	other, _, err := svc.Resolve(ctx, "t1", "contact-1", ChannelWhatsApp, "+15550001111")
	if err != nil || other.ID == c1.ID {
		t.Fatalf("expected separate thread per channel")
	}
}

func TestService_ResolveKeepsEscalatedThread(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	ctx := context.Background()

	c1, _, _ := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "")
	if _, changed, err := svc.Escalate(ctx, "t1", c1.ID); err != nil || !changed {
		t.Fatalf("escalate: changed=%v err=%v", changed, err)
	}
	c2, created, err := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "")
	if err != nil || created || c2.ID != c1.ID || c2.Status != StatusEscalated {
		t.Fatalf("expected escalated thread to be reused, got %+v created=%v err=%v", c2, created, err)
	}
}

func TestService_ResolvedThenReopenCreatesNewConversation(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	c1, _, _ := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "")
	if _, _, err := svc.MarkResolved(ctx, "t1", c1.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	c2, created, err := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "")
	if err != nil || !created {
		t.Fatalf("expected new conversation, created=%v err=%v", created, err)
	}
	if c2.ID == c1.ID {
		t.Fatalf("resolved conversation must not be reopened")
	}

	old, err := svc.Get(ctx, "t1", c1.ID)
	if err != nil || old.Status != StatusResolved {
		t.Fatalf("expected c1 to stay resolved, got %+v err=%v", old, err)
	}
	if got := len(repo.ForContact("contact-1")); got != 2 {
		t.Fatalf("expected 2 conversations, got %d", got)
	}
}

func TestService_ResolveConcurrentKeepsOneActive(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo)

	var g errgroup.Group
	ids := make([]string, 32)
	for i := range ids {
		i := i
		g.Go(func() error {
			c, _, err := svc.Resolve(context.Background(), "t1", "contact-1", ChannelSMS, "")
			ids[i] = c.ID
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected a single active conversation, saw %s and %s", ids[0], id)
		}
	}
	if got := len(repo.ForContact("contact-1")); got != 1 {
		t.Fatalf("expected 1 conversation, got %d", got)
	}
}

func TestService_ApplyRejectsResolved(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	ctx := context.Background()

	c, _, _ := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "")
	if _, _, err := svc.MarkResolved(ctx, "t1", c.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, _, err := svc.MarkResolved(ctx, "t1", c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, _, err := svc.Escalate(ctx, "t1", c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_EscalateTwiceIsNoop(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	ctx := context.Background()

	c, _, _ := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "")
	if _, changed, _ := svc.Escalate(ctx, "t1", c.ID); !changed {
		t.Fatalf("expected first escalate to change status")
	}
	out, changed, err := svc.Escalate(ctx, "t1", c.ID)
	if err != nil || changed || out.Status != StatusEscalated {
		t.Fatalf("expected no-op, got %+v changed=%v err=%v", out, changed, err)
	}
}

func TestService_AnnotateAndTenantIsolation(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	ctx := context.Background()

	c, _, _ := svc.Resolve(ctx, "t1", "contact-1", ChannelSMS, "")
	if err := svc.Annotate(ctx, "t1", c.ID, taxonomy.IntentGeneral, taxonomy.SentimentNeutral); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	got, _ := svc.Get(ctx, "t1", c.ID)
	if got.Intent != taxonomy.IntentGeneral || got.Sentiment != taxonomy.SentimentNeutral {
		t.Fatalf("annotation not stored: %+v", got)
	}
	if err := svc.Annotate(ctx, "t1", c.ID, taxonomy.Intent("bogus"), taxonomy.SentimentNeutral); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid intent to be rejected, got %v", err)
	}
	if _, err := svc.Get(ctx, "t2", c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected tenant isolation, got %v", err)
	}
}

func TestService_ResolveRejectsUnknownChannel(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	if _, _, err := svc.Resolve(context.Background(), "t1", "contact-1", Channel("fax"), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
