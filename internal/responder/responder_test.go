package responder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"messaging-platform/internal/ai"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/taxonomy"
	"messaging-platform/internal/tenants"
)

func reply(s string) ai.Generator {
	return ai.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) { return s, nil })
}

func smsRequest() Request {
	return Request{
		Body:    "Where is my order?",
		Tenant:  tenants.Tenant{ID: "t1", BusinessName: "Acme Bikes", KnowledgeBase: "Orders ship in 3 days."},
		Channel: conversations.ChannelSMS,
	}
}

func TestRespond_ParsesModelOutput(t *testing.T) {
	r := New(reply(`{"reply":"Your order ships in 3 days.","escalate":false,"intent":"order_status","sentiment":"neutral"}`), time.Second, nil)
	got := r.Respond(context.Background(), smsRequest())
	if got.Fallback || got.Text != "Your order ships in 3 days." || got.Escalate {
		t.Fatalf("unexpected reply: %+v", got)
	}
	if got.Intent != taxonomy.IntentOrderStatus || got.Sentiment != taxonomy.SentimentNeutral {
		t.Fatalf("unexpected annotations: %+v", got)
	}
}

func TestRespond_EscalateFlag(t *testing.T) {
	r := New(reply(`{"reply":"Connecting you with a teammate.","escalate":true,"sentiment":"very_negative"}`), time.Second, nil)
	got := r.Respond(context.Background(), smsRequest())
	if !got.Escalate || got.Fallback {
		t.Fatalf("expected escalate, got %+v", got)
	}
}

func TestRespond_UnknownAnnotationsKeepReply(t *testing.T) {
	r := New(reply(`{"reply":"A teammate will reach out about your refund.","escalate":true,"intent":"refund_request","sentiment":"meh"}`), time.Second, nil)
	got := r.Respond(context.Background(), smsRequest())
	if got.Fallback || !got.Escalate || got.Text != "A teammate will reach out about your refund." {
		t.Fatalf("expected model reply with escalate, got %+v", got)
	}
	if got.Intent != "" || got.Sentiment != "" {
		t.Fatalf("unknown annotations must be dropped, got %+v", got)
	}
}

func TestRespond_TruncatesToChannelLimit(t *testing.T) {
	long := strings.Repeat("word ", 100)
	r := New(reply(`{"reply":"`+long+`","escalate":false}`), time.Second, nil)
	got := r.Respond(context.Background(), smsRequest())
	if !got.Truncated || utf8.RuneCountInString(got.Text) > 160 {
		t.Fatalf("expected truncation to 160, got %d runes", utf8.RuneCountInString(got.Text))
	}
	if !strings.HasSuffix(got.Text, "...") {
		t.Fatalf("expected ellipsis, got %q", got.Text)
	}

	req := smsRequest()
	req.Channel = conversations.ChannelWhatsApp
	got = r.Respond(context.Background(), req)
	if got.Truncated {
		t.Fatalf("500 chars fit the whatsapp limit")
	}
}

func TestRespond_FallbackCases(t *testing.T) {
	cases := map[string]ai.Generator{
		"error": ai.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("status 503")
		}),
		"timeout": ai.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
		"not json":         reply("Sure, I can help with that!"),
		"missing escalate": reply(`{"reply":"hi"}`),
		"empty reply":      reply(`{"reply":"  ","escalate":false}`),
		"wrong type":       reply(`{"reply":"hi","escalate":"yes"}`),
	}
	for name, gen := range cases {
		got := New(gen, 30*time.Millisecond, nil).Respond(context.Background(), smsRequest())
		if !got.Fallback || got.Text != FallbackText || got.Escalate {
			t.Fatalf("%s: expected fallback, got %+v", name, got)
		}
	}
}

func TestRespond_PromptIncludesTenantAndHistory(t *testing.T) {
	var seen string
	gen := ai.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		seen = prompt
		return `{"reply":"ok","escalate":false}`, nil
	})
	req := smsRequest()
	req.Tenant.EscalationRules = "Escalate refund requests."
	req.History = HistoryFromMessages([]messages.Message{
		{Direction: messages.DirectionInbound, Sender: messages.SenderCustomer, Body: "hello"},
		{Direction: messages.DirectionOutbound, Sender: messages.SenderBot, Body: "hi, how can we help?"},
		{Direction: messages.DirectionOutbound, Sender: messages.SenderAgent, Body: "this is Sam"},
	})
	New(gen, time.Second, nil).Respond(context.Background(), req)

	for _, want := range []string{"Acme Bikes", "Orders ship in 3 days.", "Escalate refund requests.", "[customer] hello", "[assistant] hi, how can we help?", "[agent] this is Sam", "Where is my order?", "160", "order_status, appointment", "very_negative"} {
		if !strings.Contains(seen, want) {
			t.Fatalf("prompt missing %q:\n%s", want, seen)
		}
	}
	if strings.Index(seen, "[customer] hello") > strings.Index(seen, "[assistant] hi") {
		t.Fatalf("history must be oldest first")
	}
}

func TestTruncate(t *testing.T) {
	if s, cut := Truncate("short", 160); cut || s != "short" {
		t.Fatalf("unexpected truncation")
	}
	if s, cut := Truncate("héllo wörld", 8); !cut || s != "héllo..." {
		t.Fatalf("unexpected %q", s)
	}
	if s, cut := Truncate("abcdef", 2); !cut || s != "ab" {
		t.Fatalf("unexpected %q", s)
	}
}
