// Package responder generates the automated reply to an inbound message.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"messaging-platform/internal/ai"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/taxonomy"
	"messaging-platform/internal/tenants"
)

// FallbackText is sent when the model cannot produce a usable reply.
const FallbackText = "Thanks for your message! We received it and will follow up shortly."

// Turn is one entry of the conversation history given to the model.
type Turn struct {
	Direction messages.Direction
	Sender    messages.Sender
	Body      string
}

// Request carries everything the model may use to answer.
type Request struct {
	Body      string
	History   []Turn // oldest first, excluding Body
	Tenant    tenants.Tenant
	Channel   conversations.Channel
	Intent    taxonomy.Intent
	Sentiment taxonomy.Sentiment
}

// Reply is the responder's decision.
type Reply struct {
	Text     string
	Escalate bool
	// Sentiment and Intent are the model's reading of the message, empty when not given.
	Sentiment taxonomy.Sentiment
	Intent    taxonomy.Intent
	Fallback  bool
	Truncated bool
}

func FallbackReply() Reply {
	return Reply{Text: FallbackText, Fallback: true}
}

type Responder struct {
	gen     ai.Generator
	timeout time.Duration
	log     *slog.Logger
}

func New(gen ai.Generator, timeout time.Duration, log *slog.Logger) *Responder {
	if log == nil {
		log = slog.Default()
	}
	return &Responder{gen: gen, timeout: timeout, log: log}
}

type modelResponse struct {
	Reply     *string `json:"reply"`
	Escalate  *bool   `json:"escalate"`
	Intent    string  `json:"intent"`
	Sentiment string  `json:"sentiment"`
}

// Respond never fails. The reply text is always capped to the tenant's channel limit,
// including the fallback text.
func (r *Responder) Respond(ctx context.Context, req Request) Reply {
	stage := ai.Stage[Reply]{
		Name:     "responder",
		Timeout:  r.timeout,
		Fallback: FallbackReply,
		Logger:   r.log,
	}
	out, _ := stage.Run(ctx, func(ctx context.Context) (Reply, error) {
		if r.gen == nil {
			return Reply{}, fmt.Errorf("responder: no generator configured")
		}
		raw, err := r.gen.Generate(ctx, buildPrompt(req))
		if err != nil {
			return Reply{}, err
		}
		return parse(raw)
	})

	limit := req.Tenant.ReplyLimit(req.Channel)
	if text, cut := Truncate(out.Text, limit); cut {
		out.Text = text
		out.Truncated = true
	}
	return out
}

func parse(raw string) (Reply, error) {
	var resp modelResponse
	if err := ai.DecodeJSON(raw, &resp); err != nil {
		return Reply{}, err
	}
	if resp.Reply == nil || resp.Escalate == nil {
		return Reply{}, fmt.Errorf("%w: missing reply or escalate", ai.ErrMalformedResponse)
	}
	text := strings.TrimSpace(*resp.Reply)
	if text == "" {
		return Reply{}, fmt.Errorf("%w: empty reply", ai.ErrMalformedResponse)
	}
	out := Reply{Text: text, Escalate: *resp.Escalate}
	// intent and sentiment are optional annotations; values outside the vocabulary are dropped.
	if s, ok := taxonomy.ParseSentiment(resp.Sentiment); ok {
		out.Sentiment = s
	}
	if i, ok := taxonomy.ParseIntent(resp.Intent); ok {
		out.Intent = i
	}
	return out, nil
}

const ellipsis = "..."

// Truncate caps s at limit characters (runes), marking the cut with "...".
func Truncate(s string, limit int) (string, bool) {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s, false
	}
	if limit <= len(ellipsis) {
		return string(rs[:limit]), true
	}
	head := strings.TrimRight(string(rs[:limit-len(ellipsis)]), " \t\n")
	return head + ellipsis, true
}

// HistoryFromMessages converts stored messages into model turns.
func HistoryFromMessages(ms []messages.Message) []Turn {
	out := make([]Turn, 0, len(ms))
	for _, m := range ms {
		out = append(out, Turn{Direction: m.Direction, Sender: m.Sender, Body: m.Body})
	}
	return out
}

func buildPrompt(req Request) string {
	t := req.Tenant
	var b strings.Builder
	fmt.Fprintf(&b, "You reply to customer text messages on behalf of %s.\n", t.BusinessName)
	if t.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", t.Industry)
	}
	if t.Persona != "" {
		fmt.Fprintf(&b, "Persona: %s\n", t.Persona)
	}
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Keep the reply under %d characters.\n", t.ReplyLimit(req.Channel))
	b.WriteString("- Use only the knowledge below. Never invent prices, dates, order details or policies.\n")
	b.WriteString("- Set escalate to true when you cannot help or the customer is in strong distress.\n")
	if t.EscalationRules != "" {
		fmt.Fprintf(&b, "- Escalation rules: %s\n", t.EscalationRules)
	}
	if t.KnowledgeBase != "" {
		b.WriteString("\nKnowledge base:\n")
		b.WriteString(t.KnowledgeBase)
		b.WriteString("\n")
	}
	if req.Intent != "" {
		fmt.Fprintf(&b, "\nDetected intent: %s, sentiment: %s\n", req.Intent, req.Sentiment)
	}
	if len(req.History) > 0 {
		b.WriteString("\nConversation so far (oldest first):\n")
		for _, turn := range req.History {
			fmt.Fprintf(&b, "[%s] %s\n", speaker(turn), turn.Body)
		}
	}
	b.WriteString("\nNew customer message:\n")
	b.WriteString(req.Body)
	b.WriteString("\n\nReturn only a JSON object with these fields:\n")
	b.WriteString("  \"reply\": the text message to send\n")
	b.WriteString("  \"escalate\": true or false\n")
	fmt.Fprintf(&b, "  \"intent\": one of [%s]\n", taxonomy.IntentNames())
	fmt.Fprintf(&b, "  \"sentiment\": one of [%s]\n", taxonomy.SentimentNames())
	return b.String()
}

func speaker(t Turn) string {
	if t.Direction == messages.DirectionInbound {
		return "customer"
	}
	if t.Sender == messages.SenderAgent {
		return "agent"
	}
	return "assistant"
}
