package reporting

import (
	"time"

	"messaging-platform/internal/conversations"
	"messaging-platform/internal/taxonomy"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ConversationsSummaryRequest asks for metrics over conversations created in Range.
// Tenant isolation: TenantID is required.
type ConversationsSummaryRequest struct {
	TenantID string                `json:"tenant_id"`
	Range    TimeRange             `json:"range"`
	Channel  conversations.Channel `json:"channel,omitempty"`
}

type ConversationsSummary struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`

	Total     int `json:"total"`
	Open      int `json:"open"`
	Escalated int `json:"escalated"`
	Resolved  int `json:"resolved"`

	ByChannel   map[conversations.Channel]int `json:"by_channel"`
	ByIntent    map[taxonomy.Intent]int       `json:"by_intent"`
	BySentiment map[taxonomy.Sentiment]int    `json:"by_sentiment"`

	// Unclassified counts conversations without any inbound annotation yet.
	Unclassified int `json:"unclassified"`

	// EscalationRate is the share of conversations that are escalated now.
	EscalationRate float64 `json:"escalation_rate"`
	// NegativeRate is the share with negative or very negative latest sentiment.
	NegativeRate float64 `json:"negative_rate"`
}
