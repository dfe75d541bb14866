// Package taxonomy holds the closed, tenant-agnostic classification vocabulary shared by the
// classifier, responder, conversations and messages.
package taxonomy

import "strings"

// Intent is what the customer is trying to achieve with a message.
type Intent string

const (
	IntentOrderStatus Intent = "order_status"
	IntentAppointment Intent = "appointment"
	IntentBilling     Intent = "billing"
	IntentSupport     Intent = "support"
	IntentComplaint   Intent = "complaint"
	IntentInfoRequest Intent = "info_request"
	IntentGreeting    Intent = "greeting"
	IntentThankYou    Intent = "thank_you"
	IntentEscalate    Intent = "escalate"
	IntentOther       Intent = "other"

	// IntentGeneral is never produced by a model; it marks a classification fallback.
	IntentGeneral Intent = "general"
)

// Intents lists every intent a model may return, in prompt order.
var Intents = []Intent{
	IntentOrderStatus,
	IntentAppointment,
	IntentBilling,
	IntentSupport,
	IntentComplaint,
	IntentInfoRequest,
	IntentGreeting,
	IntentThankYou,
	IntentEscalate,
	IntentOther,
}

// IntentNames joins Intents for use in model prompts.
func IntentNames() string {
	names := make([]string, len(Intents))
	for i, v := range Intents {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// ParseIntent accepts only model-producible intents. The fallback value is rejected.
func ParseIntent(s string) (Intent, bool) {
	v := Intent(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case IntentOrderStatus, IntentAppointment, IntentBilling, IntentSupport, IntentComplaint,
		IntentInfoRequest, IntentGreeting, IntentThankYou, IntentEscalate, IntentOther:
		return v, true
	case IntentGeneral:
		return "", false
	default:
		return "", false
	}
}

// Valid reports whether i may be stored, including the fallback value.
func (i Intent) Valid() bool {
	if i == IntentGeneral {
		return true
	}
	_, ok := ParseIntent(string(i))
	return ok
}

// Sentiment is the emotional tone of a message.
type Sentiment string

const (
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentNegative     Sentiment = "negative"
	SentimentVeryNegative Sentiment = "very_negative"
)

var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentVeryNegative}

func SentimentNames() string {
	names := make([]string, len(Sentiments))
	for i, v := range Sentiments {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

func ParseSentiment(s string) (Sentiment, bool) {
	v := Sentiment(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentVeryNegative:
		return v, true
	default:
		return "", false
	}
}

func (s Sentiment) Valid() bool {
	_, ok := ParseSentiment(string(s))
	return ok
}

// Severity orders sentiments from best (0) to worst (3). Unknown values rank as neutral.
func (s Sentiment) Severity() int {
	switch s {
	case SentimentPositive:
		return 0
	case SentimentNeutral:
		return 1
	case SentimentNegative:
		return 2
	case SentimentVeryNegative:
		return 3
	default:
		return 1
	}
}
