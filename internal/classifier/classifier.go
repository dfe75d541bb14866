// Package classifier labels an inbound message with an intent and a sentiment.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"messaging-platform/internal/ai"
	"messaging-platform/internal/taxonomy"
)

// Result is the classification of one message.
type Result struct {
	Intent     taxonomy.Intent    `json:"intent"`
	Sentiment  taxonomy.Sentiment `json:"sentiment"`
	Confidence float64            `json:"confidence"`
	Summary    string             `json:"summary,omitempty"`
	// Fallback is true when the model was not usable and fixed values were substituted.
	Fallback bool `json:"fallback"`
}

// FallbackResult is used on any model failure.
func FallbackResult() Result {
	return Result{Intent: taxonomy.IntentGeneral, Sentiment: taxonomy.SentimentNeutral, Fallback: true}
}

type Classifier struct {
	gen     ai.Generator
	timeout time.Duration
	log     *slog.Logger
}

func New(gen ai.Generator, timeout time.Duration, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{gen: gen, timeout: timeout, log: log}
}

type modelResponse struct {
	Intent     *string  `json:"intent"`
	Sentiment  *string  `json:"sentiment"`
	Confidence *float64 `json:"confidence"`
	Summary    string   `json:"summary"`
}

// Classify never fails: errors, timeouts and malformed output yield FallbackResult.
func (c *Classifier) Classify(ctx context.Context, body string) Result {
	stage := ai.Stage[Result]{
		Name:     "classifier",
		Timeout:  c.timeout,
		Fallback: FallbackResult,
		Logger:   c.log,
	}
	out, _ := stage.Run(ctx, func(ctx context.Context) (Result, error) {
		if c.gen == nil {
			return Result{}, fmt.Errorf("classifier: no generator configured")
		}
		raw, err := c.gen.Generate(ctx, buildPrompt(body))
		if err != nil {
			return Result{}, err
		}
		return parse(raw)
	})
	return out
}

func parse(raw string) (Result, error) {
	var resp modelResponse
	if err := ai.DecodeJSON(raw, &resp); err != nil {
		return Result{}, err
	}
	if resp.Intent == nil || resp.Sentiment == nil {
		return Result{}, fmt.Errorf("%w: missing intent or sentiment", ai.ErrMalformedResponse)
	}
	intent, ok := taxonomy.ParseIntent(*resp.Intent)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown intent %q", ai.ErrMalformedResponse, *resp.Intent)
	}
	sentiment, ok := taxonomy.ParseSentiment(*resp.Sentiment)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown sentiment %q", ai.ErrMalformedResponse, *resp.Sentiment)
	}
	r := Result{Intent: intent, Sentiment: sentiment, Summary: strings.TrimSpace(resp.Summary)}
	if resp.Confidence != nil {
		conf := *resp.Confidence
		if conf < 0 || conf > 1 {
			return Result{}, fmt.Errorf("%w: confidence %v out of range", ai.ErrMalformedResponse, conf)
		}
		r.Confidence = conf
	}
	return r, nil
}

func buildPrompt(body string) string {
	var b strings.Builder
	b.WriteString("You classify customer text messages sent to a business.\n")
	b.WriteString("Return only a JSON object with these fields:\n")
	fmt.Fprintf(&b, "  \"intent\": one of [%s]\n", taxonomy.IntentNames())
	fmt.Fprintf(&b, "  \"sentiment\": one of [%s]\n", taxonomy.SentimentNames())
	b.WriteString("  \"confidence\": number between 0 and 1\n")
	b.WriteString("  \"summary\": one short sentence describing the request\n")
	b.WriteString("Use \"escalate\" only when the customer asks for a human or threatens to leave.\n\n")
	b.WriteString("Message:\n")
	b.WriteString(body)
	return b.String()
}
