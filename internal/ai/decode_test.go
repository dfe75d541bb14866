package ai

import (
	"errors"
	"testing"
)

type shape struct {
	Intent    string  `json:"intent"`
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

func TestDecodeJSON_Strict(t *testing.T) {
	var s shape
	if err := DecodeJSON(`{"intent":"billing","sentiment":"neutral","score":0.9}`, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Intent != "billing" || s.Score != 0.9 {
		t.Fatalf("unexpected: %+v", s)
	}
}

func TestDecodeJSON_FencesAndProse(t *testing.T) {
	var s shape
	raw := "Sure! Here you go:\n```json\n{\"intent\":\"greeting\",\"sentiment\":\"positive\"}\n```"
	if err := DecodeJSON(raw, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Intent != "greeting" {
		t.Fatalf("unexpected: %+v", s)
	}
}

func TestDecodeJSON_RepairsTrailingComma(t *testing.T) {
	var s shape
	if err := DecodeJSON(`{"intent":"support","sentiment":"negative",}`, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Sentiment != "negative" {
		t.Fatalf("unexpected: %+v", s)
	}
}

func TestDecodeJSON_RejectsWrongShape(t *testing.T) {
	var s shape
	if err := DecodeJSON(`{"label":"billing"}`, &s); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if err := DecodeJSON(`{"intent": 42}`, &s); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse for wrong type, got %v", err)
	}
	if err := DecodeJSON("   ", &s); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
