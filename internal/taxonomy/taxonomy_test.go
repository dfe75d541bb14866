package taxonomy

import "testing"

func TestParseIntent(t *testing.T) {
	for _, i := range Intents {
		got, ok := ParseIntent(" " + string(i) + " ")
		if !ok || got != i {
			t.Fatalf("expected %q to parse, got %q %v", i, got, ok)
		}
	}
	if _, ok := ParseIntent("ORDER_STATUS"); !ok {
		t.Fatalf("expected case-insensitive parse")
	}
	if _, ok := ParseIntent("general"); ok {
		t.Fatalf("fallback intent must not be accepted from a model")
	}
	if _, ok := ParseIntent("refund"); ok {
		t.Fatalf("unknown intent must be rejected")
	}
	if !IntentGeneral.Valid() {
		t.Fatalf("fallback intent must be storable")
	}
}

func TestParseSentimentAndSeverity(t *testing.T) {
	if s, ok := ParseSentiment("Very_Negative"); !ok || s != SentimentVeryNegative {
		t.Fatalf("unexpected parse: %q %v", s, ok)
	}
	if _, ok := ParseSentiment("angry"); ok {
		t.Fatalf("expected rejection")
	}
	if !(SentimentPositive.Severity() < SentimentNeutral.Severity() &&
		SentimentNeutral.Severity() < SentimentNegative.Severity() &&
		SentimentNegative.Severity() < SentimentVeryNegative.Severity()) {
		t.Fatalf("severity must be strictly ordered")
	}
}
