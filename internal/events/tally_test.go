package events

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		event map[string]any
		want  Kind
	}{
		{map[string]any{"event_type": "trade"}, KindTrade},
		{map[string]any{"type": "TRADE"}, KindTrade},
		{map[string]any{"event_type": "order"}, KindOrder},
		{map[string]any{"type": "CANCELLATION"}, KindOrder},
		{map[string]any{"event_type": "book"}, KindOther},
		{map[string]any{}, KindOther},
	}
	for _, tc := range cases {
		if got := Classify(tc.event); got != tc.want {
			t.Fatalf("Classify(%v): expected %s got %s", tc.event, tc.want, got)
		}
	}
}

func TestTypeOfFallsBack(t *testing.T) {
	if got := TypeOf(map[string]any{"type": "PLACEMENT"}); got != "PLACEMENT" {
		t.Fatalf("expected PLACEMENT got %s", got)
	}
	if got := TypeOf(map[string]any{}); got != "unknown" {
		t.Fatalf("expected unknown got %s", got)
	}
}

func TestTallyCountsAndPrints(t *testing.T) {
	var buf bytes.Buffer
	tally := NewTally(log.New(&buf, "", 0), false)

	latency := 42.4
	tally.HandleEvent(map[string]any{
		"event_type": "trade",
		"status":     "MATCHED",
		"side":       "BUY",
		"size":       "10",
		"price":      0.55,
		"outcome":    "Yes",
		"id":         "0123456789abcdefXYZ",
	}, &latency)
	tally.HandleEvent(map[string]any{"type": "PLACEMENT", "side": "SELL"}, nil)
	tally.HandleEvent(map[string]any{"event_type": "book"}, nil)

	counts := tally.Counts()
	if counts.Total != 3 || counts.Trades != 1 || counts.Orders != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	out := buf.String()
	if !strings.Contains(out, "TRADE #1: MATCHED BUY 10@0.55 Yes [0123456789abcdef...] | Latency: 42ms") {
		t.Fatalf("unexpected trade line:\n%s", out)
	}
	if !strings.Contains(out, "ORDER #2: PLACEMENT SELL") {
		t.Fatalf("unexpected order line:\n%s", out)
	}
	if strings.Contains(out, "unknown event type") {
		t.Fatalf("unknown events should only be printed in verbose mode")
	}
}

func TestMultiFansOut(t *testing.T) {
	var calls int
	h := HandlerFunc(func(event map[string]any, latencyMs *float64) { calls++ })
	NewMulti(h, nil, h, NoopHandler{}).HandleEvent(map[string]any{}, nil)
	if calls != 2 {
		t.Fatalf("expected 2 calls got %d", calls)
	}
}
