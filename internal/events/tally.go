package events

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Kind is the category of a user-channel event.
type Kind string

const (
	KindTrade Kind = "trade"
	KindOrder Kind = "order"
	KindOther Kind = "other"
)

const idPreviewLen = 16

// TypeOf returns event_type, falling back to type, then "unknown".
func TypeOf(event map[string]any) string {
	if s := field(event, "event_type"); s != "" {
		return s
	}
	if s := field(event, "type"); s != "" {
		return s
	}
	return "unknown"
}

// Classify sorts a user-channel event into trades, orders or other.
func Classify(event map[string]any) Kind {
	eventType := field(event, "event_type")
	subtype := field(event, "type")
	switch {
	case eventType == "trade" || subtype == "TRADE":
		return KindTrade
	case eventType == "order" || subtype == "PLACEMENT" || subtype == "UPDATE" || subtype == "CANCELLATION":
		return KindOrder
	default:
		return KindOther
	}
}

// Counts is a snapshot of a Tally.
type Counts struct {
	Total  int
	Trades int
	Orders int
}

// Tally counts and prints user-channel trade and order events.
type Tally struct {
	logger  *log.Logger
	verbose bool
	counts  Counts
}

func NewTally(logger *log.Logger, verbose bool) *Tally {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Tally{logger: logger, verbose: verbose}
}

// Counts returns the current totals. Call it after ingestion stops.
func (t *Tally) Counts() Counts {
	return t.counts
}

func (t *Tally) HandleEvent(event map[string]any, latencyMs *float64) {
	t.counts.Total++
	switch Classify(event) {
	case KindTrade:
		t.counts.Trades++
		t.logger.Printf("TRADE #%d: %s %s %s@%s %s [%s]%s",
			t.counts.Total, field(event, "status"), field(event, "side"), field(event, "size"),
			field(event, "price"), field(event, "outcome"), idPreview(event), latencySuffix(latencyMs))
		if t.verbose {
			t.logger.Printf("  market=%s taker_order=%s maker_orders=%d",
				orNA(field(event, "market")), truncate(orNA(field(event, "taker_order_id")), 32), listLen(event, "maker_orders"))
		}
	case KindOrder:
		t.counts.Orders++
		t.logger.Printf("ORDER #%d: %s %s %s@%s %s (matched: %s) [%s]%s",
			t.counts.Total, field(event, "type"), field(event, "side"), field(event, "original_size"),
			field(event, "price"), field(event, "outcome"), field(event, "size_matched"), idPreview(event), latencySuffix(latencyMs))
		if t.verbose {
			t.logger.Printf("  market=%s owner=%s", orNA(field(event, "market")), orNA(field(event, "owner")))
		}
	default:
		if t.verbose {
			t.logger.Printf("unknown event type: %s", TypeOf(event))
		}
	}
}

func field(event map[string]any, key string) string {
	v, ok := event[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func listLen(event map[string]any, key string) int {
	list, _ := event[key].([]any)
	return len(list)
}

func idPreview(event map[string]any) string {
	id := field(event, "id")
	if id == "" {
		return ""
	}
	return truncate(id, idPreviewLen) + "..."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func latencySuffix(latencyMs *float64) string {
	if latencyMs == nil || *latencyMs == 0 {
		return ""
	}
	return fmt.Sprintf(" | Latency: %.0fms", *latencyMs)
}
