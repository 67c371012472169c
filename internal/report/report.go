// Package report renders end-of-run latency summaries as plain text.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/freakspace/polymarket-latency/internal/events"
	"github.com/freakspace/polymarket-latency/internal/ingest"
	"github.com/freakspace/polymarket-latency/internal/stats"
)

const ruleWidth = 60

// Options control presentation only; the numbers are unaffected.
type Options struct {
	NoColor bool
	// AdjustedAnomalies also runs the variance and burst checks over the
	// offset-corrected series.
	AdjustedAnomalies bool
}

// Input is the collected data of one run.
type Input struct {
	RunID           string
	Termination     ingest.Termination
	Raw             []float64
	EventTimestamps []float64
	Adjusted        []float64
	Offset          float64
	HasOffset       bool
}

// FromState copies what the report needs out of a finished run.
func FromState(runID string, state *ingest.RunState) Input {
	offset, ok := state.Offset()
	return Input{
		RunID:           runID,
		Termination:     state.Termination,
		Raw:             state.RawLatencies(),
		EventTimestamps: state.EventTimestamps(),
		Adjusted:        append([]float64(nil), state.Adjusted...),
		Offset:          offset,
		HasOffset:       ok,
	}
}

// Empty reports the "no data" outcome.
func (in Input) Empty() bool {
	return len(in.Raw) == 0
}

type printer struct {
	w      *bufio.Writer
	warn   *color.Color
	header *color.Color
}

func newPrinter(w io.Writer, opts Options) *printer {
	p := &printer{
		w:      bufio.NewWriter(w),
		warn:   color.New(color.FgYellow, color.Bold),
		header: color.New(color.Bold),
	}
	if opts.NoColor {
		p.warn.DisableColor()
		p.header.DisableColor()
	}
	return p
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) warnf(format string, args ...any) {
	p.line("%s", p.warn.Sprintf(format, args...))
}

func (p *printer) rule(ch string) {
	p.line("%s", strings.Repeat(ch, ruleWidth))
}

func (p *printer) title(name string) {
	p.line("")
	p.rule("=")
	p.line("%s", p.header.Sprint(name))
	p.rule("=")
}

// Market writes the latency report for a market run. It always writes
// something: an empty run produces the explicit no-data outcome.
func Market(w io.Writer, in Input, opts Options) error {
	p := newPrinter(w, opts)

	if in.Empty() {
		p.line("")
		p.line("No latency data collected.")
		if in.Termination != "" {
			p.line("Run ended: %s", in.Termination)
		}
		return p.w.Flush()
	}

	raw, err := stats.Analyze(in.Raw, in.EventTimestamps)
	if err != nil {
		return fmt.Errorf("analyze raw latencies: %w", err)
	}

	p.title("LATENCY STATISTICS")
	if in.RunID != "" {
		p.line("Run: %s (%s)", in.RunID, in.Termination)
	}

	if !in.HasOffset {
		p.line("")
		p.line("LATENCY MEASUREMENTS (raw, no calibration):")
		p.summary(raw.Summary, true)
		p.anomalies(raw)
		p.rule("=")
		return p.w.Flush()
	}

	p.line("")
	p.line("RAW MEASUREMENTS (before calibration):")
	p.summary(raw.Summary, false)
	p.anomalies(raw)

	p.line("")
	p.rule("-")
	p.line("ADJUSTED MEASUREMENTS (clock offset removed):")
	p.line("  Clock offset applied: %.2fms", in.Offset)
	p.line("  Events used: %d (after calibration)", len(in.Adjusted))
	if len(in.Adjusted) == 0 {
		p.line("  No events arrived after calibration completed.")
		p.rule("=")
		return p.w.Flush()
	}
	adjusted, err := stats.Analyze(in.Adjusted, tail(in.EventTimestamps, len(in.Adjusted)))
	if err != nil {
		return fmt.Errorf("analyze adjusted latencies: %w", err)
	}
	p.summary(adjusted.Summary, true)
	if opts.AdjustedAnomalies {
		p.anomalies(adjusted)
	}
	p.rule("=")
	return p.w.Flush()
}

// User writes the user-channel summary.
func User(w io.Writer, in Input, counts events.Counts, opts Options) error {
	p := newPrinter(w, opts)

	p.title("USER EVENTS SUMMARY")
	if in.RunID != "" {
		p.line("Run: %s (%s)", in.RunID, in.Termination)
	}
	p.line("Total events received: %d", counts.Total)
	p.line("  Trades: %d", counts.Trades)
	p.line("  Orders: %d", counts.Orders)

	if !in.Empty() {
		summary, err := stats.Summarize(in.Raw)
		if err != nil {
			return fmt.Errorf("summarize user latencies: %w", err)
		}
		p.line("")
		p.line("Latency statistics:")
		p.summary(summary, false)
	} else {
		p.line("")
		p.line("No latency data collected.")
	}
	p.rule("=")
	return p.w.Flush()
}

func (p *printer) summary(s stats.Summary, interpret bool) {
	p.line("  Total events: %d", s.Count)
	p.line("  Median latency: %.2fms", s.Median)
	p.line("  Mean latency: %.2fms", s.Mean)
	p.line("  Min latency: %.2fms", s.Min)
	p.line("  Max latency: %.2fms", s.Max)
	p.line("  Std deviation: %.2fms", s.Stdev)
	p.line("")
	p.line("  Percentiles:")
	p.line("    25th: %.2fms", s.P25)
	p.line("    75th: %.2fms", s.P75)
	p.line("    95th: %.2fms", s.P95)
	p.line("    99th: %.2fms", s.P99)
	if !interpret {
		return
	}
	p.line("")
	p.line("  Interpretation:")
	p.line("    Median latency of %.2fms represents the typical time", s.Median)
	p.line("    from when the venue creates an event to when you receive it.")
	p.line("    Std deviation of %.2fms shows network variability.", s.Stdev)
}

func (p *printer) anomalies(a stats.Analysis) {
	v := a.Variance
	p.line("")
	switch {
	case !v.Evaluated:
		p.line("  Variance check: skipped (median is zero)")
	case v.Flagged:
		p.warnf("  ! High variance detected:")
		p.line("    Std deviation (%.2fms) is %.1fx the median.", v.Stdev, v.Ratio)
		p.line("    This suggests server-side batching/queueing, not just network jitter.")
		p.line("    Events may be timestamped at creation but queued before sending.")
	default:
		p.line("  Variance check: std deviation is %.1fx the median (threshold 1.5x)", v.Ratio)
	}

	b := a.Burst
	p.line("")
	if !b.Evaluated {
		p.line("  Event timing analysis: skipped (needs more than 10 events)")
		return
	}
	p.line("  Event timing analysis:")
	p.line("    Median time between events: %.0fms", b.MedianGap)
	p.line("    Max gap between events: %.0fms", b.MaxGap)
	if b.Flagged {
		p.warnf("    ! Large gaps detected - events may arrive in bursts")
	}
}

func tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
