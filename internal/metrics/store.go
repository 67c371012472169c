package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Store maintains in-memory gauges and counters for a latency run.
type Store struct {
	runID            atomic.Value
	eventsReceived   atomic.Uint64
	administrative   atomic.Uint64
	batchesSkipped   atomic.Uint64
	keepalivesSent   atomic.Uint64
	lastRawLatency   atomic.Uint64 // math.Float64bits
	calibrationState atomic.Value
	clockOffset      atomic.Uint64 // math.Float64bits
	hasOffset        atomic.Bool
	connected        atomic.Bool
	ready            atomic.Bool
	readyReason      atomic.Value
	decodeFailures   sync.Map // reason -> *atomic.Uint64
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	store := &Store{}
	store.runID.Store("")
	store.calibrationState.Store("pending")
	store.readyReason.Store("")
	return store
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	RunID            string
	EventsReceived   uint64
	Administrative   uint64
	BatchesSkipped   uint64
	KeepalivesSent   uint64
	LastRawLatencyMs float64
	CalibrationState string
	ClockOffsetMs    float64
	HasOffset        bool
	Connected        bool
	Ready            bool
	ReadyReason      string
	DecodeFailures   []ReasonCount
}

// ReasonCount captures accumulated decode failures per reason.
type ReasonCount struct {
	Reason string
	Count  uint64
}

// SetRunID labels the exported metrics with the current run.
func (s *Store) SetRunID(id string) {
	s.runID.Store(id)
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	runID, _ := s.runID.Load().(string)
	state, _ := s.calibrationState.Load().(string)
	reason, _ := s.readyReason.Load().(string)
	failures := make([]ReasonCount, 0)
	s.decodeFailures.Range(func(key, value any) bool {
		reason, ok := key.(string)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Uint64)
		if !ok || counter == nil {
			return true
		}
		failures = append(failures, ReasonCount{Reason: reason, Count: counter.Load()})
		return true
	})
	sort.Slice(failures, func(i, j int) bool { return failures[i].Reason < failures[j].Reason })
	return Snapshot{
		RunID:            runID,
		EventsReceived:   s.eventsReceived.Load(),
		Administrative:   s.administrative.Load(),
		BatchesSkipped:   s.batchesSkipped.Load(),
		KeepalivesSent:   s.keepalivesSent.Load(),
		LastRawLatencyMs: math.Float64frombits(s.lastRawLatency.Load()),
		CalibrationState: state,
		ClockOffsetMs:    math.Float64frombits(s.clockOffset.Load()),
		HasOffset:        s.hasOffset.Load(),
		Connected:        s.connected.Load(),
		Ready:            s.ready.Load(),
		ReadyReason:      reason,
		DecodeFailures:   failures,
	}
}

func (s *Store) IncEvents()         { s.eventsReceived.Add(1) }
func (s *Store) IncAdministrative() { s.administrative.Add(1) }
func (s *Store) IncBatchesSkipped() { s.batchesSkipped.Add(1) }
func (s *Store) IncKeepalives()     { s.keepalivesSent.Add(1) }

func (s *Store) IncDecodeFailures(reason string) {
	s.getReasonCounter(reason).Add(1)
}

func (s *Store) ObserveRawLatency(ms float64) {
	s.lastRawLatency.Store(math.Float64bits(ms))
}

func (s *Store) ObserveCalibration(state string, offsetMs float64, hasOffset bool) {
	s.calibrationState.Store(state)
	s.hasOffset.Store(hasOffset)
	if hasOffset {
		s.clockOffset.Store(math.Float64bits(offsetMs))
	}
}

func (s *Store) ObserveConnected(connected bool) {
	s.connected.Store(connected)
}

// ObserveReadiness records the latest readiness evaluation.
func (s *Store) ObserveReadiness(ready bool, reason string) {
	s.ready.Store(ready)
	s.readyReason.Store(reason)
}

func (s *Store) getReasonCounter(reason string) *atomic.Uint64 {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	if value, ok := s.decodeFailures.Load(reason); ok {
		if counter, ok := value.(*atomic.Uint64); ok && counter != nil {
			return counter
		}
	}
	counter := &atomic.Uint64{}
	actual, _ := s.decodeFailures.LoadOrStore(reason, counter)
	if existing, ok := actual.(*atomic.Uint64); ok && existing != nil {
		return existing
	}
	return counter
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	connected := 0
	if snap.Connected {
		connected = 1
	}
	ready := 0
	if snap.Ready {
		ready = 1
	}
	runID := snap.RunID
	if runID == "" {
		runID = "none"
	}
	lines := []string{
		"# HELP polylatency_run_info Identifier of the current measurement run.",
		"# TYPE polylatency_run_info gauge",
		fmt.Sprintf("polylatency_run_info{run_id=%q} 1", runID),
		"# HELP polylatency_events_received_total Timestamped events recorded as latency samples.",
		"# TYPE polylatency_events_received_total counter",
		fmt.Sprintf("polylatency_events_received_total %d", snap.EventsReceived),
		"# HELP polylatency_administrative_messages_total Object messages without a timestamp.",
		"# TYPE polylatency_administrative_messages_total counter",
		fmt.Sprintf("polylatency_administrative_messages_total %d", snap.Administrative),
		"# HELP polylatency_batches_skipped_total Array-shaped messages skipped as batch framing.",
		"# TYPE polylatency_batches_skipped_total counter",
		fmt.Sprintf("polylatency_batches_skipped_total %d", snap.BatchesSkipped),
		"# HELP polylatency_keepalives_sent_total PING messages written to the connection.",
		"# TYPE polylatency_keepalives_sent_total counter",
		fmt.Sprintf("polylatency_keepalives_sent_total %d", snap.KeepalivesSent),
		"# HELP polylatency_last_raw_latency_ms Raw latency of the most recent sample.",
		"# TYPE polylatency_last_raw_latency_ms gauge",
		fmt.Sprintf("polylatency_last_raw_latency_ms %g", snap.LastRawLatencyMs),
		"# HELP polylatency_calibration_info Current calibration state.",
		"# TYPE polylatency_calibration_info gauge",
		fmt.Sprintf("polylatency_calibration_info{state=%q} 1", snap.CalibrationState),
		"# HELP polylatency_connected Whether the stream connection is open (1=open).",
		"# TYPE polylatency_connected gauge",
		fmt.Sprintf("polylatency_connected %d", connected),
		"# HELP polylatency_ready Whether the run is connected, calibrated and receiving events (1=ready).",
		"# TYPE polylatency_ready gauge",
		fmt.Sprintf("polylatency_ready %d", ready),
	}
	if snap.HasOffset {
		lines = append(lines,
			"# HELP polylatency_clock_offset_ms Estimated clock offset removed from raw latencies.",
			"# TYPE polylatency_clock_offset_ms gauge",
			fmt.Sprintf("polylatency_clock_offset_ms %g", snap.ClockOffsetMs),
		)
	}
	lines = append(lines,
		"# HELP polylatency_decode_failures_total Messages that could not be decoded, by reason.",
		"# TYPE polylatency_decode_failures_total counter",
	)
	if len(snap.DecodeFailures) == 0 {
		lines = append(lines, fmt.Sprintf("polylatency_decode_failures_total{reason=%q} 0", "none"))
	} else {
		for _, rc := range snap.DecodeFailures {
			lines = append(lines, fmt.Sprintf("polylatency_decode_failures_total{reason=%q} %d", rc.Reason, rc.Count))
		}
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}

var _ IngestRecorder = (*Store)(nil)
