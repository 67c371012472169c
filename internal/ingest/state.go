package ingest

import (
	"github.com/freakspace/polymarket-latency/internal/calibration"
)

// Sample is one timestamped event, captured when the message is classified.
type Sample struct {
	EventMs   float64
	ReceiveMs float64
}

// RawLatency is receive time minus event time, uncorrected for clock skew.
func (s Sample) RawLatency() float64 {
	return s.ReceiveMs - s.EventMs
}

// Termination records why the loop stopped.
type Termination string

const (
	TerminationTargetReached    Termination = "target_reached"
	TerminationConnectionClosed Termination = "connection_closed"
	TerminationInterrupted      Termination = "interrupted"
)

// RunState is owned by the loop while it runs and read-only afterwards.
type RunState struct {
	Samples  []Sample
	Adjusted []float64

	Administrative int
	BatchesSkipped int
	DecodeFailures int

	Termination Termination
	// Err is the transport error that ended the run, if any.
	Err error

	calibrator *calibration.Calibrator
}

func newRunState(cfg RunConfig) *RunState {
	return &RunState{
		calibrator: calibration.NewCalibrator(cfg.CalibrationEvents, cfg.NumEvents),
	}
}

// Received is the number of timestamped events recorded.
func (s *RunState) Received() int {
	return len(s.Samples)
}

// RawLatencies returns raw latencies in arrival order.
func (s *RunState) RawLatencies() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.RawLatency()
	}
	return out
}

// EventTimestamps returns event timestamps in arrival order.
func (s *RunState) EventTimestamps() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.EventMs
	}
	return out
}

// Offset returns the estimated clock offset when calibration produced one.
func (s *RunState) Offset() (float64, bool) {
	return s.calibrator.Offset()
}

func (s *RunState) CalibrationState() calibration.State {
	return s.calibrator.State()
}

// CalibrationWindow is the effective, clamped window size.
func (s *RunState) CalibrationWindow() int {
	return s.calibrator.Window()
}
