// Package calibration estimates the clock offset between the venue and the
// local host from a warm-up window of raw latencies.
//
// The estimate assumes that network latency during warm-up is not
// pathologically different from steady state. It is a heuristic, not a bound.
package calibration

import (
	"errors"
	"fmt"

	"github.com/freakspace/polymarket-latency/internal/stats"
)

// ErrEmptyWindow is returned when an offset is requested from no samples.
var ErrEmptyWindow = errors.New("calibration window is empty")

// State tracks calibration progress.
type State int

const (
	Pending State = iota
	InProgress
	Complete
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EstimateOffset returns the median of the first-K raw latencies.
func EstimateOffset(window []float64) (float64, error) {
	if len(window) == 0 {
		return 0, ErrEmptyWindow
	}
	return stats.Median(window)
}

// ClampWindow bounds k to [0, numEvents/2]. A non-positive numEvents leaves
// only the lower bound in place.
func ClampWindow(k, numEvents int) int {
	if k < 0 {
		k = 0
	}
	if numEvents > 0 && k > numEvents/2 {
		k = numEvents / 2
	}
	return k
}

// Observation is the outcome of feeding one raw latency to a Calibrator.
type Observation struct {
	// Completed is true only for the sample that moved the state to Complete.
	Completed   bool
	Adjusted    float64
	HasAdjusted bool
}

// Calibrator is the calibration state machine. It is not safe for concurrent use.
type Calibrator struct {
	window    int
	state     State
	collected []float64
	offset    float64
	hasOffset bool
}

// NewCalibrator builds a Calibrator with its window clamped to numEvents/2.
func NewCalibrator(window, numEvents int) *Calibrator {
	k := ClampWindow(window, numEvents)
	return &Calibrator{
		window:    k,
		collected: make([]float64, 0, k),
	}
}

// Window returns the effective calibration window size.
func (c *Calibrator) Window() int { return c.window }

// State returns the current calibration state.
func (c *Calibrator) State() State { return c.state }

// Offset returns the estimated clock offset, if one exists.
func (c *Calibrator) Offset() (float64, bool) { return c.offset, c.hasOffset }

// Observe records a raw latency and returns the adjusted latency once an
// offset is known. A zero window completes on the first sample without an offset.
func (c *Calibrator) Observe(raw float64) (Observation, error) {
	var obs Observation
	if c.state != Complete {
		if c.window == 0 {
			c.state = Complete
			obs.Completed = true
			return obs, nil
		}
		c.state = InProgress
		c.collected = append(c.collected, raw)
		if len(c.collected) >= c.window {
			offset, err := EstimateOffset(c.collected)
			if err != nil {
				return obs, fmt.Errorf("estimate clock offset: %w", err)
			}
			c.offset = offset
			c.hasOffset = true
			c.state = Complete
			obs.Completed = true
		}
	}
	if c.state == Complete && c.hasOffset {
		obs.Adjusted = raw - c.offset
		obs.HasAdjusted = true
	}
	return obs, nil
}
