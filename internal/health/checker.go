package health

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/freakspace/polymarket-latency/internal/metrics"
)

const defaultEventStale = time.Minute

// Checker evaluates readiness of a running measurement.
type Checker struct {
	metrics    *metrics.Store
	staleAfter time.Duration

	mu        sync.RWMutex
	lastEvent time.Time
}

// NewChecker constructs a readiness checker bound to the provided metrics store.
func NewChecker(store *metrics.Store, staleAfter time.Duration) *Checker {
	if staleAfter <= 0 {
		staleAfter = defaultEventStale
	}
	return &Checker{
		metrics:    store,
		staleAfter: staleAfter,
	}
}

// ObserveEvent records that a message was delivered to the handler at ts.
func (c *Checker) ObserveEvent(ts time.Time) {
	c.mu.Lock()
	c.lastEvent = ts
	c.mu.Unlock()
}

// Ready evaluates all readiness conditions and returns the overall status and reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	reasons := make([]string, 0, 3)

	if c.metrics != nil {
		snap := c.metrics.Snapshot()
		if !snap.Connected {
			reasons = append(reasons, "stream not connected")
		}
		if snap.CalibrationState != "complete" {
			reasons = append(reasons, fmt.Sprintf("calibration %s", snap.CalibrationState))
		}
	}

	c.mu.RLock()
	lastEvent := c.lastEvent
	c.mu.RUnlock()

	if lastEvent.IsZero() {
		reasons = append(reasons, "no events received yet")
	} else if age := now.Sub(lastEvent); age > c.staleAfter {
		reasons = append(reasons, fmt.Sprintf("events stale (%s)", age.Round(time.Second)))
	}

	ready := len(reasons) == 0
	if c.metrics != nil {
		c.metrics.ObserveReadiness(ready, strings.Join(reasons, "; "))
	}
	if !ready {
		return false, reasons
	}
	return true, nil
}
