package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freakspace/polymarket-latency/internal/calibration"
	"github.com/freakspace/polymarket-latency/internal/events"
	"github.com/freakspace/polymarket-latency/internal/logging"
	"github.com/freakspace/polymarket-latency/internal/metrics"
)

const (
	defaultKeepaliveInterval = 10 * time.Second
	progressEvery            = 10
	maxLoggedMessage         = 100
)

// Decode failure reasons reported to metrics.
const (
	reasonInvalidJSON     = "invalid_json"
	reasonBadTimestamp    = "bad_timestamp"
	reasonUnexpectedShape = "unexpected_shape"
)

// Dependencies allow test overrides for clock, logging, metrics and the per-event handler.
type Dependencies struct {
	Now               func() time.Time
	Logger            *log.Logger
	Metrics           metrics.IngestRecorder
	Handler           events.Handler
	KeepaliveInterval time.Duration
}

// Loop drives one subscription over one connection.
type Loop struct {
	cfg       RunConfig
	now       func() time.Time
	logger    *log.Logger
	metrics   metrics.IngestRecorder
	handler   events.Handler
	keepalive time.Duration
}

// New validates cfg and builds a Loop.
func New(cfg RunConfig, deps Dependencies) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NoopIngestRecorder{}
	}
	handler := deps.Handler
	if handler == nil {
		handler = events.NoopHandler{}
	}
	interval := deps.KeepaliveInterval
	if interval <= 0 {
		interval = defaultKeepaliveInterval
	}
	return &Loop{
		cfg:       cfg,
		now:       now,
		logger:    logger,
		metrics:   rec,
		handler:   handler,
		keepalive: interval,
	}, nil
}

// Run subscribes, then consumes messages until the target count is reached,
// the connection fails, or ctx is cancelled. Transport faults are not returned
// as errors: they end the run and are recorded on the returned state so the
// caller can report whatever was collected.
func (l *Loop) Run(ctx context.Context, conn Conn) (*RunState, error) {
	state := newRunState(l.cfg)

	payload, err := l.cfg.SubscriptionPayload()
	if err != nil {
		conn.Close()
		return state, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.metrics.ObserveConnected(true)
	defer l.metrics.ObserveConnected(false)

	if err := conn.Send(runCtx, string(payload)); err != nil {
		l.logger.Printf("subscription send failed: %v", err)
		state.Termination = TerminationConnectionClosed
		state.Err = fmt.Errorf("send subscription: %w", err)
		conn.Close()
		return state, nil
	}
	l.logSubscription(payload)

	grp, grpCtx := errgroup.WithContext(runCtx)
	grp.Go(func() error {
		l.runKeepalive(grpCtx, conn)
		return nil
	})

	for {
		text, err := conn.Receive(runCtx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Printf("interrupted; closing connection")
				state.Termination = TerminationInterrupted
			} else {
				l.logger.Printf("connection closed: %v", err)
				state.Termination = TerminationConnectionClosed
				state.Err = err
			}
			break
		}
		done, err := l.handleMessage(state, text, l.now())
		if err != nil {
			cancel()
			conn.Close()
			_ = grp.Wait()
			return state, err
		}
		if done {
			l.logger.Printf("collected %d events; closing connection", state.Received())
			state.Termination = TerminationTargetReached
			break
		}
	}

	cancel()
	if err := conn.Close(); err != nil && state.Termination == TerminationTargetReached {
		l.logger.Printf("close connection: %v", err)
	}
	_ = grp.Wait()
	return state, nil
}

func (l *Loop) logSubscription(payload []byte) {
	switch l.cfg.Mode {
	case ModeUser:
		l.logger.Printf("authentication sent (api key %s...); listening for user events", keyPreview(l.cfg.Auth.APIKey))
		if len(l.cfg.Markets) > 0 {
			l.logger.Printf("filtering by markets: %s", strings.Join(l.cfg.Markets, ","))
		} else {
			l.logger.Printf("receiving events for all markets")
		}
	default:
		l.logger.Printf("subscribed to %d asset ids", len(l.cfg.AssetIDs))
	}
	if l.cfg.Verbose {
		l.logger.Printf("subscription payload: %s", logging.Redact(string(payload)))
	}
}

// handleMessage classifies one inbound message. It reports true once the
// target event count has been reached.
func (l *Loop) handleMessage(state *RunState, text string, receivedAt time.Time) (bool, error) {
	receiveMs := float64(receivedAt.UnixMicro()) / 1e3

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		trimmed := strings.TrimSpace(text)
		if trimmed == PingMessage || trimmed == PongMessage {
			if l.cfg.Verbose {
				l.logger.Printf("received %s", trimmed)
			}
			return false, nil
		}
		l.decodeFailure(state, reasonInvalidJSON)
		l.logger.Printf("failed to parse message: %s", preview(text))
		return false, nil
	}

	switch msg := payload.(type) {
	case []any:
		state.BatchesSkipped++
		l.metrics.IncBatchesSkipped()
		l.logger.Printf("received array message (length: %d), skipping", len(msg))
		if l.cfg.Mode == ModeUser {
			// Batched items still count toward the event tally; they
			// never contribute latency samples.
			for _, item := range msg {
				if obj, ok := item.(map[string]any); ok {
					l.handler.HandleEvent(obj, nil)
				}
			}
		}
		return false, nil
	case map[string]any:
		return l.handleObject(state, msg, receiveMs)
	default:
		l.decodeFailure(state, reasonUnexpectedShape)
		l.logger.Printf("received non-object, non-array message: %T", payload)
		return false, nil
	}
}

func (l *Loop) handleObject(state *RunState, msg map[string]any, receiveMs float64) (bool, error) {
	if l.cfg.Mode == ModeUser && (truthy(msg["error"]) || truthy(msg["message"])) {
		state.Administrative++
		l.metrics.IncAdministrative()
		l.logger.Printf("server message: %v", msg)
		return false, nil
	}

	eventType := events.TypeOf(msg)
	eventMs, ok, err := eventTimestamp(msg)
	if err != nil {
		l.decodeFailure(state, reasonBadTimestamp)
		l.logger.Printf("skipping %s event: %v", eventType, err)
		return false, nil
	}
	if !ok {
		state.Administrative++
		l.metrics.IncAdministrative()
		if l.cfg.Mode == ModeMarket || l.cfg.Verbose {
			l.logger.Printf("received message without timestamp: %s", eventType)
		}
		l.handler.HandleEvent(msg, nil)
		return false, nil
	}

	sample := Sample{EventMs: eventMs, ReceiveMs: receiveMs}
	raw := sample.RawLatency()
	state.Samples = append(state.Samples, sample)
	l.metrics.IncEvents()
	l.metrics.ObserveRawLatency(raw)

	obs, err := state.calibrator.Observe(raw)
	if err != nil {
		return false, err
	}
	if obs.HasAdjusted {
		state.Adjusted = append(state.Adjusted, obs.Adjusted)
	}
	offset, hasOffset := state.Offset()
	l.metrics.ObserveCalibration(state.CalibrationState().String(), offset, hasOffset)

	l.logProgress(state, eventType, raw, obs)

	latency := raw
	l.handler.HandleEvent(msg, &latency)

	if !l.cfg.Continuous() && state.Received() >= l.cfg.NumEvents {
		return true, nil
	}
	return false, nil
}

func (l *Loop) logProgress(state *RunState, eventType string, raw float64, obs calibration.Observation) {
	if l.cfg.Mode != ModeMarket {
		if obs.Completed {
			if offset, ok := state.Offset(); ok {
				l.logger.Printf("calibration complete: estimated clock offset %.2fms", offset)
			}
		}
		return
	}

	received := state.Received()
	window := state.CalibrationWindow()
	if received == 1 {
		l.logger.Printf("first event received (type %s, raw latency %.2fms)", eventType, raw)
		if window > 0 {
			l.logger.Printf("calibrating clock offset using first %d events", window)
		} else {
			l.logger.Printf("clock calibration disabled; using raw measurements only")
		}
	}

	offset, hasOffset := state.Offset()
	if obs.Completed && hasOffset {
		l.logger.Printf("calibration complete: estimated clock offset %.2fms; collecting remaining events with offset correction", offset)
	}

	switch {
	case hasOffset:
		if received > window && (received-window)%progressEvery == 0 {
			l.logger.Printf("received %d/%d events | type %s | adjusted latency %.2fms", received, l.cfg.NumEvents, eventType, obs.Adjusted)
		}
	case state.CalibrationState() == calibration.Complete:
		if received%progressEvery == 0 || l.cfg.Verbose {
			line := fmt.Sprintf("received %d/%d events | type %s | raw latency %.2fms", received, l.cfg.NumEvents, eventType, raw)
			if l.cfg.Verbose && received > 1 {
				gap := state.Samples[received-1].EventMs - state.Samples[received-2].EventMs
				line += fmt.Sprintf(" | gap %.0fms", gap)
			}
			l.logger.Print(line)
		}
	}
}

func (l *Loop) decodeFailure(state *RunState, reason string) {
	state.DecodeFailures++
	l.metrics.IncDecodeFailures(reason)
}

var errUnsupportedTimestamp = errors.New("unsupported timestamp type")

// eventTimestamp extracts the timestamp field in milliseconds. Missing, empty
// and zero values mark an administrative message.
func eventTimestamp(msg map[string]any) (float64, bool, error) {
	v, ok := msg["timestamp"]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch ts := v.(type) {
	case float64:
		if ts == 0 {
			return 0, false, nil
		}
		return ts, true, nil
	case string:
		if ts == "" {
			return 0, false, nil
		}
		trimmed := strings.TrimSpace(ts)
		if strings.ContainsAny(trimmed, "xX") {
			return 0, false, fmt.Errorf("invalid timestamp %q: not a decimal number", ts)
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false, fmt.Errorf("invalid timestamp %q: not finite", ts)
		}
		return f, true, nil
	case bool:
		if !ts {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %T", errUnsupportedTimestamp, v)
	default:
		return 0, false, fmt.Errorf("%w: %T", errUnsupportedTimestamp, v)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func preview(text string) string {
	if len(text) <= maxLoggedMessage {
		return text
	}
	return text[:maxLoggedMessage] + "..."
}

func keyPreview(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
