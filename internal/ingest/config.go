package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/freakspace/polymarket-latency/pkg/types"
)

// Keep-alive tokens exchanged as plain text frames.
const (
	PingMessage = "PING"
	PongMessage = "PONG"
)

var (
	ErrNoIdentifiers      = errors.New("no token identifiers to subscribe to")
	ErrMissingCredentials = errors.New("missing API credentials")
)

// Conn is the persistent streaming connection the loop consumes. Send must
// be safe for concurrent use; Receive and Close are called from the loop only.
type Conn interface {
	Send(ctx context.Context, text string) error
	Receive(ctx context.Context) (string, error)
	Close() error
}

// Mode selects the channel the loop subscribes to.
type Mode int

const (
	ModeMarket Mode = iota
	ModeUser
)

func (m Mode) String() string {
	switch m {
	case ModeMarket:
		return types.ChannelMarket
	case ModeUser:
		return types.ChannelUser
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// RunConfig is fixed before the loop starts.
type RunConfig struct {
	Mode Mode
	// AssetIDs are the resolved token identifiers for the market channel.
	AssetIDs []string
	// Markets filters the user channel by condition id; empty means all.
	Markets []string
	Auth    types.Auth
	// NumEvents is the target event count. Zero is accepted in user mode
	// and means run until the connection closes or the context ends.
	NumEvents         int
	CalibrationEvents int
	Verbose           bool
}

// Validate checks the preconditions that must hold before connecting.
func (c RunConfig) Validate() error {
	switch c.Mode {
	case ModeMarket:
		if len(c.AssetIDs) == 0 {
			return ErrNoIdentifiers
		}
		if c.NumEvents < 1 {
			return fmt.Errorf("event count must be at least 1, got %d", c.NumEvents)
		}
	case ModeUser:
		if c.Auth.APIKey == "" || c.Auth.Secret == "" || c.Auth.Passphrase == "" {
			return ErrMissingCredentials
		}
		if c.NumEvents < 0 {
			return fmt.Errorf("event count must not be negative, got %d", c.NumEvents)
		}
	default:
		return fmt.Errorf("unknown channel mode %d", int(c.Mode))
	}
	if c.CalibrationEvents < 0 {
		return fmt.Errorf("calibration window must not be negative, got %d", c.CalibrationEvents)
	}
	return nil
}

// Continuous reports whether the run has no target event count.
func (c RunConfig) Continuous() bool {
	return c.Mode == ModeUser && c.NumEvents == 0
}

// SubscriptionPayload renders the single message sent when the connection opens.
func (c RunConfig) SubscriptionPayload() ([]byte, error) {
	var msg any
	switch c.Mode {
	case ModeMarket:
		msg = types.MarketSubscription{
			AssetIDs: append([]string{}, c.AssetIDs...),
			Type:     types.ChannelMarket,
		}
	case ModeUser:
		msg = types.UserSubscription{
			Markets: append([]string{}, c.Markets...),
			Type:    types.ChannelUser,
			Auth:    c.Auth,
		}
	default:
		return nil, fmt.Errorf("unknown channel mode %d", int(c.Mode))
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal subscription: %w", err)
	}
	return payload, nil
}
