// Package stream adapts a gorilla/websocket connection to the text-frame
// Send/Receive/Close capability the ingestion loop consumes.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	closeGracePeriod        = time.Second
)

// ErrClosed is returned by Send and Receive after the connection is closed.
var ErrClosed = errors.New("stream closed")

// Options tune the dialer. Zero values fall back to defaults.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadLimit caps inbound frame size; zero leaves it unlimited.
	ReadLimit int64
	Header    http.Header
	Logger    *log.Logger
}

type frame struct {
	text string
	err  error
}

// Conn is a websocket connection. Send is safe for concurrent use; Receive
// must be called from a single goroutine.
type Conn struct {
	ws           *websocket.Conn
	logger       *log.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  bool

	incoming  chan frame
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// ChannelURL joins the websocket base URL with the channel path, e.g.
// wss://host + market -> wss://host/ws/market.
func ChannelURL(base, channel string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/ws") {
		base += "/ws"
	}
	return base + "/" + channel
}

// Dial opens the websocket and starts the read pump.
func Dial(ctx context.Context, rawURL string, opts Options) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported stream scheme %q", u.Scheme)
	}

	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	if opts.ReadLimit > 0 {
		ws.SetReadLimit(opts.ReadLimit)
	}

	c := &Conn{
		ws:           ws,
		logger:       logger,
		writeTimeout: writeTimeout,
		incoming:     make(chan frame),
		done:         make(chan struct{}),
	}
	go c.readPump()
	logger.Printf("connected to %s", u.Redacted())
	return c, nil
}

func (c *Conn) readPump() {
	defer close(c.incoming)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Printf("stream read error: %v", err)
			}
			select {
			case c.incoming <- frame{err: err}:
			case <-c.done:
			}
			return
		}
		select {
		case c.incoming <- frame{text: string(data)}:
		case <-c.done:
			return
		}
	}
}

// Send writes one text frame.
func (c *Conn) Send(ctx context.Context, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Receive blocks until the next frame arrives, the read side fails or ctx ends.
func (c *Conn) Receive(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case f, ok := <-c.incoming:
		if !ok {
			return "", ErrClosed
		}
		if f.err != nil {
			return "", f.err
		}
		return f.text, nil
	}
}

// Close sends a normal close frame and tears down the socket. It is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.closed = true
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
