package channel

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// FrameHandler processes one binary feed frame. Returning an error
// drops the connection; the client reconnects and the feed replays from
// the subscribed cursor.
type FrameHandler func(payload []byte) error

// CursorFunc supplies the resume cursor for the subscribe handshake.
type CursorFunc func(ctx context.Context) (int64, error)

// subscribeRequest is the first frame sent on every connection. The
// feed replays updates with sequence numbers above Cursor.
type subscribeRequest struct {
	Cursor int64 `cbor:"cursor"`
}

// Client maintains a WebSocket subscription to the channel-manager
// feed. It dials, subscribes from the last acknowledged cursor, and
// reconnects with capped exponential backoff when the connection drops.
type Client struct {
	cfg     Config
	cursor  CursorFunc
	handler FrameHandler
	logger  *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewClient validates the configuration and builds a feed client. A nil
// cursor subscribes from the beginning of the feed.
func NewClient(cfg Config, cursor CursorFunc, handler FrameHandler, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		cursor:  cursor,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run blocks until the context is cancelled, reconnecting as needed.
func (c *Client) Run(ctx context.Context) error {
	delay := c.cfg.ReconnectMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			wait := c.jittered(delay)
			c.logger.Warn("feed connection failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay = min(delay*2, c.cfg.ReconnectMax)
			continue
		}

		delay = c.cfg.ReconnectMin
		c.serve(ctx, conn)
	}
}

// dial connects, applies the frame limits, and sends the subscribe
// handshake with the resume cursor.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	var header http.Header
	if c.cfg.Token != "" {
		header = http.Header{"Authorization": {"Bearer " + c.cfg.Token}}
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	conn.SetReadLimit(c.cfg.MaxFrameBytes)

	var cursor int64
	if c.cursor != nil {
		cursor, err = c.cursor(ctx)
		if err != nil {
			conn.Close()
			return nil, err
		}
	}
	sub, err := cbor.Marshal(subscribeRequest{Cursor: cursor})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, sub); err != nil {
		conn.Close()
		return nil, err
	}

	c.logger.Info("subscribed to channel feed",
		slog.String("url", c.cfg.URL),
		slog.Int64("cursor", cursor))
	return conn, nil
}

// serve reads frames until the connection dies or the context is
// cancelled. Non-binary messages are not feed frames and are dropped.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.setConn(conn)
	defer c.setConn(nil)

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.keepalive(ctx, conn, stopPing)

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("feed connection closed", slog.String("error", err.Error()))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			c.logger.Debug("dropping non-binary feed message",
				slog.Int("message_type", messageType))
			continue
		}
		if c.handler == nil {
			continue
		}
		if err := c.handler(payload); err != nil {
			c.logger.Error("feed frame handler failed", slog.String("error", err.Error()))
			return
		}
	}
}

// keepalive pings on the configured cadence and closes the connection
// when the context is cancelled, which unblocks the read loop.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			conn.Close()
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// jittered randomizes a backoff delay by up to the configured fraction
// in either direction.
func (c *Client) jittered(d time.Duration) time.Duration {
	if c.cfg.JitterFactor == 0 {
		return d
	}
	spread := (rand.Float64() - 0.5) * c.cfg.JitterFactor
	return time.Duration(float64(d) * (1 + spread))
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = conn != nil
	c.mu.Unlock()
}

// IsConnected reports whether a feed connection is currently live.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
