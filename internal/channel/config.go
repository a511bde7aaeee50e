// Package channel syncs availability and rate updates from an external
// channel-manager feed into Lodgeline.
package channel

import (
	"errors"
	"time"
)

// Defaults for the feed connection. The read timeout must outlast the
// ping interval or the keepalive can never answer in time.
const (
	DefaultDialTimeout   = 10 * time.Second
	DefaultPingInterval  = 20 * time.Second
	DefaultReadTimeout   = 45 * time.Second
	DefaultMaxFrameBytes = 1 << 20

	DefaultReconnectMin = 250 * time.Millisecond
	DefaultReconnectMax = 30 * time.Second
	DefaultJitterFactor = 0.5
)

// Configuration errors.
var (
	ErrEmptyURL         = errors.New("feed URL cannot be empty")
	ErrInvalidReconnect = errors.New("reconnect delays must satisfy 0 < min <= max")
	ErrInvalidJitter    = errors.New("jitter factor must be between 0 and 1")
	ErrInvalidKeepalive = errors.New("read timeout must exceed ping interval")
)

// Config holds the channel feed connection settings.
type Config struct {
	// URL is the channel manager's WebSocket feed endpoint.
	URL string

	// Token authenticates the handshake via an Authorization header.
	// Empty means the feed is unauthenticated.
	Token string

	// DialTimeout bounds the WebSocket handshake.
	DialTimeout time.Duration

	// PingInterval is the keepalive cadence; ReadTimeout is how long a
	// read waits before the connection is declared dead. Pongs extend
	// the read deadline.
	PingInterval time.Duration
	ReadTimeout  time.Duration

	// MaxFrameBytes caps the size of a single feed frame.
	MaxFrameBytes int64

	// ReconnectMin and ReconnectMax bound the exponential backoff
	// between connection attempts. JitterFactor randomizes each delay
	// by up to that fraction to avoid thundering reconnects.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	JitterFactor float64
}

// DefaultConfig returns the default feed settings for the given
// endpoint.
func DefaultConfig(url string) Config {
	return Config{
		URL:           url,
		DialTimeout:   DefaultDialTimeout,
		PingInterval:  DefaultPingInterval,
		ReadTimeout:   DefaultReadTimeout,
		MaxFrameBytes: DefaultMaxFrameBytes,
		ReconnectMin:  DefaultReconnectMin,
		ReconnectMax:  DefaultReconnectMax,
		JitterFactor:  DefaultJitterFactor,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.URL == "" {
		return ErrEmptyURL
	}
	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		return ErrInvalidReconnect
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return ErrInvalidJitter
	}
	if c.ReadTimeout <= c.PingInterval {
		return ErrInvalidKeepalive
	}
	return nil
}
