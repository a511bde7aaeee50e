package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

func TestNewClient_ValidConfig(t *testing.T) {
	config := DefaultConfig("wss://feed.example.com")
	client, err := NewClient(config, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() unexpected error = %v", err)
	}
	if client == nil {
		t.Fatal("NewClient() returned nil client")
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	valid := DefaultConfig("wss://test.com")

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:    "empty URL",
			mutate:  func(c *Config) { c.URL = "" },
			wantErr: ErrEmptyURL,
		},
		{
			name:    "zero reconnect min",
			mutate:  func(c *Config) { c.ReconnectMin = 0 },
			wantErr: ErrInvalidReconnect,
		},
		{
			name:    "reconnect max below min",
			mutate:  func(c *Config) { c.ReconnectMax = c.ReconnectMin / 2 },
			wantErr: ErrInvalidReconnect,
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *Config) { c.JitterFactor = 1.5 },
			wantErr: ErrInvalidJitter,
		},
		{
			name:    "read timeout below ping interval",
			mutate:  func(c *Config) { c.ReadTimeout = c.PingInterval / 2 },
			wantErr: ErrInvalidKeepalive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			_, err := NewClient(config, nil, nil, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewClient() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJittered_Bounds(t *testing.T) {
	config := DefaultConfig("wss://test.com")
	config.JitterFactor = 0.5
	client, err := NewClient(config, nil, nil, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 100; i++ {
		got := client.jittered(100 * time.Millisecond)
		if got < 75*time.Millisecond || got > 125*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds [75ms, 125ms]", got)
		}
	}

	client.cfg.JitterFactor = 0
	if got := client.jittered(100 * time.Millisecond); got != 100*time.Millisecond {
		t.Errorf("zero jitter: expected exact delay, got %v", got)
	}
}

func TestClientRun_SubscribesAndReceivesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	subscribed := make(chan subscribeRequest, 1)
	gotAuth := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// The first frame on every connection is the subscribe request.
		messageType, payload, err := conn.ReadMessage()
		if err != nil || messageType != websocket.BinaryMessage {
			return
		}
		var sub subscribeRequest
		if err := cbor.Unmarshal(payload, &sub); err != nil {
			return
		}
		subscribed <- sub

		// Text messages are not feed frames and must be ignored.
		if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
			return
		}

		frame, err := EncodeFrame(&FeedFrame{
			Seq: 43, Kind: KindAvailability, TenantID: "tenant-1", RoomType: "double",
			Date: "2026-07-01", Available: 2,
		})
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
		time.Sleep(time.Second)
	}))
	defer server.Close()

	received := make(chan []byte, 1)
	config := DefaultConfig("ws" + strings.TrimPrefix(server.URL, "http"))
	config.Token = "feed-secret"
	cursor := func(ctx context.Context) (int64, error) { return 42, nil }
	client, err := NewClient(config, cursor, func(payload []byte) error {
		select {
		case received <- payload:
		default:
		}
		return nil
	}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = client.Run(ctx)
		close(done)
	}()

	select {
	case auth := <-gotAuth:
		if auth != "Bearer feed-secret" {
			t.Errorf("Authorization = %q, want bearer token", auth)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connection")
	}

	select {
	case sub := <-subscribed:
		if sub.Cursor != 42 {
			t.Errorf("subscribe cursor = %d, want 42", sub.Cursor)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscribe request")
	}

	select {
	case payload := <-received:
		frame, err := DecodeFrame(payload)
		if err != nil {
			t.Fatalf("failed to decode received frame: %v", err)
		}
		if frame.Seq != 43 || frame.TenantID != "tenant-1" {
			t.Errorf("unexpected frame: %+v", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for feed message")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop after context cancellation")
	}
}
