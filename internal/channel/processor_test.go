package channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodeFrame(t *testing.T, frame *FeedFrame) []byte {
	t.Helper()
	data, err := EncodeFrame(frame)
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	return data
}

func TestProcessorHandle_AppliesUpdates(t *testing.T) {
	store := NewInMemoryStore()
	tracker := NewInMemorySequenceTracker()
	proc := NewProcessor(store, tracker, NewMetrics(), testLogger())

	avail := encodeFrame(t, &FeedFrame{
		Seq: 1, Kind: KindAvailability, TenantID: "tenant-1", RoomType: "double",
		Date: "2026-07-01", Available: 4,
	})
	rate := encodeFrame(t, &FeedFrame{
		Seq: 2, Kind: KindRate, TenantID: "tenant-1", RoomType: "double",
		Date: "2026-07-01", Rate: 14500,
	})

	if err := proc.Handle(avail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := proc.Handle(rate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	got, err := store.GetAvailability(ctx, "tenant-1", "double", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Errorf("expected availability 4, got %d", got)
	}

	gotRate, err := store.GetRate(ctx, "tenant-1", "double", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRate != 14500 {
		t.Errorf("expected rate 14500, got %d", gotRate)
	}

	cursor, err := tracker.GetLastSequence(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 2 {
		t.Errorf("expected cursor 2, got %d", cursor)
	}
}

func TestProcessorHandle_SkipsStaleFrames(t *testing.T) {
	store := NewInMemoryStore()
	tracker := NewInMemorySequenceTracker()
	proc := NewProcessor(store, tracker, nil, testLogger())

	ctx := context.Background()
	if err := tracker.UpdateSequence(ctx, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stale := encodeFrame(t, &FeedFrame{
		Seq: 5, Kind: KindAvailability, TenantID: "tenant-1", RoomType: "double",
		Date: "2026-07-01", Available: 9,
	})
	if err := proc.Handle(stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.GetAvailability(ctx, "tenant-1", "double", day); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected stale frame to be dropped, got err %v", err)
	}

	cursor, _ := tracker.GetLastSequence(ctx)
	if cursor != 10 {
		t.Errorf("expected cursor to stay at 10, got %d", cursor)
	}
}

func TestProcessorHandle_DropsMalformedFrames(t *testing.T) {
	store := NewInMemoryStore()
	tracker := NewInMemorySequenceTracker()
	proc := NewProcessor(store, tracker, NewMetrics(), testLogger())

	// Garbage payloads and invalid frames must not kill the connection.
	if err := proc.Handle([]byte{0xff, 0xfe}); err != nil {
		t.Errorf("expected nil for undecodable frame, got %v", err)
	}

	invalid := encodeFrame(t, &FeedFrame{Seq: 1, Kind: "occupancy", TenantID: "t", RoomType: "r", Date: "2026-07-01"})
	if err := proc.Handle(invalid); err != nil {
		t.Errorf("expected nil for invalid frame, got %v", err)
	}
}

func TestInMemorySequenceTracker_Monotonic(t *testing.T) {
	tracker := NewInMemorySequenceTracker()
	ctx := context.Background()

	if err := tracker.UpdateSequence(ctx, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tracker.UpdateSequence(ctx, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq, err := tracker.GetLastSequence(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != 7 {
		t.Errorf("expected cursor 7, got %d", seq)
	}
}
