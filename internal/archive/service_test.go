package archive

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lodgeline/lodgeline/internal/audit"
)

type fakeStore struct {
	key  string
	body []byte
	err  error
}

func (f *fakeStore) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *params.Key
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	takenAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	key, err := ObjectKey("tenant-1", takenAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "audit/tenant-1/2026-03-14/") {
		t.Errorf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".cbor") {
		t.Errorf("expected .cbor suffix, got %s", key)
	}
}

func TestObjectKey_InvalidTenant(t *testing.T) {
	if _, err := ObjectKey("", time.Now()); err != ErrInvalidTenantID {
		t.Errorf("expected ErrInvalidTenantID, got %v", err)
	}
	if _, err := ObjectKey("../../etc", time.Now()); err != nil {
		t.Errorf("expected sanitized key, got error %v", err)
	}
}

func TestUpload(t *testing.T) {
	repo := audit.NewInMemoryRepository()
	if _, err := repo.Append(audit.Record{
		TenantID:   "tenant-1",
		ActorID:    "actor-1",
		EntityType: "booking",
		EntityID:   "b-1",
		Action:     "booking_create",
		Outcome:    audit.OutcomeSuccess,
	}); err != nil {
		t.Fatalf("failed to seed audit entry: %v", err)
	}

	store := &fakeStore{}
	svc := NewServiceWithStore(store, "lodgeline-archive")

	key, err := svc.Upload(context.Background(), repo, "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != store.key {
		t.Errorf("returned key %s does not match stored key %s", key, store.key)
	}
	if len(store.body) == 0 {
		t.Fatal("expected snapshot body to be uploaded")
	}

	snap, err := audit.DecodeSnapshot(store.body)
	if err != nil {
		t.Fatalf("failed to decode uploaded snapshot: %v", err)
	}
	if snap.TenantID != "tenant-1" {
		t.Errorf("expected tenant-1, got %s", snap.TenantID)
	}
	if snap.EntryCount != 1 {
		t.Errorf("expected 1 entry, got %d", snap.EntryCount)
	}
}
