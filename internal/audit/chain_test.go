package audit

import (
	"strings"
	"testing"
	"time"
)

func TestInMemoryRepository_HashChain(t *testing.T) {
	repo := NewInMemoryRepository()

	entry1, err := repo.Append(Record{
		TenantID:   "tenant-1",
		ActorID:    "actor-1",
		EntityType: "booking",
		EntityID:   "bk-1",
		Action:     "booking_create",
		Outcome:    OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// First entry of a chain has empty previous hash and seq 1
	if entry1.PrevHash != "" {
		t.Errorf("first entry PrevHash = %q, want empty string", entry1.PrevHash)
	}
	if entry1.Seq != 1 {
		t.Errorf("first entry Seq = %d, want 1", entry1.Seq)
	}
	if !strings.HasPrefix(entry1.Hash, HashPrefix) {
		t.Errorf("entry Hash = %q, want %q prefix", entry1.Hash, HashPrefix)
	}

	entry2, err := repo.Append(Record{
		TenantID:   "tenant-1",
		ActorID:    "actor-1",
		EntityType: "booking",
		EntityID:   "bk-1",
		Action:     "booking_confirm",
		Outcome:    OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if entry2.PrevHash != entry1.Hash {
		t.Errorf("second entry PrevHash = %q, want first entry Hash %q", entry2.PrevHash, entry1.Hash)
	}
	if entry2.Seq != 2 {
		t.Errorf("second entry Seq = %d, want 2", entry2.Seq)
	}
}

func TestInMemoryRepository_ChainsAreTenantScoped(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_create",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// A different tenant starts its own chain
	other, err := repo.Append(Record{
		TenantID: "tenant-2", ActorID: "b", EntityType: "booking", EntityID: "bk-9",
		Action: "booking_create",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if other.PrevHash != "" {
		t.Errorf("first entry of second tenant PrevHash = %q, want empty", other.PrevHash)
	}
	if other.Seq != 1 {
		t.Errorf("first entry of second tenant Seq = %d, want 1", other.Seq)
	}
}

func TestInMemoryRepository_LastHash(t *testing.T) {
	repo := NewInMemoryRepository()

	hash, err := repo.LastHash("tenant-1")
	if err != nil {
		t.Fatalf("LastHash() error = %v", err)
	}
	if hash != "" {
		t.Errorf("LastHash() on empty chain = %q, want empty string", hash)
	}

	entry, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_create",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	hash, err = repo.LastHash("tenant-1")
	if err != nil {
		t.Fatalf("LastHash() error = %v", err)
	}
	if hash != entry.Hash {
		t.Errorf("LastHash() = %q, want %q", hash, entry.Hash)
	}
}

func TestInMemoryRepository_VerifyChain_EmptyChain(t *testing.T) {
	repo := NewInMemoryRepository()

	broken, err := repo.VerifyChain("tenant-1")
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if broken != 0 {
		t.Errorf("VerifyChain() on empty chain = %d, want 0", broken)
	}
}

func TestInMemoryRepository_VerifyChain_Valid(t *testing.T) {
	repo := NewInMemoryRepository()

	records := []Record{
		{TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1", Action: "booking_create"},
		{TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1", Action: "booking_confirm"},
		{TenantID: "tenant-1", ActorID: "b", EntityType: "booking", EntityID: "bk-1", Action: "payment_record"},
		{TenantID: "tenant-1", ActorID: "b", EntityType: "invoice", EntityID: "inv-1", Action: "invoice_create"},
		{TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1", Action: "booking_check_in"},
	}
	for _, rec := range records {
		if _, err := repo.Append(rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	broken, err := repo.VerifyChain("tenant-1")
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if broken != 0 {
		t.Errorf("VerifyChain() = %d, want 0 for untampered chain", broken)
	}
}

func TestInMemoryRepository_VerifyChain_TamperedData(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_create",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_confirm",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Tamper with the first entry's action
	repo.mu.Lock()
	repo.chains["tenant-1"][0].Action = "booking_cancel"
	repo.mu.Unlock()

	broken, err := repo.VerifyChain("tenant-1")
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if broken != 1 {
		t.Errorf("VerifyChain() = %d, want 1 (first entry tampered)", broken)
	}
}

func TestInMemoryRepository_VerifyChain_AnonymizedIPsStayValid(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_create", IPAddress: "203.0.113.77",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// IPs are outside the hash input, so anonymization must not break the chain
	repo.mu.Lock()
	repo.chains["tenant-1"][0].IPAddress = AnonymizeIP("203.0.113.77")
	repo.mu.Unlock()

	broken, err := repo.VerifyChain("tenant-1")
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if broken != 0 {
		t.Errorf("VerifyChain() = %d, want 0 after IP anonymization", broken)
	}
}

func TestInMemoryRepository_OutcomeDefaultsToSuccess(t *testing.T) {
	repo := NewInMemoryRepository()

	entry, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_create", Outcome: "",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if entry.Outcome != OutcomeSuccess {
		t.Errorf("Append() with empty Outcome = %q, want %q", entry.Outcome, OutcomeSuccess)
	}
}

func TestAppend_Validation(t *testing.T) {
	repo := NewInMemoryRepository()

	tests := []struct {
		name    string
		rec     Record
		wantErr error
	}{
		{
			name:    "missing tenant",
			rec:     Record{EntityType: "booking", EntityID: "bk-1", Action: "booking_create"},
			wantErr: ErrInvalidTenantID,
		},
		{
			name:    "missing entity type",
			rec:     Record{TenantID: "t", EntityID: "bk-1", Action: "booking_create"},
			wantErr: ErrInvalidEntityType,
		},
		{
			name:    "unknown entity type",
			rec:     Record{TenantID: "t", EntityType: "widget", EntityID: "bk-1", Action: "booking_create"},
			wantErr: ErrInvalidEntityType,
		},
		{
			name:    "missing entity id",
			rec:     Record{TenantID: "t", EntityType: "booking", Action: "booking_create"},
			wantErr: ErrInvalidEntityID,
		},
		{
			name:    "unknown action",
			rec:     Record{TenantID: "t", EntityType: "booking", EntityID: "bk-1", Action: "booking_teleport"},
			wantErr: ErrInvalidAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Append(tt.rec)
			if err != tt.wantErr {
				t.Errorf("Append() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyChain_GapInSequence(t *testing.T) {
	e1 := &Entry{TenantID: "t", Seq: 1, EntityType: "booking", EntityID: "bk-1", Action: "booking_create", Outcome: OutcomeSuccess}
	e1.Hash = ComputeHash(e1)
	e3 := &Entry{TenantID: "t", Seq: 3, EntityType: "booking", EntityID: "bk-1", Action: "booking_confirm", Outcome: OutcomeSuccess, PrevHash: e1.Hash}
	e3.Hash = ComputeHash(e3)

	if broken := VerifyChain([]*Entry{e1, e3}); broken != 3 {
		t.Errorf("VerifyChain() with seq gap = %d, want 3", broken)
	}
}

func TestAppend_HashSurvivesTimestampRoundTrip(t *testing.T) {
	repo := NewInMemoryRepository()

	entry, err := repo.Append(Record{
		TenantID:   "tenant-1",
		ActorID:    "actor-1",
		EntityType: "booking",
		EntityID:   "bk-1",
		Action:     "booking_create",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if entry.CreatedAt != entry.CreatedAt.Truncate(time.Microsecond) {
		t.Errorf("CreatedAt = %v carries sub-microsecond precision", entry.CreatedAt)
	}

	// A TIMESTAMPTZ column keeps microseconds; an entry read back from
	// storage must still verify against its stored hash.
	stored := *entry
	stored.CreatedAt = stored.CreatedAt.Truncate(time.Microsecond)
	if !VerifyEntry(&stored) {
		t.Error("VerifyEntry() = false after storage round trip")
	}
}
