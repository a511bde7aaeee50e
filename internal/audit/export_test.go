package audit

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func seedEntries(t *testing.T, repo *InMemoryRepository) {
	t.Helper()
	records := []Record{
		{TenantID: "tenant-1", ActorID: "alice", EntityType: "booking", EntityID: "bk-1", Action: "booking_create", IPAddress: "203.0.113.10"},
		{TenantID: "tenant-1", ActorID: "alice", EntityType: "booking", EntityID: "bk-1", Action: "booking_confirm"},
		{TenantID: "tenant-1", ActorID: "bob", EntityType: "invoice", EntityID: "inv-1", Action: "invoice_create"},
	}
	for _, rec := range records {
		if _, err := repo.Append(rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestExport_CSV(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo)

	data, err := Export(repo, "tenant-1", ExportOptions{Format: ExportFormatCSV})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}

	// Header + 3 entries
	if len(rows) != 4 {
		t.Fatalf("CSV rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][1] != "Tenant ID" {
		t.Errorf("unexpected CSV header: %v", rows[0])
	}
	if rows[1][4] != "alice" {
		t.Errorf("first row actor = %q, want %q", rows[1][4], "alice")
	}
}

func TestExport_JSON(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo)

	data, err := Export(repo, "tenant-1", ExportOptions{Format: ExportFormatJSON})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var out []map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse JSON export: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("JSON entries = %d, want 3", len(out))
	}
	if out[0]["action"] != "booking_create" {
		t.Errorf("first entry action = %v, want booking_create", out[0]["action"])
	}
	if out[0]["hash"] == "" {
		t.Error("exported entries should include the chain hash")
	}
}

func TestExport_ActorFilter(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo)

	data, err := Export(repo, "tenant-1", ExportOptions{Format: ExportFormatJSON, ActorID: "bob"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var out []map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse JSON export: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("JSON entries = %d, want 1", len(out))
	}
	if out[0]["actor_id"] != "bob" {
		t.Errorf("entry actor = %v, want bob", out[0]["actor_id"])
	}
}

func TestExport_Limit(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo)

	data, err := Export(repo, "tenant-1", ExportOptions{Format: ExportFormatJSON, Limit: 2})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var out []map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse JSON export: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("JSON entries = %d, want 2 with limit", len(out))
	}
}

func TestExport_TimeRangeFilter(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo)

	// A future From excludes everything
	future := time.Now().Add(time.Hour)
	data, err := Export(repo, "tenant-1", ExportOptions{Format: ExportFormatJSON, From: future})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var out []map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse JSON export: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("JSON entries = %d, want 0 for future From", len(out))
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := Export(repo, "tenant-1", ExportOptions{Format: "xml"}); err == nil {
		t.Error("Export() with unsupported format should return error")
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo)

	data, err := Snapshot(repo, "tenant-1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}

	if snap.TenantID != "tenant-1" {
		t.Errorf("snapshot TenantID = %q, want tenant-1", snap.TenantID)
	}
	if snap.EntryCount != 3 {
		t.Errorf("snapshot EntryCount = %d, want 3", snap.EntryCount)
	}
	if len(snap.Entries) != 3 {
		t.Fatalf("snapshot entries = %d, want 3", len(snap.Entries))
	}

	lastHash, err := repo.LastHash("tenant-1")
	if err != nil {
		t.Fatalf("LastHash() error = %v", err)
	}
	if snap.HeadHash != lastHash {
		t.Errorf("snapshot HeadHash = %q, want live chain head %q", snap.HeadHash, lastHash)
	}
}
