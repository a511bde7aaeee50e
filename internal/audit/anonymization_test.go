package audit

import (
	"context"
	"testing"
	"time"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"IPv4", "192.168.1.100", "192.168.1.0"},
		{"IPv4 already zeroed", "10.0.0.0", "10.0.0.0"},
		{"IPv6", "2001:db8:85a3:1:2:3:4:5", "2001:db8:85a3::"},
		{"empty", "", ""},
		{"garbage", "not-an-ip", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnonymizeIP(tt.in); got != tt.want {
				t.Errorf("AnonymizeIP(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInMemoryRepository_AnonymizeIPsBefore(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_create", IPAddress: "203.0.113.55",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Entry is fresh, so a past cutoff touches nothing
	updated, err := repo.AnonymizeIPsBefore(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("AnonymizeIPsBefore() error = %v", err)
	}
	if updated != 0 {
		t.Errorf("AnonymizeIPsBefore() updated = %d, want 0", updated)
	}

	// A future cutoff covers the entry
	updated, err = repo.AnonymizeIPsBefore(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("AnonymizeIPsBefore() error = %v", err)
	}
	if updated != 1 {
		t.Errorf("AnonymizeIPsBefore() updated = %d, want 1", updated)
	}

	entries, err := repo.QueryByTenant("tenant-1", 0)
	if err != nil {
		t.Fatalf("QueryByTenant() error = %v", err)
	}
	if entries[0].IPAddress != "203.0.113.0" {
		t.Errorf("IPAddress after anonymization = %q, want 203.0.113.0", entries[0].IPAddress)
	}

	// Chain must still verify after anonymization
	broken, err := repo.VerifyChain("tenant-1")
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if broken != 0 {
		t.Errorf("VerifyChain() = %d, want 0 after anonymization", broken)
	}
}

func TestAnonymizationJob_DryRun(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.Append(Record{
		TenantID: "tenant-1", ActorID: "a", EntityType: "booking", EntityID: "bk-1",
		Action: "booking_create", IPAddress: "203.0.113.55",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	job := NewAnonymizationJob(AnonymizationJobConfig{Anonymizer: repo, DryRun: true})
	updated, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if updated != 0 {
		t.Errorf("dry run updated = %d, want 0", updated)
	}

	entries, _ := repo.QueryByTenant("tenant-1", 0)
	if entries[0].IPAddress != "203.0.113.55" {
		t.Errorf("dry run should not modify entries, got IP %q", entries[0].IPAddress)
	}
}
