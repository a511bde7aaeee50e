package tenant

import (
	"testing"
)

func TestInMemoryRepository_InsertAndGet(t *testing.T) {
	repo := NewInMemoryRepository()

	tn := &Tenant{
		Name:     "Harborview Hotel",
		Type:     TypeHotel,
		Currency: "EUR",
	}
	if err := repo.Insert(tn); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if tn.ID == "" {
		t.Error("Insert() should generate an ID")
	}

	got, err := repo.GetByID(tn.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Harborview Hotel" {
		t.Errorf("GetByID() Name = %q, want %q", got.Name, "Harborview Hotel")
	}
	if got.Status != StatusActive {
		t.Errorf("Insert() should default Status to %q, got %q", StatusActive, got.Status)
	}
}

func TestInMemoryRepository_DuplicateName(t *testing.T) {
	repo := NewInMemoryRepository()

	if err := repo.Insert(&Tenant{Name: "Sunrise Travel", Type: TypeAgency, Currency: "USD"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := repo.Insert(&Tenant{Name: "Sunrise Travel", Type: TypeAgency, Currency: "USD"})
	if err != ErrDuplicateName {
		t.Errorf("Insert() duplicate name error = %v, want ErrDuplicateName", err)
	}
}

func TestInMemoryRepository_GetByID_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.GetByID("missing")
	if err != ErrTenantNotFound {
		t.Errorf("GetByID() error = %v, want ErrTenantNotFound", err)
	}
}

func TestInMemoryRepository_Update(t *testing.T) {
	repo := NewInMemoryRepository()

	tn := &Tenant{Name: "Sunrise Travel", Type: TypeAgency, Currency: "USD", CommissionPercent: 10}
	if err := repo.Insert(tn); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	tn.Status = StatusSuspended
	if err := repo.Update(tn); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(tn.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.IsActive() {
		t.Error("tenant should not be active after suspension")
	}
	if got.UpdatedAt == nil {
		t.Error("Update() should set UpdatedAt")
	}
}

func TestInMemoryRepository_List_NewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()

	names := []string{"A Hotel", "B Hotel", "C Hotel"}
	for _, name := range names {
		if err := repo.Insert(&Tenant{Name: name, Type: TypeHotel, Currency: "EUR"}); err != nil {
			t.Fatalf("Insert(%q) error = %v", name, err)
		}
	}

	got, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d tenants, want 3", len(got))
	}
	if got[0].Name != "C Hotel" {
		t.Errorf("List() first = %q, want newest %q", got[0].Name, "C Hotel")
	}
}

func TestValidType(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{TypeHotel, true},
		{TypeAgency, true},
		{"", false},
		{"wholesaler", false},
	}
	for _, tt := range tests {
		if got := ValidType(tt.in); got != tt.want {
			t.Errorf("ValidType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
