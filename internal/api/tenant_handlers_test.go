package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/tenant"
)

func newTenantFixture(t *testing.T) (*TenantHandlers, *tenant.InMemoryRepository, *audit.InMemoryRepository) {
	t.Helper()
	repo := tenant.NewInMemoryRepository()
	aud := audit.NewInMemoryRepository()
	return NewTenantHandlers(repo, aud), repo, aud
}

func TestCreateTenant(t *testing.T) {
	h, _, _ := newTenantFixture(t)

	req := authedRequest(http.MethodPost, "/v1/tenants", "admin-tenant", CreateTenantRequest{
		Name:     "Hotel Adler",
		Type:     tenant.TypeHotel,
		Currency: "EUR",
	})
	w := httptest.NewRecorder()
	h.HandleTenants(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}
	var created tenant.Tenant
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode tenant: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated tenant ID")
	}
	if created.Status != tenant.StatusActive {
		t.Errorf("Status = %q, want active", created.Status)
	}
}

func TestCreateTenant_Validation(t *testing.T) {
	tests := []struct {
		name string
		body CreateTenantRequest
	}{
		{"short name", CreateTenantRequest{Name: "ab", Type: tenant.TypeHotel, Currency: "EUR"}},
		{"bad type", CreateTenantRequest{Name: "Hotel Adler", Type: "resort", Currency: "EUR"}},
		{"bad currency", CreateTenantRequest{Name: "Hotel Adler", Type: tenant.TypeHotel, Currency: "eur"}},
		{"hotel with commission", CreateTenantRequest{Name: "Hotel Adler", Type: tenant.TypeHotel, Currency: "EUR", CommissionPercent: 10}},
		{"commission out of range", CreateTenantRequest{Name: "Travel Co", Type: tenant.TypeAgency, Currency: "EUR", CommissionPercent: 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTenantFixture(t)
			req := authedRequest(http.MethodPost, "/v1/tenants", "admin-tenant", tt.body)
			w := httptest.NewRecorder()
			h.HandleTenants(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if code := decodeErrorCode(t, w.Body); code != ErrCodeValidation {
				t.Errorf("error code = %q, want validation_error", code)
			}
		})
	}
}

func TestCreateTenant_DuplicateName(t *testing.T) {
	h, _, _ := newTenantFixture(t)

	body := CreateTenantRequest{Name: "Hotel Adler", Type: tenant.TypeHotel, Currency: "EUR"}
	for i, wantStatus := range []int{http.StatusCreated, http.StatusConflict} {
		req := authedRequest(http.MethodPost, "/v1/tenants", "admin-tenant", body)
		w := httptest.NewRecorder()
		h.HandleTenants(w, req)
		if w.Code != wantStatus {
			t.Fatalf("attempt %d: status = %d, want %d", i+1, w.Code, wantStatus)
		}
		if wantStatus == http.StatusConflict {
			if code := decodeErrorCode(t, w.Body); code != ErrCodeConflict {
				t.Errorf("error code = %q, want conflict", code)
			}
		}
	}
}

func TestUpdateTenant(t *testing.T) {
	h, repo, aud := newTenantFixture(t)

	seeded := &tenant.Tenant{
		Name:     "Travel Co",
		Type:     tenant.TypeAgency,
		Status:   tenant.StatusActive,
		Currency: "EUR",
	}
	if err := repo.Insert(seeded); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	status := tenant.StatusSuspended
	commission := 12.5
	req := authedRequest(http.MethodPatch, "/v1/tenants/"+seeded.ID, "admin-tenant", UpdateTenantRequest{
		Status:            &status,
		CommissionPercent: &commission,
	})
	w := httptest.NewRecorder()
	h.HandleTenantByID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	var updated tenant.Tenant
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to decode tenant: %v", err)
	}
	if updated.Status != tenant.StatusSuspended {
		t.Errorf("Status = %q, want suspended", updated.Status)
	}
	if updated.CommissionPercent != 12.5 {
		t.Errorf("CommissionPercent = %v, want 12.5", updated.CommissionPercent)
	}

	// The update lands on the updated tenant's own chain.
	entries, err := aud.QueryByTenant(seeded.ID, 0)
	if err != nil {
		t.Fatalf("QueryByTenant() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "tenant_update" {
		t.Errorf("audit entries = %+v, want one tenant_update", entries)
	}
}

func TestUpdateTenant_NotFound(t *testing.T) {
	h, _, _ := newTenantFixture(t)

	name := "New Name Co"
	req := authedRequest(http.MethodPatch, "/v1/tenants/missing", "admin-tenant", UpdateTenantRequest{Name: &name})
	w := httptest.NewRecorder()
	h.HandleTenantByID(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetTenant(t *testing.T) {
	h, repo, _ := newTenantFixture(t)

	seeded := &tenant.Tenant{Name: "Hotel Adler", Type: tenant.TypeHotel, Status: tenant.StatusActive, Currency: "EUR"}
	if err := repo.Insert(seeded); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	req := authedRequest(http.MethodGet, "/v1/tenants/"+seeded.ID, "admin-tenant", nil)
	w := httptest.NewRecorder()
	h.HandleTenantByID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got tenant.Tenant
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode tenant: %v", err)
	}
	if got.Name != "Hotel Adler" {
		t.Errorf("Name = %q, want Hotel Adler", got.Name)
	}
}
