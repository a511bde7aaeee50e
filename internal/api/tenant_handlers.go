package api

import (
	"encoding/json"
	"errors"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/middleware"
	"github.com/lodgeline/lodgeline/internal/tenant"
)

// Tenant name validation constraints
const (
	MinTenantNameLength = 3
	MaxTenantNameLength = 64
)

// CreateTenantRequest represents the request body for creating a tenant.
type CreateTenantRequest struct {
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	Currency          string  `json:"currency"`
	CommissionPercent float64 `json:"commission_percent,omitempty"`
}

// UpdateTenantRequest represents the request body for updating a tenant.
// Only includes mutable fields (type is immutable).
type UpdateTenantRequest struct {
	Name              *string  `json:"name,omitempty"`
	Status            *string  `json:"status,omitempty"`
	CommissionPercent *float64 `json:"commission_percent,omitempty"`
}

// TenantHandlers holds dependencies for tenant HTTP handlers.
type TenantHandlers struct {
	repo  tenant.Repository
	audit audit.Repository
}

// NewTenantHandlers creates a new TenantHandlers instance.
func NewTenantHandlers(repo tenant.Repository, auditRepo audit.Repository) *TenantHandlers {
	return &TenantHandlers{repo: repo, audit: auditRepo}
}

// validateTenantName validates the tenant name. Returns an error message
// if validation fails, empty string if valid.
func validateTenantName(name string) string {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < MinTenantNameLength {
		return "name must be at least 3 characters"
	}
	if len(trimmed) > MaxTenantNameLength {
		return "name must not exceed 64 characters"
	}
	return ""
}

// HandleTenants routes /v1/tenants by method.
func (h *TenantHandlers) HandleTenants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createTenant(w, r)
	case http.MethodGet:
		h.listTenants(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// HandleTenantByID routes /v1/tenants/{id} by method.
func (h *TenantHandlers) HandleTenantByID(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimPrefix(r.URL.Path, "/v1/tenants/")
	if tenantID == "" || strings.Contains(tenantID, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTenant(w, r, tenantID)
	case http.MethodPatch, http.MethodPut:
		h.updateTenant(w, r, tenantID)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

func (h *TenantHandlers) createTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if errMsg := validateTenantName(req.Name); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	if !tenant.ValidType(req.Type) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "type must be 'hotel' or 'agency'")
		return
	}
	if errMsg := validateCurrency(req.Currency); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	if req.CommissionPercent < 0 || req.CommissionPercent > 100 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "commission_percent must be between 0 and 100")
		return
	}
	if req.Type == tenant.TypeHotel && req.CommissionPercent != 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "commission_percent only applies to agencies")
		return
	}

	t := &tenant.Tenant{
		ID:                uuid.NewString(),
		Name:              html.EscapeString(strings.TrimSpace(req.Name)),
		Type:              req.Type,
		Status:            tenant.StatusActive,
		Currency:          req.Currency,
		CommissionPercent: req.CommissionPercent,
		CreatedAt:         time.Now().UTC(),
	}
	if err := h.repo.Insert(t); err != nil {
		if errors.Is(err, tenant.ErrDuplicateName) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "tenant with this name already exists")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create tenant")
		return
	}

	WriteJSON(w, http.StatusCreated, t)
}

func (h *TenantHandlers) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.repo.List()
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list tenants")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (h *TenantHandlers) getTenant(w http.ResponseWriter, r *http.Request, tenantID string) {
	t, err := h.repo.GetByID(tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "tenant not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load tenant")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (h *TenantHandlers) updateTenant(w http.ResponseWriter, r *http.Request, tenantID string) {
	var req UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	t, err := h.repo.GetByID(tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "tenant not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load tenant")
		return
	}

	if req.Name != nil {
		if errMsg := validateTenantName(*req.Name); errMsg != "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
			return
		}
		t.Name = html.EscapeString(strings.TrimSpace(*req.Name))
	}
	if req.Status != nil {
		if *req.Status != tenant.StatusActive && *req.Status != tenant.StatusSuspended {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "status must be 'active' or 'suspended'")
			return
		}
		t.Status = *req.Status
	}
	if req.CommissionPercent != nil {
		if *req.CommissionPercent < 0 || *req.CommissionPercent > 100 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "commission_percent must be between 0 and 100")
			return
		}
		if t.Type == tenant.TypeHotel && *req.CommissionPercent != 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "commission_percent only applies to agencies")
			return
		}
		t.CommissionPercent = *req.CommissionPercent
	}

	if err := h.repo.Update(t); err != nil {
		if errors.Is(err, tenant.ErrDuplicateName) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "tenant with this name already exists")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update tenant")
		return
	}

	// The audit entry lands on the updated tenant's own chain.
	auditCtx := middleware.SetTenantID(r.Context(), tenantID)
	if err := audit.LogAction(auditCtx, h.audit, "tenant", tenantID, "tenant_update", audit.OutcomeSuccess); err != nil {
		slog.ErrorContext(r.Context(), "failed to audit tenant update", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record audit entry")
		return
	}

	WriteJSON(w, http.StatusOK, t)
}
