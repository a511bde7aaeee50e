package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/middleware"
	"github.com/lodgeline/lodgeline/internal/pricing"
)

// RatePlanRequest represents the request body for creating or replacing
// a rate plan. Rates are minor units; percents are 0-100.
type RatePlanRequest struct {
	RoomType              string                  `json:"room_type"`
	BaseRate              int64                   `json:"base_rate"`
	Currency              string                  `json:"currency"`
	TaxPercent            float64                 `json:"tax_percent"`
	AgencyDiscountPercent float64                 `json:"agency_discount_percent"`
	OccupancyMultipliers  map[int]float64         `json:"occupancy_multipliers,omitempty"`
	Overrides             []SeasonalOverrideEntry `json:"overrides,omitempty"`
}

// SeasonalOverrideEntry is one seasonal rate override in a rate plan
// request. From and To are inclusive YYYY-MM-DD dates.
type SeasonalOverrideEntry struct {
	Name     string `json:"name,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Rate     int64  `json:"rate"`
	Priority int    `json:"priority"`
}

// QuoteRequest represents the request body for pricing a stay.
type QuoteRequest struct {
	RoomType  string `json:"room_type"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Occupancy int    `json:"occupancy"`
	Agency    bool   `json:"agency"`
}

// PricingHandlers holds dependencies for rate plan and quote handlers.
type PricingHandlers struct {
	repo  pricing.Repository
	audit audit.Repository
}

// NewPricingHandlers creates a new PricingHandlers instance.
func NewPricingHandlers(repo pricing.Repository, auditRepo audit.Repository) *PricingHandlers {
	return &PricingHandlers{repo: repo, audit: auditRepo}
}

// HandleRatePlans routes /v1/rate-plans by method.
func (h *PricingHandlers) HandleRatePlans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut, http.MethodPost:
		h.upsertRatePlan(w, r)
	case http.MethodGet:
		h.listRatePlans(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// HandleRatePlanByRoomType routes GET /v1/rate-plans/{room_type}.
func (h *PricingHandlers) HandleRatePlanByRoomType(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	roomType := strings.TrimPrefix(r.URL.Path, "/v1/rate-plans/")
	plan, err := h.repo.Get(tenantID, roomType)
	if err != nil {
		if errors.Is(err, pricing.ErrRatePlanNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "rate plan not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load rate plan")
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}

func (h *PricingHandlers) upsertRatePlan(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}

	var req RatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if errMsg := validateRatePlan(&req); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	plan := &pricing.RatePlan{
		TenantID:              tenantID,
		RoomType:              strings.TrimSpace(req.RoomType),
		BaseRate:              req.BaseRate,
		Currency:              req.Currency,
		TaxPercent:            req.TaxPercent,
		AgencyDiscountPercent: req.AgencyDiscountPercent,
		OccupancyMultipliers:  req.OccupancyMultipliers,
	}
	for _, o := range req.Overrides {
		from, err := parseDay(o.From)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "override from must be a YYYY-MM-DD date")
			return
		}
		to, err := parseDay(o.To)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "override to must be a YYYY-MM-DD date")
			return
		}
		if to.Before(from) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "override to must not be before from")
			return
		}
		plan.Overrides = append(plan.Overrides, pricing.SeasonalOverride{
			ID:       uuid.NewString(),
			Name:     strings.TrimSpace(o.Name),
			From:     from,
			To:       to,
			Rate:     o.Rate,
			Priority: o.Priority,
		})
	}

	if err := h.repo.Upsert(plan); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to store rate plan")
		return
	}

	if err := audit.LogAction(r.Context(), h.audit, "rate_plan", plan.ID, "rate_plan_update", audit.OutcomeSuccess); err != nil {
		slog.ErrorContext(r.Context(), "failed to audit rate plan update", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record audit entry")
		return
	}

	WriteJSON(w, http.StatusOK, plan)
}

func (h *PricingHandlers) listRatePlans(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}

	plans, err := h.repo.ListByTenant(tenantID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list rate plans")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"rate_plans": plans})
}

// Quote handles POST /v1/quotes.
func (h *PricingHandlers) Quote(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	checkIn, err := parseDay(req.CheckIn)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "check_in must be a YYYY-MM-DD date")
		return
	}
	checkOut, err := parseDay(req.CheckOut)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "check_out must be a YYYY-MM-DD date")
		return
	}

	plan, err := h.repo.Get(tenantID, strings.TrimSpace(req.RoomType))
	if err != nil {
		if errors.Is(err, pricing.ErrRatePlanNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "rate plan not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load rate plan")
		return
	}

	quote, err := plan.PriceStay(pricing.Stay{
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Occupancy: req.Occupancy,
		Agency:    req.Agency,
	})
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrInvalidStay):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidStay)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidStay, "check_out must be after check_in")
		case errors.Is(err, pricing.ErrInvalidOccupancy):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "occupancy must be positive")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to price stay")
		}
		return
	}

	WriteJSON(w, http.StatusOK, quote)
}

// validateRatePlan validates a rate plan request. Returns an error
// message if validation fails, empty string if valid.
func validateRatePlan(req *RatePlanRequest) string {
	if strings.TrimSpace(req.RoomType) == "" {
		return "room_type is required"
	}
	if req.BaseRate <= 0 {
		return "base_rate must be positive"
	}
	if errMsg := validateCurrency(req.Currency); errMsg != "" {
		return errMsg
	}
	if req.TaxPercent < 0 || req.TaxPercent > 100 {
		return "tax_percent must be between 0 and 100"
	}
	if req.AgencyDiscountPercent < 0 || req.AgencyDiscountPercent > 100 {
		return "agency_discount_percent must be between 0 and 100"
	}
	for occupancy, mult := range req.OccupancyMultipliers {
		if occupancy <= 0 {
			return "occupancy_multipliers keys must be positive"
		}
		if mult <= 0 {
			return "occupancy_multipliers values must be positive"
		}
	}
	for _, o := range req.Overrides {
		if o.Rate <= 0 {
			return "override rates must be positive"
		}
	}
	return ""
}
