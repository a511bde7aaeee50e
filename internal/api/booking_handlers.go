package api

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/lodgeline/lodgeline/internal/booking"
	"github.com/lodgeline/lodgeline/internal/ledger"
	"github.com/lodgeline/lodgeline/internal/middleware"
)

// Guest name validation constraints
const (
	MinGuestNameLength = 2
	MaxGuestNameLength = 128
)

// CreateBookingRequest represents the request body for creating a booking.
// Dates are calendar days in YYYY-MM-DD form; amounts are minor units.
type CreateBookingRequest struct {
	AgencyID  string `json:"agency_id,omitempty"`
	RoomType  string `json:"room_type"`
	GuestName string `json:"guest_name"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Currency  string `json:"currency"`
	RoomTotal int64  `json:"room_total"`
	TaxAmount int64  `json:"tax_amount"`
}

// BookingEventRequest represents the request body for applying a
// lifecycle event to a booking.
type BookingEventRequest struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount,omitempty"`
	Note   string `json:"note,omitempty"`
}

// BookingHandlers holds dependencies for booking HTTP handlers.
type BookingHandlers struct {
	svc    *booking.Service
	repo   booking.Repository
	ledger ledger.Repository
}

// NewBookingHandlers creates a new BookingHandlers instance.
func NewBookingHandlers(svc *booking.Service, repo booking.Repository, led ledger.Repository) *BookingHandlers {
	return &BookingHandlers{svc: svc, repo: repo, ledger: led}
}

// validateGuestName validates the guest name. Returns an error message
// if validation fails, empty string if valid.
func validateGuestName(name string) string {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < MinGuestNameLength {
		return "guest_name must be at least 2 characters"
	}
	if len(trimmed) > MaxGuestNameLength {
		return "guest_name must not exceed 128 characters"
	}
	return ""
}

// validateCurrency checks for a three-letter uppercase ISO 4217 code.
func validateCurrency(currency string) string {
	if len(currency) != 3 {
		return "currency must be a 3-letter ISO 4217 code"
	}
	for _, c := range currency {
		if c < 'A' || c > 'Z' {
			return "currency must be a 3-letter uppercase ISO 4217 code"
		}
	}
	return ""
}

// parseDay parses a YYYY-MM-DD calendar day in UTC.
func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// CreateBooking handles POST /v1/bookings.
func (h *BookingHandlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.RoomType) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "room_type is required")
		return
	}
	if errMsg := validateGuestName(req.GuestName); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	if errMsg := validateCurrency(req.Currency); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	if req.RoomTotal < 0 || req.TaxAmount < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "amounts must not be negative")
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

	b, err := h.svc.Create(r.Context(), booking.CreateInput{
		TenantID:  tenantID,
		AgencyID:  strings.TrimSpace(req.AgencyID),
		RoomType:  strings.TrimSpace(req.RoomType),
		GuestName: html.EscapeString(strings.TrimSpace(req.GuestName)),
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Currency:  req.Currency,
		RoomTotal: req.RoomTotal,
		TaxAmount: req.TaxAmount,
	})
	if err != nil {
		if errors.Is(err, booking.ErrInvalidStay) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidStay)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidStay, "check_out must be after check_in")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create booking")
		return
	}

	WriteJSON(w, http.StatusCreated, b)
}

// ListBookings handles GET /v1/bookings.
func (h *BookingHandlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}

	bookings, err := h.repo.ListByTenant(tenantID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list bookings")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// HandleBookings routes /v1/bookings by method.
func (h *BookingHandlers) HandleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.CreateBooking(w, r)
	case http.MethodGet:
		h.ListBookings(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// HandleBookingByID routes /v1/bookings/{id}, /v1/bookings/{id}/events,
// and /v1/bookings/{id}/ledger.
func (h *BookingHandlers) HandleBookingByID(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/bookings/"), "/")
	bookingID := pathParts[0]
	if bookingID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "booking not found")
		return
	}

	if len(pathParts) == 1 {
		if r.Method != http.MethodGet {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.getBooking(w, r, tenantID, bookingID)
		return
	}

	switch pathParts[1] {
	case "events":
		switch r.Method {
		case http.MethodPost:
			h.applyEvent(w, r, tenantID, bookingID)
		case http.MethodGet:
			h.listEvents(w, r, tenantID, bookingID)
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		}
	case "ledger":
		if r.Method != http.MethodGet {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.bookingLedger(w, r, tenantID, bookingID)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

func (h *BookingHandlers) getBooking(w http.ResponseWriter, r *http.Request, tenantID, bookingID string) {
	b, err := h.repo.GetByID(tenantID, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "booking not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load booking")
		return
	}
	WriteJSON(w, http.StatusOK, b)
}

func (h *BookingHandlers) applyEvent(w http.ResponseWriter, r *http.Request, tenantID, bookingID string) {
	var req BookingEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if !booking.ValidEventType(req.Type) || req.Type == booking.EventCreated {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unknown event type")
		return
	}
	if req.Amount < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "amount must not be negative")
		return
	}

	b, err := h.svc.Apply(r.Context(), tenantID, bookingID, req.Type, booking.ApplyInput{
		Amount: req.Amount,
		Note:   html.EscapeString(strings.TrimSpace(req.Note)),
	})
	if err != nil {
		writeBookingError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, b)
}

func (h *BookingHandlers) listEvents(w http.ResponseWriter, r *http.Request, tenantID, bookingID string) {
	events, err := h.repo.Events(tenantID, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "booking not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load events")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *BookingHandlers) bookingLedger(w http.ResponseWriter, r *http.Request, tenantID, bookingID string) {
	if _, err := h.repo.GetByID(tenantID, bookingID); err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "booking not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load booking")
		return
	}

	postings, err := h.ledger.ByBooking(tenantID, bookingID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load postings")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"postings": postings})
}

// writeBookingError maps booking service errors to API error responses.
func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "booking not found")
	case errors.Is(err, booking.ErrInvalidTransition):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTransition)
		WriteError(w, ctx, http.StatusConflict, ErrCodeInvalidTransition, "event not valid in current booking status")
	case errors.Is(err, booking.ErrVersionConflict):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeVersionConflict)
		WriteError(w, ctx, http.StatusConflict, ErrCodeVersionConflict, "booking was modified concurrently, reload and retry")
	case errors.Is(err, booking.ErrAmountRequired):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "amount is required for this event type")
	case errors.Is(err, booking.ErrRefundExceedsPaid):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeRefundExceedsPaid)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeRefundExceedsPaid, "refund exceeds net paid amount")
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to apply event")
	}
}
