package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lodgeline/lodgeline/internal/billing"
	"github.com/lodgeline/lodgeline/internal/booking"
	"github.com/lodgeline/lodgeline/internal/middleware"
)

// CreateInvoiceRequest represents the request body for assembling an
// invoice from a booking's outstanding charges.
type CreateInvoiceRequest struct {
	BookingID string `json:"booking_id"`
}

// CheckoutResponse carries the Stripe Checkout URL for an invoice.
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// BillingHandlers holds dependencies for invoice HTTP handlers.
type BillingHandlers struct {
	svc        *billing.Service
	stripe     billing.Client
	successURL string
	cancelURL  string
}

// NewBillingHandlers creates a new BillingHandlers instance.
func NewBillingHandlers(svc *billing.Service, stripeClient billing.Client, successURL, cancelURL string) *BillingHandlers {
	return &BillingHandlers{
		svc:        svc,
		stripe:     stripeClient,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateInvoice handles POST /v1/invoices.
func (h *BillingHandlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
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

	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "booking_id is required")
		return
	}

	inv, err := h.svc.BuildInvoice(r.Context(), tenantID, req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "booking not found")
		case errors.Is(err, billing.ErrNothingToInvoice):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "booking has no outstanding charges")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create invoice")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, inv)
}

// HandleInvoiceByID routes /v1/invoices/{id} and
// /v1/invoices/{id}/checkout.
func (h *BillingHandlers) HandleInvoiceByID(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/invoices/"), "/")
	invoiceID := pathParts[0]
	if invoiceID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "invoice not found")
		return
	}

	if len(pathParts) == 1 {
		if r.Method != http.MethodGet {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.getInvoice(w, r, tenantID, invoiceID)
		return
	}

	if pathParts[1] == "checkout" {
		if r.Method != http.MethodPost {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.createCheckout(w, r, tenantID, invoiceID)
		return
	}

	ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
}

func (h *BillingHandlers) getInvoice(w http.ResponseWriter, r *http.Request, tenantID, invoiceID string) {
	inv, err := h.svc.Get(tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrInvoiceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "invoice not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load invoice")
		return
	}
	WriteJSON(w, http.StatusOK, inv)
}

func (h *BillingHandlers) createCheckout(w http.ResponseWriter, r *http.Request, tenantID, invoiceID string) {
	inv, err := h.svc.Get(tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrInvoiceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "invoice not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load invoice")
		return
	}
	if inv.Status != billing.StatusOpen {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvoiceNotOpen)
		WriteError(w, ctx, http.StatusConflict, ErrCodeInvoiceNotOpen, "invoice is not open")
		return
	}

	sess, err := h.stripe.CreateCheckoutSession(&billing.CheckoutParams{
		InvoiceID:   inv.ID,
		TenantID:    inv.TenantID,
		Description: "Invoice " + inv.Number,
		Amount:      inv.AmountDue,
		Currency:    strings.ToLower(inv.Currency),
		SuccessURL:  h.successURL,
		CancelURL:   h.cancelURL,
	})
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create checkout session")
		return
	}

	if err := h.svc.AttachCheckoutSession(tenantID, invoiceID, sess.ID); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to attach checkout session")
		return
	}

	WriteJSON(w, http.StatusCreated, CheckoutResponse{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
	})
}
