package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lodgeline/lodgeline/internal/billing"
	"github.com/lodgeline/lodgeline/internal/middleware"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// WebhookHandlers holds dependencies for Stripe webhook handlers.
type WebhookHandlers struct {
	webhookSecret string
	billing       *billing.Service
	webhookRepo   billing.WebhookRepository
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(webhookSecret string, billingSvc *billing.Service, webhookRepo billing.WebhookRepository) *WebhookHandlers {
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		billing:       billingSvc,
		webhookRepo:   webhookRepo,
	}
}

// HandleStripeWebhook processes Stripe webhook events with signature
// verification. POST /v1/webhooks/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEvent(body, signature, h.webhookSecret)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	slog.InfoContext(ctx, "webhook event received", "event_type", event.Type, "event_id", event.ID)

	if err := h.webhookRepo.RecordEvent(event.ID, string(event.Type)); err != nil {
		if errors.Is(err, billing.ErrEventAlreadyProcessed) {
			slog.InfoContext(ctx, "webhook event already processed, ignoring", "event_id", event.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		slog.ErrorContext(ctx, "failed to record webhook event", "event_id", event.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutSessionCompleted(ctx, event)
	default:
		slog.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type, "event_id", event.ID)
	}

	// Always acknowledge after recording: Stripe retries non-2xx
	// responses, and the dedupe record would reject the retry anyway.
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutSessionCompleted settles the invoice referenced in the
// session metadata. The settle path records the payment on the booking
// and posts it to the ledger.
func (h *WebhookHandlers) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		return
	}

	invoiceID := sess.Metadata["invoice_id"]
	tenantID := sess.Metadata["tenant_id"]
	if invoiceID == "" || tenantID == "" {
		slog.WarnContext(ctx, "checkout session missing invoice metadata", "event_id", event.ID, "session_id", sess.ID)
		return
	}

	// Settlement runs under a system actor: the webhook carries no user
	// credentials.
	settleCtx := middleware.SetTenantID(ctx, tenantID)
	settleCtx = middleware.SetActorID(settleCtx, "stripe-webhook")

	inv, err := h.billing.Settle(settleCtx, tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrInvoiceNotOpen) {
			slog.InfoContext(ctx, "invoice already settled", "invoice_id", invoiceID)
			return
		}
		slog.ErrorContext(ctx, "failed to settle invoice from webhook", "invoice_id", invoiceID, "error", err)
		return
	}

	slog.InfoContext(ctx, "invoice settled", "invoice_id", inv.ID, "number", inv.Number, "amount", inv.AmountDue)
}
