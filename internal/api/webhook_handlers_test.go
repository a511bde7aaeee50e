package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/lodgeline/lodgeline/internal/billing"
	"github.com/lodgeline/lodgeline/internal/middleware"
)

const webhookTestSecret = "whsec_test_secret"

type webhookFixture struct {
	handlers *WebhookHandlers
	billing  *billingFixture
	events   *billing.InMemoryWebhookRepository
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	bf := newBillingFixture(t)
	events := billing.NewInMemoryWebhookRepository()
	return &webhookFixture{
		handlers: NewWebhookHandlers(webhookTestSecret, bf.svc, events),
		billing:  bf,
		events:   events,
	}
}

// signPayload builds a Stripe-Signature header the way the SDK's
// verifier expects: an HMAC-SHA256 of "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedEvent(eventID, invoiceID, tenantID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_123",
				"metadata": {
					"invoice_id": %q,
					"tenant_id": %q
				}
			}
		}
	}`, eventID, stripe.APIVersion, invoiceID, tenantID))
}

func openInvoice(t *testing.T, f *webhookFixture) *billing.Invoice {
	t.Helper()
	b := confirmedBooking(t, f.billing, "t1")
	ctx := middleware.SetTenantID(context.Background(), "t1")
	ctx = middleware.SetActorID(ctx, "actor-1")
	inv, err := f.billing.svc.BuildInvoice(ctx, "t1", b.ID)
	if err != nil {
		t.Fatalf("failed to build invoice: %v", err)
	}
	return inv
}

func TestStripeWebhook_SettlesInvoice(t *testing.T) {
	f := newWebhookFixture(t)
	inv := openInvoice(t, f)

	payload := checkoutCompletedEvent("evt_1", inv.ID, "t1")
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signPayload(payload, webhookTestSecret))
	w := httptest.NewRecorder()
	f.handlers.HandleStripeWebhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	settled, err := f.billing.svc.Get("t1", inv.ID)
	if err != nil {
		t.Fatalf("failed to reload invoice: %v", err)
	}
	if settled.Status != billing.StatusSettled {
		t.Errorf("expected settled invoice, got %q", settled.Status)
	}
	if settled.SettledAt == nil {
		t.Error("expected settled_at to be set")
	}
}

func TestStripeWebhook_DuplicateEvent(t *testing.T) {
	f := newWebhookFixture(t)
	inv := openInvoice(t, f)

	payload := checkoutCompletedEvent("evt_dup", inv.ID, "t1")
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(string(payload)))
		req.Header.Set("Stripe-Signature", signPayload(payload, webhookTestSecret))
		w := httptest.NewRecorder()
		f.handlers.HandleStripeWebhook(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	settled, err := f.billing.svc.Get("t1", inv.ID)
	if err != nil {
		t.Fatalf("failed to reload invoice: %v", err)
	}
	if settled.Status != billing.StatusSettled {
		t.Errorf("expected settled invoice, got %q", settled.Status)
	}
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	f := newWebhookFixture(t)

	payload := checkoutCompletedEvent("evt_2", "inv-1", "t1")
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(string(payload)))
	w := httptest.NewRecorder()
	f.handlers.HandleStripeWebhook(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w.Body); code != ErrCodeBadRequest {
		t.Errorf("expected error code %q, got %q", ErrCodeBadRequest, code)
	}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(t)

	payload := checkoutCompletedEvent("evt_3", "inv-1", "t1")
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signPayload(payload, "whsec_wrong_secret"))
	w := httptest.NewRecorder()
	f.handlers.HandleStripeWebhook(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestStripeWebhook_UnhandledEventType(t *testing.T) {
	f := newWebhookFixture(t)

	payload := []byte(fmt.Sprintf(`{"id": "evt_4", "api_version": %q, "type": "invoice.paid", "data": {"object": {}}}`, stripe.APIVersion))
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signPayload(payload, webhookTestSecret))
	w := httptest.NewRecorder()
	f.handlers.HandleStripeWebhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}
