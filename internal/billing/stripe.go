package billing

import (
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// CheckoutParams carries what Stripe needs to collect an invoice's
// amount due.
type CheckoutParams struct {
	InvoiceID   string
	TenantID    string
	Description string
	Amount      int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Client is an interface over Stripe operations so handlers and tests
// can swap in a fake.
type Client interface {
	CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error)
}

// StripeClient implements Client with the real Stripe SDK.
type StripeClient struct{}

// NewStripeClient configures the Stripe SDK with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// CreateCheckoutSession creates a payment-mode Checkout Session for the
// invoice's amount due. The invoice and tenant IDs ride in the session
// metadata; the webhook handler reads them back to record the payment.
func (c *StripeClient) CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"invoice_id": params.InvoiceID,
			"tenant_id":  params.TenantID,
		},
	}
	return session.New(sessionParams)
}
