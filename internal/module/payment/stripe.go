package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// PayloadMetadataKey is the Stripe metadata key carrying the purchase payload.
const PayloadMetadataKey = "payload"

// StripePayment is a verified successful Stripe payment.
type StripePayment struct {
	EventID   string
	EventType string
	// PaymentID identifies the money movement. A checkout session and its
	// payment intent share it, so both deliveries dedupe to one purchase.
	PaymentID string
	Payload   string
}

// StripeVerifier authenticates and decodes Stripe webhooks.
type StripeVerifier struct {
	webhookSecret string
}

// NewStripeVerifier creates a verifier for the endpoint signing secret.
func NewStripeVerifier(webhookSecret string) *StripeVerifier {
	return &StripeVerifier{webhookSecret: webhookSecret}
}

// Parse verifies the signature and extracts the purchase. Events that do not
// confirm a payment return ErrUnsupportedEvent.
func (v *StripeVerifier) Parse(payload []byte, signature string) (*StripePayment, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWebhookSignature, err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: %s has no data", ErrUnsupportedEvent, event.Type)
	}

	out := &StripePayment{EventID: event.ID, EventType: string(event.Type)}

	switch out.EventType {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil, fmt.Errorf("%w: checkout session %s is %s", ErrUnsupportedEvent, session.ID, session.PaymentStatus)
		}
		out.PaymentID = session.ID
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			out.PaymentID = session.PaymentIntent.ID
		}
		out.Payload = session.Metadata[PayloadMetadataKey]
		if out.Payload == "" {
			out.Payload = session.ClientReferenceID
		}

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("unmarshal payment intent: %w", err)
		}
		out.PaymentID = pi.ID
		out.Payload = pi.Metadata[PayloadMetadataKey]

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
	}

	if out.Payload == "" {
		return nil, fmt.Errorf("%w: %s %s", ErrMissingPayload, out.EventType, out.PaymentID)
	}
	return out, nil
}
