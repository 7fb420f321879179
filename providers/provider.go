package providers

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	"github.com/malwarebo/invoicer/models"
)

// CheckoutProvider opens a hosted payment page for an invoice.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutSession, error)
}

// WebhookParser turns a raw provider callback into an event, verifying its
// signature when a secret is configured.
type WebhookParser interface {
	ParseWebhookEvent(payload []byte, signature string) (*stripe.Event, error)
	WebhookMode() WebhookMode
}

type WebhookMode string

const (
	// WebhookModeVerified checks every callback against the signing secret.
	WebhookModeVerified WebhookMode = "verified"
	// WebhookModeInsecure accepts unsigned callbacks. Development only.
	WebhookModeInsecure WebhookMode = "insecure"
)
