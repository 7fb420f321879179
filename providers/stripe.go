package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/utils"
)

const (
	MetadataInvoiceToken  = "invoice_token"
	MetadataInvoiceNumber = "invoice_number"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Tolerance bounds the age of a signed webhook. Zero uses the library
	// default of five minutes.
	Tolerance time.Duration
}

type StripeProvider struct {
	config  StripeConfig
	breaker *utils.CircuitBreaker
	logger  *utils.Logger
}

func CreateStripeProvider(config StripeConfig) *StripeProvider {
	stripe.Key = config.SecretKey
	return &StripeProvider{
		config:  config,
		breaker: utils.CreateCircuitBreaker(5, 30*time.Second),
		logger:  utils.NewLogger("stripe"),
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutSession, error) {
	if req.AmountMinor <= 0 {
		return nil, utils.ErrInvalidAmount
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Invoice " + req.InvoiceNumber),
					},
					UnitAmount: stripe.Int64(req.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.Description != "" {
		params.LineItems[0].PriceData.ProductData.Description = stripe.String(req.Description)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetadataInvoiceToken, req.InvoiceToken)
	params.AddMetadata(MetadataInvoiceNumber, req.InvoiceNumber)
	params.Context = ctx

	var cs *stripe.CheckoutSession
	err := p.breaker.Execute(ctx, func() error {
		var err error
		cs, err = session.New(params)
		return err
	})
	if err != nil {
		if errors.Is(err, utils.ErrCircuitOpen) {
			return nil, utils.WrapAPIError(err, utils.ErrProviderUnavailable)
		}
		return nil, utils.WrapAPIError(err, utils.ErrProviderError)
	}

	return &models.CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

func (p *StripeProvider) WebhookMode() WebhookMode {
	if p.config.WebhookSecret == "" {
		return WebhookModeInsecure
	}
	return WebhookModeVerified
}

func (p *StripeProvider) ParseWebhookEvent(payload []byte, signature string) (*stripe.Event, error) {
	if p.WebhookMode() == WebhookModeInsecure {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, utils.WrapAPIError(err, utils.ErrWebhookInvalidPayload)
		}
		return &event, nil
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                p.config.Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, utils.WrapAPIError(err, utils.ErrWebhookInvalidSignature)
		}
		return nil, utils.WrapAPIError(err, utils.ErrWebhookInvalidPayload)
	}
	return &event, nil
}

// CheckoutSessionFromEvent decodes the session carried by a checkout.session
// event.
func CheckoutSessionFromEvent(event *stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &cs, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
