package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/monitoring"
	"github.com/malwarebo/invoicer/providers"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/utils"
)

const (
	NoticePaymentProcessing = "Payment processing. You will receive a confirmation email shortly."
	NoticePaymentCancelled  = "Payment cancelled."
	AlertNotPayable         = "This invoice cannot be paid."
	AlertProviderError      = "Payment service error. Please try again."
)

// Links builds the absolute URLs handed to clients and to the payment
// provider.
type Links struct {
	baseURL string
}

func NewLinks(baseURL string) Links {
	return Links{baseURL: strings.TrimRight(baseURL, "/")}
}

func (l Links) PublicInvoice(token string) string {
	return l.baseURL + PublicInvoicePath(token)
}

func (l Links) PaymentSuccess(token string) string {
	return l.baseURL + "/pay/" + url.PathEscape(token) + "/success"
}

func (l Links) PaymentCancel(token string) string {
	return l.baseURL + "/pay/" + url.PathEscape(token) + "/cancel"
}

func PublicInvoicePath(token string) string {
	return "/i/" + url.PathEscape(token)
}

// PublicInvoiceRedirect is the public page path with a flash message attached.
func PublicInvoiceRedirect(token, key, message string) string {
	return PublicInvoicePath(token) + "?" + url.Values{key: []string{message}}.Encode()
}

type PaymentService struct {
	invoiceStore *stores.InvoiceStore
	provider     providers.CheckoutProvider
	currency     string
	links        Links
	logger       *utils.Logger
}

func CreatePaymentService(invoiceStore *stores.InvoiceStore, provider providers.CheckoutProvider, currency string, links Links) *PaymentService {
	if currency == "" {
		currency = "sgd"
	}
	return &PaymentService{
		invoiceStore: invoiceStore,
		provider:     provider,
		currency:     strings.ToLower(currency),
		links:        links,
		logger:       utils.NewLogger("payments"),
	}
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// StartCheckout opens a provider checkout session for the invoice behind
// token and returns the URL to send the payer to. Drafts are reported as
// missing, as on the public page.
func (s *PaymentService) StartCheckout(ctx context.Context, token string) (string, error) {
	invoice, err := getPublic(ctx, s.invoiceStore, token)
	if err != nil {
		return "", err
	}
	if !invoice.Payable() {
		return "", utils.ErrInvoiceNotPayable
	}

	amount := ToMinorUnits(invoice.Total)
	if amount <= 0 {
		return "", utils.WrapAPIError(fmt.Errorf("invoice total is %s", invoice.Total.StringFixed(models.MoneyScale)), utils.ErrInvoiceNotPayable)
	}

	req := &models.CheckoutRequest{
		InvoiceToken:  invoice.Token,
		InvoiceNumber: invoice.Number,
		Description:   "Invoice Payment",
		Currency:      s.currency,
		AmountMinor:   amount,
		SuccessURL:    s.links.PaymentSuccess(invoice.Token),
		CancelURL:     s.links.PaymentCancel(invoice.Token),
	}
	if invoice.Client != nil {
		req.Description = invoice.Client.Name
		req.CustomerEmail = invoice.Client.Email
	}

	start := time.Now()
	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		monitoring.RecordCheckout("failed", time.Since(start))
		utils.LogError(ctx, err, "Checkout session failed", map[string]interface{}{
			"invoice_id": invoice.ID,
			"number":     invoice.Number,
		})
		return "", err
	}

	monitoring.RecordCheckout("created", time.Since(start))
	s.logger.Info(ctx, "Checkout session created", map[string]interface{}{
		"invoice_id": invoice.ID,
		"session_id": session.ID,
		"amount":     amount,
		"currency":   s.currency,
	})
	return session.URL, nil
}

// ConfirmReturn checks that token names an invoice before the payer is sent
// back to it from the provider's success page.
func (s *PaymentService) ConfirmReturn(ctx context.Context, token string) error {
	_, err := getPublic(ctx, s.invoiceStore, token)
	return err
}
