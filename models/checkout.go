package models

type CheckoutRequest struct {
	InvoiceToken  string
	InvoiceNumber string
	Description   string
	CustomerEmail string
	Currency      string
	// AmountMinor is the charge in the currency's minor unit (cents).
	AmountMinor int64
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}
