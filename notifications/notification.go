package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/malwarebo/invoicer/models"
)

type NotificationType string

const NotificationPaymentReceived NotificationType = "payment_received"

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Notification carries everything a worker needs, so delivery does not read
// the database.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	InvoiceID     string           `json:"invoice_id"`
	InvoiceNumber string           `json:"invoice_number"`
	ClientName    string           `json:"client_name"`
	ClientEmail   string           `json:"client_email"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	PublicURL     string           `json:"public_url"`
	CreatedAt     time.Time        `json:"created_at"`
}

func NewPaymentReceived(invoice *models.Invoice, currency, publicURL string) *Notification {
	n := &Notification{
		ID:            uuid.NewString(),
		Type:          NotificationPaymentReceived,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		Amount:        invoice.Total,
		Currency:      currency,
		PublicURL:     publicURL,
		CreatedAt:     time.Now().UTC(),
	}
	if invoice.Client != nil {
		n.ClientName = invoice.Client.Name
		n.ClientEmail = invoice.Client.Email
	}
	return n
}

func (n *Notification) String() string {
	return fmt.Sprintf("%s %s (%s)", n.Type, n.InvoiceNumber, n.ID)
}

// Queue decouples producers such as the webhook handler from delivery.
// Enqueue must not block on a slow consumer.
type Queue interface {
	Enqueue(ctx context.Context, n *Notification) error
	// Dequeue blocks until a notification is available or ctx is done.
	Dequeue(ctx context.Context) (*Notification, error)
	Close() error
}
