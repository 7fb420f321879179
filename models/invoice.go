package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/utils"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"

	// InvoiceStatusOverdue is only ever computed for display. It is never
	// written to the status column.
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// DefaultPaymentTermDays is the gap between issue and due date for
// duplicated invoices.
const DefaultPaymentTermDays = 30

type Invoice struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ClientID      string          `json:"client_id" gorm:"type:varchar(36);not null;index"`
	Client        *Client         `json:"client,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Number        string          `json:"number" gorm:"type:varchar(32);not null;uniqueIndex"`
	Token         string          `json:"token" gorm:"type:varchar(64);not null;uniqueIndex"`
	IssueDate     Date            `json:"issue_date" gorm:"not null"`
	DueDate       Date            `json:"due_date" gorm:"not null;index"`
	Status        InvoiceStatus   `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	Subtotal      decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2);not null;default:0"`
	TotalDiscount decimal.Decimal `json:"total_discount" gorm:"type:decimal(10,2);not null;default:0"`
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(10,2);not null;default:0"`
	Notes         string          `json:"notes" gorm:"type:text"`
	SentAt        *time.Time      `json:"sent_at"`
	PaidAt        *time.Time      `json:"paid_at"`
	CancelledAt   *time.Time      `json:"cancelled_at"`
	LineItems     []LineItem      `json:"line_items" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// ApplyTotals recalculates the cached totals from the current line items.
func (i *Invoice) ApplyTotals() {
	totals := CalculateTotals(i.LineItems).Rounded()
	i.Subtotal = totals.Subtotal
	i.TotalDiscount = totals.TotalDiscount
	i.Total = totals.Total
}

func (i *Invoice) Totals() Totals {
	return Totals{Subtotal: i.Subtotal, TotalDiscount: i.TotalDiscount, Total: i.Total}
}

// InvoiceSequence is the per-year counter behind invoice numbers.
type InvoiceSequence struct {
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

type CreateInvoiceRequest struct {
	ClientID  string          `json:"client_id"`
	Number    string          `json:"number,omitempty"`
	IssueDate *Date           `json:"issue_date,omitempty"`
	DueDate   *Date           `json:"due_date,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	LineItems []LineItemInput `json:"line_items"`
}

func (r *CreateInvoiceRequest) Validate() error {
	var errs utils.ValidationErrors
	if r.ClientID == "" {
		errs.Addf("client_id", "is required")
	}
	errs.Add(utils.ValidateString(r.Number, "number", 0, 32, false))
	if r.IssueDate != nil && r.DueDate != nil && r.DueDate.Before(*r.IssueDate) {
		errs.Addf("due_date", "must not be before issue_date")
	}
	return errs.OrNil()
}

// UpdateInvoiceRequest leaves nil fields untouched. A non-nil LineItems
// replaces the invoice body: rows whose id is not submitted are removed.
type UpdateInvoiceRequest struct {
	ClientID  *string          `json:"client_id,omitempty"`
	IssueDate *Date            `json:"issue_date,omitempty"`
	DueDate   *Date            `json:"due_date,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
	LineItems *[]LineItemInput `json:"line_items,omitempty"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	var errs utils.ValidationErrors
	if r.ClientID != nil && *r.ClientID == "" {
		errs.Addf("client_id", "must not be empty")
	}
	if r.IssueDate != nil && r.DueDate != nil && r.DueDate.Before(*r.IssueDate) {
		errs.Addf("due_date", "must not be before issue_date")
	}
	return errs.OrNil()
}

type ListInvoicesRequest struct {
	ClientID string `json:"client_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// InvoiceView is an invoice as shown to operators, with the derived status.
type InvoiceView struct {
	*Invoice
	DisplayStatus InvoiceStatus `json:"display_status"`
	Payable       bool          `json:"payable"`
}

func NewInvoiceView(invoice *Invoice, today Date) *InvoiceView {
	return &InvoiceView{
		Invoice:       invoice,
		DisplayStatus: invoice.DisplayStatus(today),
		Payable:       invoice.Payable(),
	}
}

type InvoiceResponse struct {
	Invoice *InvoiceView `json:"invoice"`
}

type InvoiceListResponse struct {
	Invoices []*InvoiceView `json:"invoices"`
	Total    int64          `json:"total"`
	Status   string         `json:"status"`
}

type NextNumberResponse struct {
	Number string `json:"number"`
}

// PublicInvoice is the shape served on the shareable link. It leaves out
// internal identifiers.
type PublicInvoice struct {
	Number        string           `json:"number"`
	ClientName    string           `json:"client_name"`
	ClientCompany string           `json:"client_company,omitempty"`
	IssueDate     Date             `json:"issue_date"`
	DueDate       Date             `json:"due_date"`
	Status        InvoiceStatus    `json:"status"`
	Payable       bool             `json:"payable"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	TotalDiscount decimal.Decimal  `json:"total_discount"`
	Total         decimal.Decimal  `json:"total"`
	Notes         string           `json:"notes,omitempty"`
	LineItems     []PublicLineItem `json:"line_items"`
	Notice        string           `json:"notice,omitempty"`
	Alert         string           `json:"alert,omitempty"`
}

type PublicLineItem struct {
	Type        LineItemKind        `json:"type"`
	Description string              `json:"description"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitType    UnitType            `json:"unit_type,omitempty"`
	UnitLabel   string              `json:"unit_label,omitempty"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	LineTotal   decimal.Decimal     `json:"line_total"`
}

func NewPublicInvoice(invoice *Invoice, today Date) *PublicInvoice {
	out := &PublicInvoice{
		Number:        invoice.Number,
		IssueDate:     invoice.IssueDate,
		DueDate:       invoice.DueDate,
		Status:        invoice.DisplayStatus(today),
		Payable:       invoice.Payable(),
		Subtotal:      invoice.Subtotal,
		TotalDiscount: invoice.TotalDiscount,
		Total:         invoice.Total,
		Notes:         invoice.Notes,
		LineItems:     make([]PublicLineItem, 0, len(invoice.LineItems)),
	}
	if invoice.Client != nil {
		out.ClientName = invoice.Client.Name
		out.ClientCompany = invoice.Client.Company
	}

	for _, item := range invoice.LineItems {
		out.LineItems = append(out.LineItems, PublicLineItem{
			Type:        item.Kind,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitType:    item.UnitType,
			UnitLabel:   item.UnitType.Label(),
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal().Round(MoneyScale),
		})
	}

	return out
}
