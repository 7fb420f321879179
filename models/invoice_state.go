package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/malwarebo/invoicer/utils"
)

var ErrInvalidTransition = errors.New("invalid invoice status transition")

// TransitionError reports an action that is not allowed from the invoice's
// current status.
type TransitionError struct {
	Action string
	Status InvoiceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an invoice that is %s", e.Action, e.Status)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// LockedError reports an edit to an invoice whose status no longer allows
// changes. It matches utils.ErrInvoiceLocked.
type LockedError struct {
	Status InvoiceStatus
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("invoice is %s and can no longer be edited", e.Status)
}

func (e *LockedError) Is(target error) bool {
	return target == utils.ErrInvoiceLocked
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// MarkSent moves a draft to pending.
func (i *Invoice) MarkSent(now time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return &TransitionError{Action: "mark_sent", Status: i.Status}
	}
	i.Status = InvoiceStatusPending
	i.SentAt = &now
	return nil
}

// MarkPaid moves a pending invoice to paid and reports whether it did. An
// already paid invoice is left alone without error so that repeated payment
// confirmations are harmless.
func (i *Invoice) MarkPaid(now time.Time) (bool, error) {
	switch i.Status {
	case InvoiceStatusPaid:
		return false, nil
	case InvoiceStatusPending:
		i.Status = InvoiceStatusPaid
		i.PaidAt = &now
		return true, nil
	default:
		return false, &TransitionError{Action: "mark_paid", Status: i.Status}
	}
}

func (i *Invoice) Cancel(now time.Time) error {
	if i.Status != InvoiceStatusDraft && i.Status != InvoiceStatusPending {
		return &TransitionError{Action: "cancel", Status: i.Status}
	}
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &now
	return nil
}

func (i *Invoice) IsOverdue(today Date) bool {
	return i.Status == InvoiceStatusPending && i.DueDate.Before(today)
}

// DisplayStatus is the status readers see: a pending invoice past its due
// date shows as overdue.
func (i *Invoice) DisplayStatus(today Date) InvoiceStatus {
	if i.IsOverdue(today) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// Payable gates the public pay action. Overdue invoices are still pending
// underneath and so remain payable.
func (i *Invoice) Payable() bool {
	return i.Status == InvoiceStatusPending
}

// Editable reports whether the body and dates may still change.
func (i *Invoice) Editable() bool {
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusPending
}

// Duplicate returns a new draft carrying the same client, notes and line
// items. The receiver is not modified.
func (i *Invoice) Duplicate(number, token string, today Date) *Invoice {
	copied := &Invoice{
		ClientID:  i.ClientID,
		Number:    number,
		Token:     token,
		IssueDate: today,
		DueDate:   today.AddDays(DefaultPaymentTermDays),
		Status:    InvoiceStatusDraft,
		Notes:     i.Notes,
		LineItems: make([]LineItem, 0, len(i.LineItems)),
	}

	for _, item := range i.LineItems {
		copied.LineItems = append(copied.LineItems, item.Copy())
	}
	copied.ApplyTotals()

	return copied
}
