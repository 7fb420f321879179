package models

import (
	"errors"
	"testing"
	"time"
)

var allStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
}

func TestInvoice_MarkSent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range allStatuses {
		t.Run(string(status), func(t *testing.T) {
			inv := &Invoice{Status: status}
			err := inv.MarkSent(now)

			if status == InvoiceStatusDraft {
				if err != nil {
					t.Fatalf("MarkSent() error = %v, want nil", err)
				}
				if inv.Status != InvoiceStatusPending {
					t.Errorf("Status = %s, want pending", inv.Status)
				}
				if inv.SentAt == nil || !inv.SentAt.Equal(now) {
					t.Errorf("SentAt = %v, want %v", inv.SentAt, now)
				}
				return
			}

			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("MarkSent() error = %v, want ErrInvalidTransition", err)
			}
			if inv.Status != status {
				t.Errorf("Status = %s, want unchanged %s", inv.Status, status)
			}
		})
	}
}

func TestInvoice_MarkPaid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		status       InvoiceStatus
		transitioned bool
		wantErr      bool
		want         InvoiceStatus
	}{
		{InvoiceStatusDraft, false, true, InvoiceStatusDraft},
		{InvoiceStatusPending, true, false, InvoiceStatusPaid},
		{InvoiceStatusPaid, false, false, InvoiceStatusPaid},
		{InvoiceStatusCancelled, false, true, InvoiceStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			inv := &Invoice{Status: tt.status}
			transitioned, err := inv.MarkPaid(now)

			if (err != nil) != tt.wantErr {
				t.Fatalf("MarkPaid() error = %v, wantErr %v", err, tt.wantErr)
			}
			if transitioned != tt.transitioned {
				t.Errorf("MarkPaid() transitioned = %v, want %v", transitioned, tt.transitioned)
			}
			if inv.Status != tt.want {
				t.Errorf("Status = %s, want %s", inv.Status, tt.want)
			}
		})
	}
}

func TestInvoice_MarkPaidWhenOverdue(t *testing.T) {
	today := NewDate(2026, 5, 10)
	inv := &Invoice{Status: InvoiceStatusPending, DueDate: today.AddDays(-1)}

	if inv.DisplayStatus(today) != InvoiceStatusOverdue {
		t.Fatalf("DisplayStatus() = %s, want overdue", inv.DisplayStatus(today))
	}
	if !inv.Payable() {
		t.Error("Payable() = false, want true for an overdue invoice")
	}

	transitioned, err := inv.MarkPaid(time.Now())
	if err != nil || !transitioned {
		t.Fatalf("MarkPaid() = %v, %v; want true, nil", transitioned, err)
	}
	if inv.DisplayStatus(today) != InvoiceStatusPaid {
		t.Errorf("DisplayStatus() = %s, want paid", inv.DisplayStatus(today))
	}
}

func TestInvoice_Cancel(t *testing.T) {
	for _, status := range allStatuses {
		t.Run(string(status), func(t *testing.T) {
			inv := &Invoice{Status: status}
			err := inv.Cancel(time.Now())

			allowed := status == InvoiceStatusDraft || status == InvoiceStatusPending
			if allowed && err != nil {
				t.Fatalf("Cancel() error = %v, want nil", err)
			}
			if !allowed {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("Cancel() error = %v, want *TransitionError", err)
				}
				if te.Status != status {
					t.Errorf("TransitionError.Status = %s, want %s", te.Status, status)
				}
				return
			}
			if inv.Status != InvoiceStatusCancelled {
				t.Errorf("Status = %s, want cancelled", inv.Status)
			}
		})
	}
}

func TestInvoice_DisplayStatus(t *testing.T) {
	today := NewDate(2026, 1, 15)

	tests := []struct {
		name   string
		status InvoiceStatus
		due    Date
		want   InvoiceStatus
	}{
		{"Pending past due", InvoiceStatusPending, today.AddDays(-1), InvoiceStatusOverdue},
		{"Pending due today", InvoiceStatusPending, today, InvoiceStatusPending},
		{"Pending not yet due", InvoiceStatusPending, today.AddDays(3), InvoiceStatusPending},
		{"Draft past due", InvoiceStatusDraft, today.AddDays(-10), InvoiceStatusDraft},
		{"Paid past due", InvoiceStatusPaid, today.AddDays(-10), InvoiceStatusPaid},
		{"Cancelled past due", InvoiceStatusCancelled, today.AddDays(-10), InvoiceStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{Status: tt.status, DueDate: tt.due}
			if got := inv.DisplayStatus(today); got != tt.want {
				t.Errorf("DisplayStatus() = %s, want %s", got, tt.want)
			}
			if inv.Status != tt.status {
				t.Errorf("Status = %s, stored status must not change", inv.Status)
			}
		})
	}
}

func TestInvoice_Payable(t *testing.T) {
	for _, status := range allStatuses {
		inv := &Invoice{Status: status}
		want := status == InvoiceStatusPending
		if got := inv.Payable(); got != want {
			t.Errorf("Payable() for %s = %v, want %v", status, got, want)
		}
	}
}

func TestInvoice_Duplicate(t *testing.T) {
	today := NewDate(2026, 2, 1)
	source := &Invoice{
		ID:        "inv-1",
		ClientID:  "client-1",
		Number:    "INV-2025-0007",
		Token:     "old-token",
		Status:    InvoiceStatusPaid,
		IssueDate: NewDate(2025, 12, 1),
		DueDate:   NewDate(2025, 12, 31),
		Notes:     "Thanks",
		LineItems: []LineItem{
			{ID: "li-1", InvoiceID: "inv-1", Kind: LineItemKindSection, Description: "Design"},
			{ID: "li-2", InvoiceID: "inv-1", Kind: LineItemKindItem, Quantity: nullDec("2"), UnitPrice: nullDec("100"), Position: 1},
			{ID: "li-3", InvoiceID: "inv-1", Kind: LineItemKindDiscount, UnitPrice: nullDec("-10"), Position: 2},
		},
	}

	copied := source.Duplicate("INV-2026-0001", "new-token", today)

	if copied.Status != InvoiceStatusDraft {
		t.Errorf("Status = %s, want draft", copied.Status)
	}
	if copied.Number != "INV-2026-0001" || copied.Token != "new-token" {
		t.Errorf("Number/Token = %s/%s, want new values", copied.Number, copied.Token)
	}
	if !copied.IssueDate.Equal(today) {
		t.Errorf("IssueDate = %s, want %s", copied.IssueDate, today)
	}
	if want := NewDate(2026, 3, 3); !copied.DueDate.Equal(want) {
		t.Errorf("DueDate = %s, want %s", copied.DueDate, want)
	}
	if len(copied.LineItems) != 3 {
		t.Fatalf("len(LineItems) = %d, want 3", len(copied.LineItems))
	}
	for _, item := range copied.LineItems {
		if item.ID != "" || item.InvoiceID != "" {
			t.Errorf("copied line item kept identity %q/%q", item.ID, item.InvoiceID)
		}
	}
	if !copied.Total.Equal(dec("190")) {
		t.Errorf("Total = %s, want 190", copied.Total)
	}

	if source.Status != InvoiceStatusPaid || source.LineItems[0].ID != "li-1" {
		t.Error("Duplicate() modified the source invoice")
	}
}
