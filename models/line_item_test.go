package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/malwarebo/invoicer/utils"
)

func TestNewDiscountLine(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"15", "-15"},
		{"-15", "-15"},
		{"0", "0"},
		{"2.50", "-2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			line := NewDiscountLine("Loyalty", dec(tt.amount))
			if !line.UnitPrice.Equal(dec(tt.want)) {
				t.Errorf("NewDiscountLine(%s).UnitPrice = %s, want %s", tt.amount, line.UnitPrice, tt.want)
			}
		})
	}
}

func TestNewLineItem(t *testing.T) {
	t.Run("Discount is fixed with quantity one", func(t *testing.T) {
		item := NewLineItem(NewDiscountLine("Early bird", dec("20")), 3)

		if item.Kind != LineItemKindDiscount {
			t.Errorf("Kind = %s, want discount", item.Kind)
		}
		if !item.Quantity.Valid || !item.Quantity.Decimal.Equal(decimal.NewFromInt(1)) {
			t.Errorf("Quantity = %v, want 1", item.Quantity)
		}
		if item.UnitType != UnitFixed {
			t.Errorf("UnitType = %s, want fixed", item.UnitType)
		}
		if !item.UnitPrice.Decimal.Equal(dec("-20")) {
			t.Errorf("UnitPrice = %s, want -20", item.UnitPrice.Decimal)
		}
		if item.Position != 3 {
			t.Errorf("Position = %d, want 3", item.Position)
		}
	})

	t.Run("Section carries only a description", func(t *testing.T) {
		item := NewLineItem(SectionLine{Description: "Phase 1"}, 0)

		if item.Quantity.Valid || item.UnitPrice.Valid || item.UnitType != "" {
			t.Errorf("section row has payload columns set: %+v", item)
		}
		if !item.LineTotal().IsZero() {
			t.Errorf("LineTotal() = %s, want 0", item.LineTotal())
		}
	})

	t.Run("Item round trips through Entry", func(t *testing.T) {
		entry := ItemLine{
			Description: "Consulting",
			Quantity:    nullDec("1.5"),
			UnitType:    UnitDays,
			UnitPrice:   nullDec("800"),
		}
		item := NewLineItem(entry, 1)

		got, ok := item.Entry().(ItemLine)
		if !ok {
			t.Fatalf("Entry() = %T, want ItemLine", item.Entry())
		}
		if got.Description != entry.Description || got.UnitType != entry.UnitType {
			t.Errorf("Entry() = %+v, want %+v", got, entry)
		}
		if !item.LineTotal().Equal(dec("1200")) {
			t.Errorf("LineTotal() = %s, want 1200", item.LineTotal())
		}
	})
}

func TestLineItem_EntryUnknownKind(t *testing.T) {
	item := LineItem{Kind: "tax", UnitPrice: nullDec("5")}
	if item.Entry() != nil {
		t.Errorf("Entry() = %v, want nil for unknown kind", item.Entry())
	}
}

func TestLineItemInput_ToEntry(t *testing.T) {
	tests := []struct {
		name      string
		input     LineItemInput
		wantKind  LineItemKind
		wantField string
	}{
		{
			name:     "Item defaults unit to hours",
			input:    LineItemInput{Type: LineItemKindItem, Description: "Dev", Quantity: nullDec("2"), UnitPrice: nullDec("50")},
			wantKind: LineItemKindItem,
		},
		{
			name:      "Item with unknown unit",
			input:     LineItemInput{Type: LineItemKindItem, UnitType: "weeks"},
			wantKind:  LineItemKindItem,
			wantField: "line_items[0].unit_type",
		},
		{
			name:     "Section with description",
			input:    LineItemInput{Type: LineItemKindSection, Description: "Design"},
			wantKind: LineItemKindSection,
		},
		{
			name:      "Section without description",
			input:     LineItemInput{Type: LineItemKindSection, Description: "  "},
			wantKind:  LineItemKindSection,
			wantField: "line_items[0].description",
		},
		{
			name:     "Discount with amount",
			input:    LineItemInput{Type: LineItemKindDiscount, UnitPrice: nullDec("10")},
			wantKind: LineItemKindDiscount,
		},
		{
			name:      "Discount without amount",
			input:     LineItemInput{Type: LineItemKindDiscount, Description: "Promo"},
			wantField: "line_items[0].unit_price",
		},
		{
			name:      "Item quantity with three decimals",
			input:     LineItemInput{Type: LineItemKindItem, Quantity: nullDec("1.335"), UnitPrice: nullDec("100")},
			wantKind:  LineItemKindItem,
			wantField: "line_items[0].quantity",
		},
		{
			name:     "Item trailing zeros are fine",
			input:    LineItemInput{Type: LineItemKindItem, Quantity: nullDec("1.500"), UnitPrice: nullDec("100.10")},
			wantKind: LineItemKindItem,
		},
		{
			name:      "Item price too large for storage",
			input:     LineItemInput{Type: LineItemKindItem, Quantity: nullDec("1"), UnitPrice: nullDec("100000000")},
			wantKind:  LineItemKindItem,
			wantField: "line_items[0].unit_price",
		},
		{
			name:     "Item price at the storage limit",
			input:    LineItemInput{Type: LineItemKindItem, Quantity: nullDec("1"), UnitPrice: nullDec("99999999.99")},
			wantKind: LineItemKindItem,
		},
		{
			name:      "Discount with sub-cent amount",
			input:     LineItemInput{Type: LineItemKindDiscount, UnitPrice: nullDec("0.005")},
			wantKind:  LineItemKindDiscount,
			wantField: "line_items[0].unit_price",
		},
		{
			name:      "Unknown type",
			input:     LineItemInput{Type: "tax"},
			wantField: "line_items[0].type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, errs := tt.input.ToEntry("line_items[0]")

			if tt.wantKind != "" {
				if entry == nil || entry.Kind() != tt.wantKind {
					t.Fatalf("ToEntry() kind = %v, want %s", entry, tt.wantKind)
				}
			} else if entry != nil {
				t.Errorf("ToEntry() = %v, want nil", entry)
			}

			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("ToEntry() errors = %v, want none", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Field != tt.wantField {
				t.Errorf("ToEntry() errors = %v, want one on %s", errs, tt.wantField)
			}
		})
	}
}

func TestLineItemInput_ToEntryNormalizes(t *testing.T) {
	entry, _ := LineItemInput{Type: LineItemKindItem}.ToEntry("x")
	if item := entry.(ItemLine); item.UnitType != UnitHours {
		t.Errorf("UnitType = %s, want hours", item.UnitType)
	}

	entry, _ = LineItemInput{Type: LineItemKindDiscount, UnitPrice: nullDec("12.5")}.ToEntry("x")
	if discount := entry.(DiscountLine); !discount.UnitPrice.Equal(dec("-12.5")) {
		t.Errorf("UnitPrice = %s, want -12.5", discount.UnitPrice)
	}
}

func TestBuildLineItems(t *testing.T) {
	t.Run("Keeps order, ids and explicit positions", func(t *testing.T) {
		pos := 7
		items, err := BuildLineItems([]LineItemInput{
			{Type: LineItemKindSection, Description: "Phase 1"},
			{ID: "existing", Type: LineItemKindItem, Quantity: nullDec("1"), UnitPrice: nullDec("10")},
			{Type: LineItemKindDiscount, UnitPrice: nullDec("1"), Position: &pos},
		})
		if err != nil {
			t.Fatalf("BuildLineItems() error = %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("len(items) = %d, want 3", len(items))
		}
		if items[0].Position != 0 || items[1].Position != 1 || items[2].Position != 7 {
			t.Errorf("positions = %d,%d,%d, want 0,1,7", items[0].Position, items[1].Position, items[2].Position)
		}
		if items[1].ID != "existing" {
			t.Errorf("items[1].ID = %q, want existing", items[1].ID)
		}
	})

	t.Run("Collects every error", func(t *testing.T) {
		_, err := BuildLineItems([]LineItemInput{
			{Type: LineItemKindSection},
			{Type: LineItemKindItem},
			{Type: LineItemKindDiscount},
		})

		var verrs utils.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("BuildLineItems() error = %v, want ValidationErrors", err)
		}
		if len(verrs) != 2 {
			t.Fatalf("len(errors) = %d, want 2: %v", len(verrs), verrs)
		}
		if verrs[0].Field != "line_items[0].description" || verrs[1].Field != "line_items[2].unit_price" {
			t.Errorf("fields = %s, %s", verrs[0].Field, verrs[1].Field)
		}
	})
}

func TestBuildLineItems_StoredTotalsRecompute(t *testing.T) {
	t.Run("Accepted inputs recompute to the cached totals", func(t *testing.T) {
		items, err := BuildLineItems([]LineItemInput{
			{Type: LineItemKindItem, Quantity: nullDec("1.33"), UnitPrice: nullDec("100.05")},
			{Type: LineItemKindDiscount, UnitPrice: nullDec("3.10")},
		})
		if err != nil {
			t.Fatalf("BuildLineItems() error = %v", err)
		}

		invoice := &Invoice{LineItems: items}
		invoice.ApplyTotals()

		stored := make([]LineItem, len(items))
		for i, item := range items {
			item.Quantity = decimal.NewNullDecimal(item.Quantity.Decimal.Round(MoneyScale))
			item.UnitPrice = decimal.NewNullDecimal(item.UnitPrice.Decimal.Round(MoneyScale))
			stored[i] = item
		}
		if got := CalculateTotals(stored).Rounded(); !got.Total.Equal(invoice.Total) {
			t.Errorf("total from stored rows = %s, cached = %s", got.Total, invoice.Total)
		}
	})

	t.Run("Rejects an invoice whose subtotal overflows", func(t *testing.T) {
		_, err := BuildLineItems([]LineItemInput{
			{Type: LineItemKindItem, Quantity: nullDec("2"), UnitPrice: nullDec("60000000")},
		})

		var verrs utils.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("BuildLineItems() error = %v, want ValidationErrors", err)
		}
		if len(verrs) != 1 || verrs[0].Field != "line_items" {
			t.Errorf("errors = %v, want one on line_items", verrs)
		}
	})
}

func TestLineItem_Copy(t *testing.T) {
	item := LineItem{ID: "a", InvoiceID: "b", Kind: LineItemKindItem, Description: "Work", Position: 2}
	copied := item.Copy()

	if copied.ID != "" || copied.InvoiceID != "" {
		t.Errorf("Copy() kept identity: %+v", copied)
	}
	if copied.Description != "Work" || copied.Position != 2 {
		t.Errorf("Copy() lost payload: %+v", copied)
	}
	if item.ID != "a" {
		t.Error("Copy() modified the receiver")
	}
}

func TestUnitType_Label(t *testing.T) {
	tests := map[UnitType]string{
		UnitHours: "hrs",
		UnitDays:  "days",
		UnitItems: "items",
		UnitUnits: "units",
		UnitFixed: "",
	}
	for unit, want := range tests {
		if got := unit.Label(); got != want {
			t.Errorf("%s.Label() = %q, want %q", unit, got, want)
		}
	}
	if UnitType("weeks").Valid() {
		t.Error("Valid() = true for unknown unit")
	}
}
