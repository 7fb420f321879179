package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/utils"
)

type LineItemKind string

const (
	LineItemKindItem     LineItemKind = "item"
	LineItemKindSection  LineItemKind = "section"
	LineItemKindDiscount LineItemKind = "discount"
)

type UnitType string

const (
	UnitHours UnitType = "hours"
	UnitDays  UnitType = "days"
	UnitItems UnitType = "items"
	UnitUnits UnitType = "units"
	UnitFixed UnitType = "fixed"
)

var unitLabels = map[UnitType]string{
	UnitHours: "hrs",
	UnitDays:  "days",
	UnitItems: "items",
	UnitUnits: "units",
	UnitFixed: "",
}

func (u UnitType) Valid() bool {
	_, ok := unitLabels[u]
	return ok
}

// Label is the short suffix shown next to a quantity.
func (u UnitType) Label() string {
	return unitLabels[u]
}

// LineItem is the stored row. Its Kind decides which of the payload columns
// are meaningful; Entry returns the typed view.
type LineItem struct {
	ID          string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	InvoiceID   string              `json:"invoice_id" gorm:"type:varchar(36);not null;index:idx_line_items_invoice_position,priority:1"`
	Kind        LineItemKind        `json:"type" gorm:"type:varchar(20);not null"`
	Description string              `json:"description" gorm:"type:text"`
	Quantity    decimal.NullDecimal `json:"quantity" gorm:"type:decimal(10,2)"`
	UnitType    UnitType            `json:"unit_type,omitempty" gorm:"type:varchar(20)"`
	UnitPrice   decimal.NullDecimal `json:"unit_price" gorm:"type:decimal(10,2)"`
	Position    int                 `json:"position" gorm:"not null;default:0;index:idx_line_items_invoice_position,priority:2"`
	CreatedAt   time.Time           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time           `json:"updated_at" gorm:"autoUpdateTime"`
}

func (li *LineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	return nil
}

// LineEntry is one of ItemLine, SectionLine or DiscountLine.
type LineEntry interface {
	Kind() LineItemKind
	lineEntry()
}

type ItemLine struct {
	Description string
	Quantity    decimal.NullDecimal
	UnitType    UnitType
	UnitPrice   decimal.NullDecimal
}

type SectionLine struct {
	Description string
}

// DiscountLine holds the stored unit price, which is non-positive for rows
// built through NewDiscountLine.
type DiscountLine struct {
	Description string
	UnitPrice   decimal.Decimal
}

func (ItemLine) Kind() LineItemKind     { return LineItemKindItem }
func (SectionLine) Kind() LineItemKind  { return LineItemKindSection }
func (DiscountLine) Kind() LineItemKind { return LineItemKindDiscount }

func (ItemLine) lineEntry()     {}
func (SectionLine) lineEntry()  {}
func (DiscountLine) lineEntry() {}

// Amount is quantity × unit price with missing values counted as zero.
func (l ItemLine) Amount() decimal.Decimal {
	return orZero(l.Quantity).Mul(orZero(l.UnitPrice))
}

func NewDiscountLine(description string, amount decimal.Decimal) DiscountLine {
	return DiscountLine{Description: description, UnitPrice: amount.Abs().Neg()}
}

// NewLineItem builds a row from a typed entry. Columns that do not belong to
// the entry's kind are left empty.
func NewLineItem(entry LineEntry, position int) LineItem {
	item := LineItem{Kind: entry.Kind(), Position: position}

	switch e := entry.(type) {
	case ItemLine:
		item.Description = e.Description
		item.Quantity = e.Quantity
		item.UnitType = e.UnitType
		item.UnitPrice = e.UnitPrice
	case SectionLine:
		item.Description = e.Description
	case DiscountLine:
		item.Description = e.Description
		item.Quantity = decimal.NewNullDecimal(decimal.NewFromInt(1))
		item.UnitType = UnitFixed
		item.UnitPrice = decimal.NewNullDecimal(e.UnitPrice)
	}

	return item
}

// Entry returns the typed view of a stored row, or nil for an unknown kind.
func (li LineItem) Entry() LineEntry {
	switch li.Kind {
	case LineItemKindItem:
		return ItemLine{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitType:    li.UnitType,
			UnitPrice:   li.UnitPrice,
		}
	case LineItemKindSection:
		return SectionLine{Description: li.Description}
	case LineItemKindDiscount:
		return DiscountLine{Description: li.Description, UnitPrice: orZero(li.UnitPrice)}
	default:
		return nil
	}
}

// LineTotal is the row's contribution before discounts are applied.
func (li LineItem) LineTotal() decimal.Decimal {
	if e, ok := li.Entry().(ItemLine); ok {
		return e.Amount()
	}
	return decimal.Zero
}

// Copy returns the row detached from its invoice, ready to be inserted
// elsewhere.
func (li LineItem) Copy() LineItem {
	li.ID = ""
	li.InvoiceID = ""
	li.CreatedAt = time.Time{}
	li.UpdatedAt = time.Time{}
	return li
}

type LineItemInput struct {
	ID          string              `json:"id,omitempty"`
	Type        LineItemKind        `json:"type"`
	Description string              `json:"description"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitType    UnitType            `json:"unit_type,omitempty"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	Position    *int                `json:"position,omitempty"`
}

// ToEntry validates the input against the rules of its kind. Errors are
// reported under field, e.g. "line_items[2]".
func (in LineItemInput) ToEntry(field string) (LineEntry, utils.ValidationErrors) {
	var errs utils.ValidationErrors
	errs.Add(utils.ValidateString(in.Description, field+".description", 0, 2000, false))

	switch in.Type {
	case LineItemKindItem:
		unit := in.UnitType
		if unit == "" {
			unit = UnitHours
		}
		if !unit.Valid() {
			errs.Addf(field+".unit_type", "must be one of hours, days, items, units, fixed")
		}
		validateAmount(&errs, in.Quantity, field+".quantity")
		validateAmount(&errs, in.UnitPrice, field+".unit_price")
		return ItemLine{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitType:    unit,
			UnitPrice:   in.UnitPrice,
		}, errs

	case LineItemKindSection:
		if strings.TrimSpace(in.Description) == "" {
			errs.Addf(field+".description", "is required for section lines")
		}
		return SectionLine{Description: in.Description}, errs

	case LineItemKindDiscount:
		if !in.UnitPrice.Valid {
			errs.Addf(field+".unit_price", "is required for discount lines")
			return nil, errs
		}
		validateAmount(&errs, in.UnitPrice, field+".unit_price")
		return NewDiscountLine(in.Description, in.UnitPrice.Decimal), errs

	default:
		errs.Addf(field+".type", "must be one of %s, %s, %s", LineItemKindItem, LineItemKindSection, LineItemKindDiscount)
		return nil, errs
	}
}

// BuildLineItems validates every input and returns the rows in submission
// order. Inputs without a position take their index.
func BuildLineItems(inputs []LineItemInput) ([]LineItem, error) {
	var errs utils.ValidationErrors
	items := make([]LineItem, 0, len(inputs))

	for i, in := range inputs {
		entry, entryErrs := in.ToEntry(fmt.Sprintf("line_items[%d]", i))
		errs = append(errs, entryErrs...)
		if entry == nil {
			continue
		}

		position := i
		if in.Position != nil {
			position = *in.Position
		}

		item := NewLineItem(entry, position)
		item.ID = in.ID
		items = append(items, item)
	}

	if len(errs) == 0 {
		totals := CalculateTotals(items).Rounded()
		if totals.Subtotal.Abs().GreaterThanOrEqual(MaxAmount) ||
			totals.TotalDiscount.GreaterThanOrEqual(MaxAmount) ||
			totals.Total.Abs().GreaterThanOrEqual(MaxAmount) {
			errs.Addf("line_items", "invoice amounts must be less than %s", MaxAmount)
		}
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return items, nil
}

// validateAmount keeps a submitted number within what the decimal(10,2)
// columns store exactly, so totals recomputed from saved rows match.
func validateAmount(errs *utils.ValidationErrors, d decimal.NullDecimal, field string) {
	if !d.Valid {
		return
	}
	if !d.Decimal.Equal(d.Decimal.Round(MoneyScale)) {
		errs.Addf(field, "must have at most %d decimal places", MoneyScale)
	}
	if d.Decimal.Abs().GreaterThanOrEqual(MaxAmount) {
		errs.Addf(field, "must be less than %s", MaxAmount)
	}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
