package stores

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/utils"
)

// InvoiceFilter narrows List. Status "overdue" selects pending invoices whose
// due date is before Today; "pending" includes them.
type InvoiceFilter struct {
	ClientID string
	Status   string
	Today    models.Date
	Limit    int
	Offset   int
}

type InvoiceStore struct {
	BaseStore
}

func CreateInvoiceStore(db *gorm.DB) *InvoiceStore {
	return &InvoiceStore{BaseStore: BaseStore{db: db}}
}

func (s *InvoiceStore) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Client").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("created_at ASC")
		})
}

// Create inserts the invoice with its line items. The client row is never
// written through the association.
func (s *InvoiceStore) Create(ctx context.Context, invoice *models.Invoice) error {
	return s.GetDB(ctx).Omit("Client").Create(invoice).Error
}

// UpdateHeader saves the invoice's own columns without touching line items.
func (s *InvoiceStore) UpdateHeader(ctx context.Context, invoice *models.Invoice) error {
	return s.GetDB(ctx).Omit(clause.Associations).Save(invoice).Error
}

func (s *InvoiceStore) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.withDetails(s.GetDB(ctx)).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, notFound(err, utils.ErrInvoiceNotFound)
	}
	return &invoice, nil
}

// GetByIDForUpdate locks the invoice row for the rest of the transaction in
// ctx before loading it.
func (s *InvoiceStore) GetByIDForUpdate(ctx context.Context, id string) (*models.Invoice, error) {
	var locked models.Invoice
	if err := forUpdate(s.GetDB(ctx)).Select("id").First(&locked, "id = ?", id).Error; err != nil {
		return nil, notFound(err, utils.ErrInvoiceNotFound)
	}
	return s.GetByID(ctx, id)
}

func (s *InvoiceStore) GetByToken(ctx context.Context, token string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.withDetails(s.GetDB(ctx)).First(&invoice, "token = ?", token).Error; err != nil {
		return nil, notFound(err, utils.ErrInvoiceNotFound)
	}
	return &invoice, nil
}

func (s *InvoiceStore) GetByTokenForUpdate(ctx context.Context, token string) (*models.Invoice, error) {
	var locked models.Invoice
	if err := forUpdate(s.GetDB(ctx)).Select("id").First(&locked, "token = ?", token).Error; err != nil {
		return nil, notFound(err, utils.ErrInvoiceNotFound)
	}
	return s.GetByID(ctx, locked.ID)
}

func (s *InvoiceStore) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := s.GetDB(ctx).Model(&models.Invoice{}).Where("number = ?", number).Count(&count).Error
	return count > 0, err
}

func (s *InvoiceStore) Delete(ctx context.Context, id string) error {
	return s.WithTransaction(ctx, func(txCtx context.Context) error {
		db := s.GetDB(txCtx)
		if err := db.Where("invoice_id = ?", id).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		result := db.Delete(&models.Invoice{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.ErrInvoiceNotFound
		}
		return nil
	})
}

func (s *InvoiceStore) List(ctx context.Context, filter InvoiceFilter) ([]*models.Invoice, int64, error) {
	base := func() *gorm.DB {
		query := s.GetDB(ctx).Model(&models.Invoice{})
		if filter.ClientID != "" {
			query = query.Where("client_id = ?", filter.ClientID)
		}
		switch models.InvoiceStatus(filter.Status) {
		case "", "all":
		case models.InvoiceStatusOverdue:
			query = query.Where("status = ? AND due_date < ?", models.InvoiceStatusPending, filter.Today)
		default:
			query = query.Where("status = ?", filter.Status)
		}
		return query
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []*models.Invoice
	query := paginate(s.withDetails(base()), filter.Limit, filter.Offset)
	if err := query.Order("issue_date DESC").Order("created_at DESC").Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// SyncLineItems makes the stored line items of invoiceID match items. Rows
// whose ID is not in items are deleted, rows with a known ID are updated and
// the rest are inserted. The stored rows are returned in position order.
func (s *InvoiceStore) SyncLineItems(ctx context.Context, invoiceID string, items []models.LineItem) ([]models.LineItem, error) {
	var result []models.LineItem

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		db := s.GetDB(txCtx)

		var existing []models.LineItem
		if err := db.Where("invoice_id = ?", invoiceID).Find(&existing).Error; err != nil {
			return err
		}
		known := make(map[string]models.LineItem, len(existing))
		for _, item := range existing {
			known[item.ID] = item
		}

		kept := make(map[string]bool, len(items))
		for i := range items {
			item := items[i]
			item.InvoiceID = invoiceID

			if old, ok := known[item.ID]; ok && !kept[item.ID] {
				item.CreatedAt = old.CreatedAt
				if err := db.Save(&item).Error; err != nil {
					return err
				}
				kept[item.ID] = true
			} else {
				item.ID = ""
				if err := db.Create(&item).Error; err != nil {
					return err
				}
				kept[item.ID] = true
			}
			result = append(result, item)
		}

		var stale []string
		for id := range known {
			if !kept[id] {
				stale = append(stale, id)
			}
		}
		if len(stale) > 0 {
			if err := db.Where("id IN ?", stale).Delete(&models.LineItem{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

func (s *InvoiceStore) CountByClient(ctx context.Context, clientID string) (int64, error) {
	var count int64
	err := s.GetDB(ctx).Model(&models.Invoice{}).Where("client_id = ?", clientID).Count(&count).Error
	return count, err
}

type Aggregate struct {
	Amount decimal.Decimal
	Count  int64
}

func (s *InvoiceStore) aggregate(ctx context.Context, where string, args ...interface{}) (Aggregate, error) {
	var row struct {
		Amount decimal.NullDecimal
		Count  int64
	}
	err := s.GetDB(ctx).Model(&models.Invoice{}).
		Select("SUM(total) AS amount, COUNT(*) AS count").
		Where(where, args...).
		Scan(&row).Error
	if err != nil {
		return Aggregate{}, err
	}

	amount := decimal.Zero
	if row.Amount.Valid {
		amount = row.Amount.Decimal.Round(models.MoneyScale)
	}
	return Aggregate{Amount: amount, Count: row.Count}, nil
}

// Outstanding covers every pending invoice, overdue ones included.
func (s *InvoiceStore) Outstanding(ctx context.Context) (Aggregate, error) {
	return s.aggregate(ctx, "status = ?", models.InvoiceStatusPending)
}

func (s *InvoiceStore) Overdue(ctx context.Context, today models.Date) (Aggregate, error) {
	return s.aggregate(ctx, "status = ? AND due_date < ?", models.InvoiceStatusPending, today)
}

// PaidBetween sums invoices paid in [from, to).
func (s *InvoiceStore) PaidBetween(ctx context.Context, from, to time.Time) (Aggregate, error) {
	return s.aggregate(ctx, "status = ? AND paid_at >= ? AND paid_at < ?", models.InvoiceStatusPaid, from, to)
}

func (s *InvoiceStore) CountByStatus(ctx context.Context, status models.InvoiceStatus) (int64, error) {
	var count int64
	err := s.GetDB(ctx).Model(&models.Invoice{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
