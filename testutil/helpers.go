package testutil

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbsetup "github.com/malwarebo/invoicer/config/db"
	"github.com/malwarebo/invoicer/db"
	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/notifications"
)

// OpenDB returns a migrated in-memory SQLite database private to t. It keeps
// a single connection, so code inside a transaction must use the
// transaction's handle.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), dbsetup.GormConfig(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if _, err := db.CreateSchemaMigrator(gdb).Up(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return gdb
}

// PostgresDSNEnv names the variable holding a DSN for tests that need real
// row locks. Those tests are skipped when it is unset.
const PostgresDSNEnv = "INVOICER_TEST_POSTGRES_DSN"

// OpenPostgresDB connects to the database named by PostgresDSNEnv, migrates
// it and empties the invoicing tables. The pool is left open so concurrent
// callers contend on row locks.
func OpenPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	gdb, err := gorm.Open(postgres.Open(dsn), dbsetup.GormConfig(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if _, err := db.CreateSchemaMigrator(gdb).Up(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	if err := gdb.Exec("TRUNCATE line_items, invoices, invoice_sequences, webhook_events, clients CASCADE").Error; err != nil {
		t.Fatalf("failed to empty tables: %v", err)
	}
	return gdb
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func MockClient() *models.Client {
	return &models.Client{
		Name:    "Acme Pte Ltd",
		Email:   "billing@acme.test",
		Company: "Acme",
		Country: "SG",
	}
}

// MockLineItems totals to subtotal 200, discount 10, total 190.
func MockLineItems() []models.LineItem {
	return []models.LineItem{
		models.NewLineItem(models.SectionLine{Description: "Development"}, 0),
		models.NewLineItem(models.ItemLine{
			Description: "Backend work",
			Quantity:    NullDec("2"),
			UnitType:    models.UnitHours,
			UnitPrice:   NullDec("100"),
		}, 1),
		models.NewLineItem(models.NewDiscountLine("Loyalty", Dec("10")), 2),
	}
}

func MockLineItemInputs() []models.LineItemInput {
	return []models.LineItemInput{
		{Type: models.LineItemKindSection, Description: "Development"},
		{Type: models.LineItemKindItem, Description: "Backend work", Quantity: NullDec("2"), UnitType: models.UnitHours, UnitPrice: NullDec("100")},
		{Type: models.LineItemKindDiscount, Description: "Loyalty", UnitPrice: NullDec("10")},
	}
}

// SeedInvoice inserts client (when it has no ID) and an invoice in status
// with MockLineItems.
func SeedInvoice(t *testing.T, gdb *gorm.DB, client *models.Client, number, token string, status models.InvoiceStatus, due models.Date) *models.Invoice {
	t.Helper()

	if client.ID == "" {
		if err := gdb.Create(client).Error; err != nil {
			t.Fatalf("failed to seed client: %v", err)
		}
	}

	invoice := &models.Invoice{
		ClientID:  client.ID,
		Number:    number,
		Token:     token,
		IssueDate: due.AddDays(-30),
		DueDate:   due,
		Status:    status,
		LineItems: MockLineItems(),
	}
	invoice.ApplyTotals()
	if status == models.InvoiceStatusPaid {
		paidAt := time.Now().UTC()
		invoice.PaidAt = &paidAt
	}

	if err := gdb.Omit("Client").Create(invoice).Error; err != nil {
		t.Fatalf("failed to seed invoice: %v", err)
	}
	invoice.Client = client
	return invoice
}

func MockContext() context.Context {
	return context.Background()
}

func MockContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// FakeCheckoutProvider records checkout requests and returns a fixed session
// or error.
type FakeCheckoutProvider struct {
	mu       sync.Mutex
	Requests []*models.CheckoutRequest
	Session  *models.CheckoutSession
	Err      error
}

func (p *FakeCheckoutProvider) CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &models.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.test/c/pay/cs_test_123"}, nil
}

func (p *FakeCheckoutProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// FakeQueue collects enqueued notifications.
type FakeQueue struct {
	mu    sync.Mutex
	Items []*notifications.Notification
	Err   error
}

func (q *FakeQueue) Enqueue(ctx context.Context, n *notifications.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.Err != nil {
		return q.Err
	}
	q.Items = append(q.Items, n)
	return nil
}

func (q *FakeQueue) Dequeue(ctx context.Context) (*notifications.Notification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *FakeQueue) Close() error {
	return nil
}

func (q *FakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Items)
}
