package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/testutil"
)

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	invoices *stores.InvoiceStore
	clients  *stores.ClientStore
	numberer *InvoiceNumberer
	service  *InvoiceService
	client   *models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.OpenDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	invoiceStore := stores.CreateInvoiceStore(db)
	clientStore := stores.CreateClientStore(db)
	numberer := CreateInvoiceNumberer(stores.CreateTransactor(db), stores.CreateSequenceStore(db))

	service := CreateInvoiceService(invoiceStore, clientStore, numberer, 30)
	service.now = func() time.Time { return fixedNow }

	client := testutil.MockClient()
	if err := clientStore.Create(context.Background(), client); err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return &fixture{
		db:       db,
		invoices: invoiceStore,
		clients:  clientStore,
		numberer: numberer,
		service:  service,
		client:   client,
	}
}

func (f *fixture) seed(t *testing.T, number, token string, status models.InvoiceStatus, due models.Date) *models.Invoice {
	t.Helper()
	return testutil.SeedInvoice(t, f.db, f.client, number, token, status, due)
}

func (f *fixture) createRequest() *models.CreateInvoiceRequest {
	return &models.CreateInvoiceRequest{
		ClientID:  f.client.ID,
		Notes:     "Thanks for your business",
		LineItems: testutil.MockLineItemInputs(),
	}
}
