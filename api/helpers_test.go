package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/cache"
	dbsetup "github.com/malwarebo/invoicer/config/db"
	"github.com/malwarebo/invoicer/middleware"
	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/providers"
	"github.com/malwarebo/invoicer/security"
	"github.com/malwarebo/invoicer/services"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/testutil"
)

const (
	testJWTSecret     = "api-test-secret-key-32-bytes!!!"
	testWebhookSecret = "whsec_api_test"
	testBaseURL       = "https://invoices.example.com"
)

type harness struct {
	db       *gorm.DB
	router   http.Handler
	token    string
	client   *models.Client
	provider *testutil.FakeCheckoutProvider
	queue    *testutil.FakeQueue
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.OpenDB(t)
	invoiceStore := stores.CreateInvoiceStore(db)
	clientStore := stores.CreateClientStore(db)
	numberer := services.CreateInvoiceNumberer(stores.CreateTransactor(db), stores.CreateSequenceStore(db))
	links := services.NewLinks(testBaseURL)

	invoiceService := services.CreateInvoiceService(invoiceStore, clientStore, numberer, 30)
	dashboardService := services.CreateDashboardService(invoiceStore, cache.CreateMemoryCache(16))
	invoiceService.OnChange(dashboardService.Invalidate)

	provider := &testutil.FakeCheckoutProvider{}
	queue := &testutil.FakeQueue{}
	stripeProvider := providers.CreateStripeProvider(providers.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	renderer := services.CreateInvoicePDFRenderer("sgd", links)

	handlers := Handlers{
		Clients:   CreateClientHandler(services.CreateClientService(clientStore)),
		Invoices:  CreateInvoiceHandler(invoiceService, renderer),
		Public:    CreatePublicHandler(invoiceService, services.CreatePaymentService(invoiceStore, provider, "sgd", links), renderer),
		Webhooks:  CreateWebhookHandler(services.CreateWebhookService(stripeProvider, invoiceService, stores.CreateWebhookStore(db), queue, "sgd", links)),
		Dashboard: CreateDashboardHandler(dashboardService),
		Health:    CreateHealthHandler(&dbsetup.DB{DB: db}),
	}

	jwtManager := security.CreateJWTManager(testJWTSecret, "invoicer-test", "invoicer-api")
	token, err := jwtManager.GenerateToken("operator-1", "ops@test.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	client := testutil.MockClient()
	if err := clientStore.Create(testutil.MockContext(), client); err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return &harness{
		db:       db,
		router:   NewRouter(handlers, middleware.CreateAuthMiddleware(jwtManager, nil), RouterConfig{AllowedOrigins: []string{"https://app.example.com"}}),
		token:    token,
		client:   client,
		provider: provider,
		queue:    queue,
	}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:40000"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) seed(t *testing.T, number, token string, status models.InvoiceStatus, due models.Date) *models.Invoice {
	t.Helper()
	return testutil.SeedInvoice(t, h.db, h.client, number, token, status, due)
}

func today() models.Date {
	return models.DateOf(time.Now().UTC())
}

func currentNumber(seq int) string {
	return services.FormatInvoiceNumber(time.Now().UTC().Year(), seq)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func invoicePath(id string, suffix ...string) string {
	path := fmt.Sprintf("/api/v1/invoices/%s", id)
	for _, s := range suffix {
		path += "/" + s
	}
	return path
}

func newRequest(method, path string, body ...byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:40000"
	return req
}

func serve(h *harness, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}
