package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/providers"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/testutil"
	"github.com/malwarebo/invoicer/utils"
)

const webhookSecret = "whsec_services_test"

type webhookFixture struct {
	*fixture
	service *WebhookService
	queue   *testutil.FakeQueue
	events  *stores.WebhookStore
}

func newWebhookFixture(t *testing.T, secret string) *webhookFixture {
	t.Helper()
	f := newFixture(t)
	queue := &testutil.FakeQueue{}
	events := stores.CreateWebhookStore(f.db)
	provider := providers.CreateStripeProvider(providers.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: secret})

	return &webhookFixture{
		fixture: f,
		service: CreateWebhookService(provider, f.service, events, queue, "sgd", NewLinks("https://invoices.example.com")),
		queue:   queue,
		events:  events,
	}
}

func checkoutEvent(id, eventType, token, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"type": %q,
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_status": %q,
			"metadata": {"invoice_token": %q}
		}}
	}`, id, eventType, paymentStatus, token))
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	}).Header
}

func (f *webhookFixture) deliver(t *testing.T, payload []byte) *models.WebhookAck {
	t.Helper()
	ack, err := f.service.HandleStripe(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("HandleStripe() error = %v", err)
	}
	if !ack.Received {
		t.Errorf("ack.Received = false")
	}
	return ack
}

func (f *webhookFixture) eventStatus(t *testing.T, eventID string) *models.WebhookEvent {
	t.Helper()
	event, err := f.events.GetByEventID(context.Background(), ProviderStripe, eventID)
	if err != nil {
		t.Fatalf("GetByEventID(%s) error = %v", eventID, err)
	}
	return event
}

func TestWebhookService_CheckoutCompleted(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	invoice := f.seed(t, "INV-2026-0001", "tok-pay", models.InvoiceStatusPending, models.NewDate(2026, 3, 1))

	payload := checkoutEvent("evt_1", "checkout.session.completed", "tok-pay", "paid")
	ack := f.deliver(t, payload)
	if ack.EventType != "checkout.session.completed" {
		t.Errorf("ack.EventType = %s", ack.EventType)
	}

	stored, _ := f.service.invoiceService.Get(context.Background(), invoice.ID)
	if stored.Status != models.InvoiceStatusPaid {
		t.Fatalf("Status = %s, want paid", stored.Status)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("queued %d notifications, want 1", f.queue.Len())
	}
	n := f.queue.Items[0]
	if n.InvoiceNumber != "INV-2026-0001" || n.ClientEmail != "billing@acme.test" || n.PublicURL != "https://invoices.example.com/i/tok-pay" {
		t.Errorf("notification = %+v", n)
	}

	event := f.eventStatus(t, "evt_1")
	if event.Status != models.WebhookEventStatusProcessed || event.InvoiceID == nil || *event.InvoiceID != invoice.ID {
		t.Errorf("event log = %s / %v", event.Status, event.InvoiceID)
	}

	// Redelivery of the same event is harmless.
	f.deliver(t, payload)
	if f.queue.Len() != 1 {
		t.Errorf("queued %d notifications after redelivery, want 1", f.queue.Len())
	}
	if event := f.eventStatus(t, "evt_1"); event.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", event.Attempts)
	}

	// A distinct event for the same payment does not notify twice either.
	f.deliver(t, checkoutEvent("evt_2", "checkout.session.async_payment_succeeded", "tok-pay", "paid"))
	if f.queue.Len() != 1 {
		t.Errorf("queued %d notifications after second event, want 1", f.queue.Len())
	}
}

func TestWebhookService_AsyncPayment(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	invoice := f.seed(t, "INV-2026-0001", "tok-async", models.InvoiceStatusPending, models.NewDate(2026, 4, 1))
	ctx := context.Background()

	f.deliver(t, checkoutEvent("evt_pending", "checkout.session.completed", "tok-async", "unpaid"))
	if stored, _ := f.service.invoiceService.Get(ctx, invoice.ID); stored.Status != models.InvoiceStatusPending {
		t.Fatalf("Status after unpaid completion = %s, want pending", stored.Status)
	}
	if event := f.eventStatus(t, "evt_pending"); event.Status != models.WebhookEventStatusIgnored {
		t.Errorf("event status = %s, want ignored", event.Status)
	}

	f.deliver(t, checkoutEvent("evt_settled", "checkout.session.async_payment_succeeded", "tok-async", "paid"))
	if stored, _ := f.service.invoiceService.Get(ctx, invoice.ID); stored.Status != models.InvoiceStatusPaid {
		t.Errorf("Status after async success = %s, want paid", stored.Status)
	}
	if f.queue.Len() != 1 {
		t.Errorf("queued %d notifications, want 1", f.queue.Len())
	}
}

func TestWebhookService_Acknowledged(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	due := models.NewDate(2026, 4, 1)
	f.seed(t, "INV-2026-0001", "tok-cancelled", models.InvoiceStatusCancelled, due)
	f.seed(t, "INV-2026-0002", "tok-draft", models.InvoiceStatusDraft, due)

	tests := []struct {
		name       string
		payload    []byte
		eventID    string
		wantStatus models.WebhookEventStatus
	}{
		{"unknown token", checkoutEvent("evt_a", "checkout.session.completed", "tok-missing", "paid"), "evt_a", models.WebhookEventStatusIgnored},
		{"no token", checkoutEvent("evt_b", "checkout.session.completed", "", "paid"), "evt_b", models.WebhookEventStatusIgnored},
		{"cancelled invoice", checkoutEvent("evt_c", "checkout.session.completed", "tok-cancelled", "paid"), "evt_c", models.WebhookEventStatusFailed},
		{"draft invoice", checkoutEvent("evt_d", "checkout.session.completed", "tok-draft", "paid"), "evt_d", models.WebhookEventStatusFailed},
		{"payment intent", []byte(`{"id":"evt_e","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`), "evt_e", models.WebhookEventStatusIgnored},
		{"unhandled type", []byte(`{"id":"evt_f","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`), "evt_f", models.WebhookEventStatusIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.deliver(t, tt.payload)
			if event := f.eventStatus(t, tt.eventID); event.Status != tt.wantStatus {
				t.Errorf("event status = %s, want %s", event.Status, tt.wantStatus)
			}
		})
	}

	if f.queue.Len() != 0 {
		t.Errorf("queued %d notifications, want 0", f.queue.Len())
	}
}

func TestWebhookService_RejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	invoice := f.seed(t, "INV-2026-0001", "tok-pay", models.InvoiceStatusPending, models.NewDate(2026, 4, 1))
	ctx := context.Background()

	payload := checkoutEvent("evt_forged", "checkout.session.completed", "tok-pay", "paid")
	_, err := f.service.HandleStripe(ctx, payload, "t=1,v1=deadbeef")
	if !errors.Is(err, utils.ErrWebhookInvalidSignature) {
		t.Fatalf("HandleStripe() error = %v, want %v", err, utils.ErrWebhookInvalidSignature)
	}

	if stored, _ := f.service.invoiceService.Get(ctx, invoice.ID); stored.Status != models.InvoiceStatusPending {
		t.Errorf("Status = %s, want pending", stored.Status)
	}
	if _, err := f.events.GetByEventID(ctx, ProviderStripe, "evt_forged"); err == nil {
		t.Error("rejected event should not be recorded")
	}
	if f.queue.Len() != 0 {
		t.Errorf("queued %d notifications, want 0", f.queue.Len())
	}
}

func TestWebhookService_InsecureMode(t *testing.T) {
	f := newWebhookFixture(t, "")
	invoice := f.seed(t, "INV-2026-0001", "tok-dev", models.InvoiceStatusPending, models.NewDate(2026, 4, 1))
	ctx := context.Background()

	if _, err := f.service.HandleStripe(ctx, checkoutEvent("evt_dev", "checkout.session.completed", "tok-dev", "paid"), ""); err != nil {
		t.Fatalf("HandleStripe() error = %v", err)
	}
	if stored, _ := f.service.invoiceService.Get(ctx, invoice.ID); stored.Status != models.InvoiceStatusPaid {
		t.Errorf("Status = %s, want paid", stored.Status)
	}

	if _, err := f.service.HandleStripe(ctx, []byte("{not json"), ""); !errors.Is(err, utils.ErrWebhookInvalidPayload) {
		t.Errorf("HandleStripe() error = %v, want %v", err, utils.ErrWebhookInvalidPayload)
	}
}

func TestWebhookService_EnqueueFailureStillAcknowledges(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	f.queue.Err = errors.New("queue down")
	invoice := f.seed(t, "INV-2026-0001", "tok-pay", models.InvoiceStatusPending, models.NewDate(2026, 4, 1))

	f.deliver(t, checkoutEvent("evt_1", "checkout.session.completed", "tok-pay", "paid"))

	if stored, _ := f.service.invoiceService.Get(context.Background(), invoice.ID); stored.Status != models.InvoiceStatusPaid {
		t.Errorf("Status = %s, want paid", stored.Status)
	}
}

func TestWebhookService_ListEvents(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	ctx := context.Background()

	f.deliver(t, []byte(`{"id":"evt_x","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`))

	resp, err := f.service.ListEvents(ctx, "ignored", 10, 0)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if resp.Total != 1 || len(resp.Events) != 1 {
		t.Errorf("ListEvents() total = %d, events = %d", resp.Total, len(resp.Events))
	}

	var verrs utils.ValidationErrors
	if _, err := f.service.ListEvents(ctx, "bogus", 10, 0); !errors.As(err, &verrs) {
		t.Errorf("ListEvents() bogus status error = %v, want ValidationErrors", err)
	}
}
