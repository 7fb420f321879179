package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/datatypes"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/monitoring"
	"github.com/malwarebo/invoicer/notifications"
	"github.com/malwarebo/invoicer/providers"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/utils"
)

const ProviderStripe = "stripe"

const enqueueTimeout = 2 * time.Second

// outcome is what handling an event amounted to, for the event log.
type outcome struct {
	status    models.WebhookEventStatus
	invoiceID *string
	message   string
}

func ignored(format string, args ...interface{}) outcome {
	return outcome{status: models.WebhookEventStatusIgnored, message: fmt.Sprintf(format, args...)}
}

type WebhookService struct {
	parser         providers.WebhookParser
	invoiceService *InvoiceService
	webhookStore   *stores.WebhookStore
	queue          notifications.Queue
	currency       string
	links          Links
	logger         *utils.Logger
}

func CreateWebhookService(
	parser providers.WebhookParser,
	invoiceService *InvoiceService,
	webhookStore *stores.WebhookStore,
	queue notifications.Queue,
	currency string,
	links Links,
) *WebhookService {
	return &WebhookService{
		parser:         parser,
		invoiceService: invoiceService,
		webhookStore:   webhookStore,
		queue:          queue,
		currency:       currency,
		links:          links,
		logger:         utils.NewLogger("webhooks"),
	}
}

// HandleStripe verifies and applies one Stripe event. Signature and parse
// failures are returned before anything is recorded. Once the event parsed,
// only a storage failure while marking the invoice paid is returned, so that
// the provider redelivers; every other outcome is acknowledged.
func (s *WebhookService) HandleStripe(ctx context.Context, payload []byte, signature string) (*models.WebhookAck, error) {
	if s.parser.WebhookMode() == providers.WebhookModeInsecure {
		s.logger.Warn(ctx, "Webhook signature verification disabled, accepting unsigned event")
	}

	event, err := s.parser.ParseWebhookEvent(payload, signature)
	if err != nil {
		utils.LogError(ctx, err, "Rejected Stripe webhook", map[string]interface{}{
			"mode": s.parser.WebhookMode(),
		})
		monitoring.RecordWebhookEvent(ProviderStripe, "unparsed", "rejected")
		return nil, err
	}

	record := s.record(ctx, event, payload)

	var result outcome
	var handleErr error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		result, handleErr = s.handleCheckoutPaid(ctx, event)
	case stripe.EventTypePaymentIntentSucceeded:
		s.logger.Info(ctx, "Payment intent succeeded", map[string]interface{}{"event_id": event.ID})
		result = ignored("payment intent events are informational")
	default:
		s.logger.Info(ctx, "Unhandled Stripe event type", map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		})
		result = ignored("unhandled event type %s", event.Type)
	}

	if handleErr != nil {
		result = outcome{status: models.WebhookEventStatusFailed, invoiceID: result.invoiceID, message: handleErr.Error()}
	}
	s.markOutcome(ctx, record, result)
	monitoring.RecordWebhookEvent(ProviderStripe, string(event.Type), string(result.status))

	if handleErr != nil {
		return nil, utils.WrapAPIError(handleErr, utils.ErrWebhookProcessingFailed)
	}

	return &models.WebhookAck{
		Received:  true,
		EventType: string(event.Type),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *WebhookService) handleCheckoutPaid(ctx context.Context, event *stripe.Event) (outcome, error) {
	session, err := providers.CheckoutSessionFromEvent(event)
	if err != nil {
		s.logger.Error(ctx, "Checkout event carried no session", map[string]interface{}{"event_id": event.ID})
		return ignored("no checkout session in event"), nil
	}

	if event.Type == stripe.EventTypeCheckoutSessionCompleted && session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		s.logger.Info(ctx, "Checkout completed with payment pending", map[string]interface{}{
			"event_id":   event.ID,
			"session_id": session.ID,
		})
		return ignored("payment not settled yet"), nil
	}

	token := session.Metadata[providers.MetadataInvoiceToken]
	if token == "" {
		s.logger.Error(ctx, "Checkout completed without invoice_token metadata", map[string]interface{}{
			"event_id":   event.ID,
			"session_id": session.ID,
		})
		return ignored("no invoice_token in metadata"), nil
	}

	invoice, transitioned, err := s.invoiceService.MarkPaidByToken(ctx, token)
	switch {
	case errors.Is(err, utils.ErrInvoiceNotFound):
		s.logger.Error(ctx, "Invoice not found for token", map[string]interface{}{
			"event_id": event.ID,
			"token":    token,
		})
		return ignored("no invoice for token"), nil

	case errors.Is(err, models.ErrInvalidTransition):
		s.logger.Error(ctx, "Failed to mark invoice as paid", map[string]interface{}{
			"event_id": event.ID,
			"token":    token,
			"error":    err.Error(),
		})
		return outcome{status: models.WebhookEventStatusFailed, message: err.Error()}, nil

	case err != nil:
		return outcome{}, err
	}

	result := outcome{status: models.WebhookEventStatusProcessed, invoiceID: &invoice.ID}
	if !transitioned {
		s.logger.Info(ctx, "Invoice already paid, ignoring redelivery", map[string]interface{}{
			"event_id": event.ID,
			"number":   invoice.Number,
		})
		result.message = "invoice already paid"
		return result, nil
	}

	s.logger.Info(ctx, "Invoice marked as paid via Stripe", map[string]interface{}{
		"event_id": event.ID,
		"number":   invoice.Number,
	})
	s.notifyPaid(ctx, invoice)
	return result, nil
}

// notifyPaid enqueues the payment confirmation. A failure is logged and never
// reaches the webhook response.
func (s *WebhookService) notifyPaid(ctx context.Context, invoice *models.Invoice) {
	if s.queue == nil {
		return
	}

	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	n := notifications.NewPaymentReceived(invoice, s.currency, s.links.PublicInvoice(invoice.Token))
	if err := s.queue.Enqueue(enqueueCtx, n); err != nil {
		utils.LogError(ctx, err, "Failed to enqueue payment notification", map[string]interface{}{
			"invoice_id": invoice.ID,
			"number":     invoice.Number,
		})
	}
}

func (s *WebhookService) record(ctx context.Context, event *stripe.Event, payload []byte) *models.WebhookEvent {
	if s.webhookStore == nil || event.ID == "" {
		return nil
	}

	stored, err := s.webhookStore.Record(ctx, &models.WebhookEvent{
		Provider:  ProviderStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   datatypes.JSON(payload),
		Status:    models.WebhookEventStatusReceived,
	})
	if err != nil {
		utils.LogError(ctx, err, "Failed to record webhook event", map[string]interface{}{"event_id": event.ID})
		return nil
	}
	if stored.Attempts > 1 {
		s.logger.Info(ctx, "Webhook event redelivered", map[string]interface{}{
			"event_id": event.ID,
			"attempts": stored.Attempts,
		})
	}
	return stored
}

func (s *WebhookService) markOutcome(ctx context.Context, record *models.WebhookEvent, result outcome) {
	if record == nil {
		return
	}
	if err := s.webhookStore.MarkOutcome(ctx, record.ID, result.status, result.invoiceID, result.message); err != nil {
		utils.LogError(ctx, err, "Failed to update webhook event", map[string]interface{}{"event_id": record.EventID})
	}
}

func (s *WebhookService) ListEvents(ctx context.Context, status string, limit, offset int) (*models.WebhookEventListResponse, error) {
	var filter *models.WebhookEventStatus
	if status != "" {
		st := models.WebhookEventStatus(status)
		switch st {
		case models.WebhookEventStatusReceived, models.WebhookEventStatusProcessed,
			models.WebhookEventStatusIgnored, models.WebhookEventStatusFailed:
			filter = &st
		default:
			var errs utils.ValidationErrors
			errs.Addf("status", "must be one of received, processed, ignored, failed")
			return nil, errs
		}
	}

	events, total, err := s.webhookStore.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return &models.WebhookEventListResponse{Events: events, Total: total}, nil
}
