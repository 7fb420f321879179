package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/malwarebo/invoicer/services"
)

const stripeSignatureHeader = "Stripe-Signature"

type WebhookHandler struct {
	webhookService *services.WebhookService
}

func CreateWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// HandleStripeWebhook needs the body exactly as sent; the signature covers the
// raw bytes.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "Webhook payload too large")
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "Failed to read webhook payload")
		return
	}

	ack, err := h.webhookService.HandleStripe(r.Context(), payload, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ack)
}

func (h *WebhookHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	events, err := h.webhookService.ListEvents(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}
