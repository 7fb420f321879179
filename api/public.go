package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/services"
	"github.com/malwarebo/invoicer/utils"
)

// PublicHandler serves the pages a client reaches through an invoice's
// shareable token. None of them require authentication.
type PublicHandler struct {
	invoiceService *services.InvoiceService
	paymentService *services.PaymentService
	renderer       *services.InvoicePDFRenderer
}

func CreatePublicHandler(invoiceService *services.InvoiceService, paymentService *services.PaymentService, renderer *services.InvoicePDFRenderer) *PublicHandler {
	return &PublicHandler{
		invoiceService: invoiceService,
		paymentService: paymentService,
		renderer:       renderer,
	}
}

func (h *PublicHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoiceService.GetPublic(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	public := models.NewPublicInvoice(invoice, h.invoiceService.Today())
	public.Notice = r.URL.Query().Get("notice")
	public.Alert = r.URL.Query().Get("alert")

	writeJSON(w, http.StatusOK, public)
}

func (h *PublicHandler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoiceService.GetPublic(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writePDF(w, r, h.renderer, invoice, h.invoiceService.Today())
}

// HandlePay sends the payer to a provider checkout page. Problems the payer
// can act on are reported back on the public invoice page.
func (h *PublicHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	checkoutURL, err := h.paymentService.StartCheckout(r.Context(), token)
	switch {
	case err == nil:
		http.Redirect(w, r, checkoutURL, http.StatusSeeOther)
	case errors.Is(err, utils.ErrInvoiceNotPayable):
		http.Redirect(w, r, services.PublicInvoiceRedirect(token, "alert", services.AlertNotPayable), http.StatusSeeOther)
	case errors.Is(err, utils.ErrInvoiceNotFound):
		writeError(w, r, err)
	default:
		http.Redirect(w, r, services.PublicInvoiceRedirect(token, "alert", services.AlertProviderError), http.StatusSeeOther)
	}
}

func (h *PublicHandler) HandlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if err := h.paymentService.ConfirmReturn(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}

	http.Redirect(w, r, services.PublicInvoiceRedirect(token, "notice", services.NoticePaymentProcessing), http.StatusSeeOther)
}

func (h *PublicHandler) HandlePaymentCancel(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	http.Redirect(w, r, services.PublicInvoiceRedirect(token, "notice", services.NoticePaymentCancelled), http.StatusSeeOther)
}
