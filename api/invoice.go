package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/services"
)

type InvoiceHandler struct {
	invoiceService *services.InvoiceService
	renderer       *services.InvoicePDFRenderer
}

func CreateInvoiceHandler(invoiceService *services.InvoiceService, renderer *services.InvoicePDFRenderer) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		renderer:       renderer,
	}
}

func (h *InvoiceHandler) respond(w http.ResponseWriter, status int, invoice *models.Invoice) {
	writeJSON(w, status, models.InvoiceResponse{
		Invoice: models.NewInvoiceView(invoice, h.invoiceService.Today()),
	})
}

func (h *InvoiceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	invoice, err := h.invoiceService.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, invoice)
}

func (h *InvoiceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoiceService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, invoice)
}

func (h *InvoiceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	req := &models.ListInvoicesRequest{
		ClientID: r.URL.Query().Get("client_id"),
		Status:   r.URL.Query().Get("status"),
		Limit:    limit,
		Offset:   offset,
	}

	invoices, err := h.invoiceService.List(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	invoice, err := h.invoiceService.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, invoice)
}

func (h *InvoiceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.invoiceService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *InvoiceHandler) HandleNextNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.invoiceService.NextNumber(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NextNumberResponse{Number: number})
}

func (h *InvoiceHandler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoiceService.Duplicate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, invoice)
}

func (h *InvoiceHandler) HandleMarkSent(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoiceService.MarkSent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, invoice)
}

// HandleMarkPaid records an out-of-band payment. Marking an already paid
// invoice again returns it unchanged.
func (h *InvoiceHandler) HandleMarkPaid(w http.ResponseWriter, r *http.Request) {
	invoice, _, err := h.invoiceService.MarkPaid(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, invoice)
}

func (h *InvoiceHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoiceService.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, invoice)
}

func (h *InvoiceHandler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoiceService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writePDF(w, r, h.renderer, invoice, h.invoiceService.Today())
}

func writePDF(w http.ResponseWriter, r *http.Request, renderer *services.InvoicePDFRenderer, invoice *models.Invoice, today models.Date) {
	body, err := renderer.Render(invoice, today)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to render invoice %s: %w", invoice.Number, err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", invoice.Number+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
