package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/security"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/utils"
)

type InvoiceService struct {
	invoiceStore    *stores.InvoiceStore
	clientStore     *stores.ClientStore
	numberer        *InvoiceNumberer
	paymentTermDays int
	retry           *utils.RetryConfig
	now             func() time.Time
	onChange        []func(context.Context)
	logger          *utils.Logger
}

func CreateInvoiceService(invoiceStore *stores.InvoiceStore, clientStore *stores.ClientStore, numberer *InvoiceNumberer, paymentTermDays int) *InvoiceService {
	if paymentTermDays <= 0 {
		paymentTermDays = models.DefaultPaymentTermDays
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.BaseDelay = 10 * time.Millisecond
	retry.ShouldRetry = isDuplicateKey

	return &InvoiceService{
		invoiceStore:    invoiceStore,
		clientStore:     clientStore,
		numberer:        numberer,
		paymentTermDays: paymentTermDays,
		retry:           retry,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          utils.NewLogger("invoices"),
	}
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// OnChange registers fn to run after any write that moves invoice figures or
// statuses.
func (s *InvoiceService) OnChange(fn func(context.Context)) {
	s.onChange = append(s.onChange, fn)
}

func (s *InvoiceService) changed(ctx context.Context) {
	for _, fn := range s.onChange {
		fn(ctx)
	}
}

func (s *InvoiceService) today() models.Date {
	return models.DateOf(s.now())
}

func (s *InvoiceService) Today() models.Date {
	return s.today()
}

// Create stores a new draft. A caller-supplied number must be unused; without
// one the next number for the current year is issued, and an insert that
// still collides on the unique index is retried with a fresh number.
func (s *InvoiceService) Create(ctx context.Context, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, err := models.BuildLineItems(req.LineItems)
	if err != nil {
		return nil, err
	}

	client, err := s.clientStore.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	issue := today
	if req.IssueDate != nil {
		issue = *req.IssueDate
	}
	due := issue.AddDays(s.paymentTermDays)
	if req.DueDate != nil {
		due = *req.DueDate
	}
	if due.Before(issue) {
		var errs utils.ValidationErrors
		errs.Addf("due_date", "must not be before issue_date")
		return nil, errs
	}

	invoice := &models.Invoice{
		ClientID:  client.ID,
		IssueDate: issue,
		DueDate:   due,
		Status:    models.InvoiceStatusDraft,
		Notes:     req.Notes,
		LineItems: items,
	}
	invoice.ApplyTotals()

	if req.Number != "" {
		err = s.createWithNumber(ctx, invoice, req.Number)
	} else {
		err = utils.Retry(ctx, s.retry, func() error {
			return s.createWithNextNumber(ctx, invoice, today.Year())
		})
	}
	if err != nil {
		return nil, err
	}

	invoice.Client = client
	s.changed(ctx)
	s.logger.Info(ctx, "Invoice created", map[string]interface{}{
		"invoice_id": invoice.ID,
		"number":     invoice.Number,
		"total":      invoice.Total.StringFixed(models.MoneyScale),
	})
	return invoice, nil
}

func (s *InvoiceService) createWithNumber(ctx context.Context, invoice *models.Invoice, number string) error {
	exists, err := s.invoiceStore.NumberExists(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to check invoice number: %w", err)
	}
	if exists {
		return utils.ErrInvoiceNumberTaken
	}

	token, err := security.GeneratePublicToken()
	if err != nil {
		return err
	}
	invoice.Number = number
	invoice.Token = token

	if err := s.invoiceStore.Create(ctx, invoice); err != nil {
		if isDuplicateKey(err) {
			return utils.ErrInvoiceNumberTaken
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	if err := s.numberer.Observe(ctx, number); err != nil {
		s.logger.Warn(ctx, "Failed to move invoice sequence past manual number", map[string]interface{}{
			"number": number,
			"error":  err.Error(),
		})
	}
	return nil
}

// createWithNextNumber allocates a number and inserts the invoice in one
// transaction. A collision rolls the counter back with the insert, so the
// counter is moved past the taken number before the caller retries.
func (s *InvoiceService) createWithNextNumber(ctx context.Context, invoice *models.Invoice, year int) error {
	var number string
	err := s.invoiceStore.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		number, err = s.numberer.Next(txCtx, year)
		if err != nil {
			return err
		}
		token, err := security.GeneratePublicToken()
		if err != nil {
			return err
		}

		resetIDs(invoice)
		invoice.Number = number
		invoice.Token = token

		if err := s.invoiceStore.Create(txCtx, invoice); err != nil {
			if isDuplicateKey(err) {
				s.logger.Warn(txCtx, "Invoice number collided, retrying", map[string]interface{}{"number": number})
				return err
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if isDuplicateKey(err) {
		if skipErr := s.numberer.Observe(ctx, number); skipErr != nil {
			return fmt.Errorf("failed to skip taken invoice number %s: %w", number, skipErr)
		}
	}
	return err
}

// resetIDs clears identifiers assigned by a rolled back insert.
func resetIDs(invoice *models.Invoice) {
	invoice.ID = ""
	for i := range invoice.LineItems {
		invoice.LineItems[i].ID = ""
		invoice.LineItems[i].InvoiceID = ""
	}
}

func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	return s.invoiceStore.GetByID(ctx, id)
}

func (s *InvoiceService) GetByToken(ctx context.Context, token string) (*models.Invoice, error) {
	return s.invoiceStore.GetByToken(ctx, token)
}

// GetPublic loads the invoice behind a shareable link. Drafts have not been
// sent and are reported as missing.
func (s *InvoiceService) GetPublic(ctx context.Context, token string) (*models.Invoice, error) {
	return getPublic(ctx, s.invoiceStore, token)
}

func getPublic(ctx context.Context, invoiceStore *stores.InvoiceStore, token string) (*models.Invoice, error) {
	invoice, err := invoiceStore.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusDraft {
		return nil, utils.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *InvoiceService) List(ctx context.Context, req *models.ListInvoicesRequest) (*models.InvoiceListResponse, error) {
	status := req.Status
	if status == "" {
		status = "all"
	}
	if status != "all" && !models.InvoiceStatus(status).Valid() && models.InvoiceStatus(status) != models.InvoiceStatusOverdue {
		var errs utils.ValidationErrors
		errs.Addf("status", "must be one of all, draft, pending, paid, cancelled, overdue")
		return nil, errs
	}

	today := s.today()
	invoices, total, err := s.invoiceStore.List(ctx, stores.InvoiceFilter{
		ClientID: req.ClientID,
		Status:   status,
		Today:    today,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	views := make([]*models.InvoiceView, 0, len(invoices))
	for _, invoice := range invoices {
		views = append(views, models.NewInvoiceView(invoice, today))
	}
	return &models.InvoiceListResponse{Invoices: views, Total: total, Status: status}, nil
}

// Update edits a draft or pending invoice. Line items, when given, replace the
// stored body and the totals are recalculated.
func (s *InvoiceService) Update(ctx context.Context, id string, req *models.UpdateInvoiceRequest) (*models.Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var items []models.LineItem
	if req.LineItems != nil {
		var err error
		if items, err = models.BuildLineItems(*req.LineItems); err != nil {
			return nil, err
		}
	}

	var updated *models.Invoice
	err := s.invoiceStore.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.invoiceStore.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !invoice.Editable() {
			return &models.LockedError{Status: invoice.Status}
		}

		if req.ClientID != nil && *req.ClientID != invoice.ClientID {
			client, err := s.clientStore.GetByID(txCtx, *req.ClientID)
			if err != nil {
				return err
			}
			invoice.ClientID = client.ID
			invoice.Client = client
		}
		if req.IssueDate != nil {
			invoice.IssueDate = *req.IssueDate
		}
		if req.DueDate != nil {
			invoice.DueDate = *req.DueDate
		}
		if invoice.DueDate.Before(invoice.IssueDate) {
			var errs utils.ValidationErrors
			errs.Addf("due_date", "must not be before issue_date")
			return errs
		}
		if req.Notes != nil {
			invoice.Notes = *req.Notes
		}

		if req.LineItems != nil {
			synced, err := s.invoiceStore.SyncLineItems(txCtx, invoice.ID, items)
			if err != nil {
				return fmt.Errorf("failed to update line items: %w", err)
			}
			invoice.LineItems = synced
		}
		invoice.ApplyTotals()

		if err := s.invoiceStore.UpdateHeader(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx)
	return updated, nil
}

func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	if err := s.invoiceStore.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx)
	s.logger.Info(ctx, "Invoice deleted", map[string]interface{}{"invoice_id": id})
	return nil
}

// Duplicate copies an invoice into a new draft dated today. The source is not
// changed.
func (s *InvoiceService) Duplicate(ctx context.Context, id string) (*models.Invoice, error) {
	source, err := s.invoiceStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	today := s.today()
	copied := source.Duplicate("", "", today)
	copied.DueDate = today.AddDays(s.paymentTermDays)

	err = utils.Retry(ctx, s.retry, func() error {
		return s.createWithNextNumber(ctx, copied, today.Year())
	})
	if err != nil {
		return nil, err
	}

	copied.Client = source.Client
	s.changed(ctx)
	s.logger.Info(ctx, "Invoice duplicated", map[string]interface{}{
		"source_id":  source.ID,
		"invoice_id": copied.ID,
		"number":     copied.Number,
	})
	return copied, nil
}

// NextNumber previews the number the next created invoice would receive.
func (s *InvoiceService) NextNumber(ctx context.Context) (string, error) {
	return s.numberer.Peek(ctx, s.today().Year())
}

func (s *InvoiceService) MarkSent(ctx context.Context, id string) (*models.Invoice, error) {
	return s.transition(ctx, id, func(invoice *models.Invoice, now time.Time) error {
		return invoice.MarkSent(now)
	})
}

// MarkPaid is idempotent: marking an already paid invoice succeeds without
// changing it.
func (s *InvoiceService) MarkPaid(ctx context.Context, id string) (*models.Invoice, bool, error) {
	var transitioned bool
	invoice, err := s.transition(ctx, id, func(invoice *models.Invoice, now time.Time) error {
		var err error
		transitioned, err = invoice.MarkPaid(now)
		return err
	})
	return invoice, transitioned, err
}

// MarkPaidByToken is MarkPaid for callers that only know the public token.
func (s *InvoiceService) MarkPaidByToken(ctx context.Context, token string) (*models.Invoice, bool, error) {
	var invoice *models.Invoice
	var transitioned bool

	err := s.invoiceStore.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.invoiceStore.GetByTokenForUpdate(txCtx, token)
		if err != nil {
			return err
		}
		transitioned, err = invoice.MarkPaid(s.now())
		if err != nil || !transitioned {
			return err
		}
		return s.invoiceStore.UpdateHeader(txCtx, invoice)
	})
	if err != nil {
		return nil, false, err
	}
	if transitioned {
		s.changed(ctx)
	}
	return invoice, transitioned, nil
}

func (s *InvoiceService) Cancel(ctx context.Context, id string) (*models.Invoice, error) {
	return s.transition(ctx, id, func(invoice *models.Invoice, now time.Time) error {
		return invoice.Cancel(now)
	})
}

// transition applies apply to the locked invoice row and saves it.
func (s *InvoiceService) transition(ctx context.Context, id string, apply func(*models.Invoice, time.Time) error) (*models.Invoice, error) {
	var invoice *models.Invoice
	var moved bool

	err := s.invoiceStore.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.invoiceStore.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		before := invoice.Status
		if err := apply(invoice, s.now()); err != nil {
			return err
		}
		if invoice.Status == before {
			return nil
		}

		if err := s.invoiceStore.UpdateHeader(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}
		s.logger.Info(txCtx, "Invoice status changed", map[string]interface{}{
			"invoice_id": invoice.ID,
			"from":       before,
			"to":         invoice.Status,
		})
		moved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moved {
		s.changed(ctx)
	}
	return invoice, nil
}
