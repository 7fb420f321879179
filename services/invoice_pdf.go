package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/malwarebo/invoicer/models"
)

const qrImageName = "pay-link"

// InvoicePDFRenderer lays out an invoice on one or more A4 pages with a QR
// code of its public link.
type InvoicePDFRenderer struct {
	currency string
	links    Links
}

func CreateInvoicePDFRenderer(currency string, links Links) *InvoicePDFRenderer {
	return &InvoicePDFRenderer{currency: strings.ToUpper(currency), links: links}
}

func (r *InvoicePDFRenderer) money(amount decimal.Decimal) string {
	return r.currency + " " + amount.StringFixed(models.MoneyScale)
}

func (r *InvoicePDFRenderer) Render(invoice *models.Invoice, today models.Date) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(37, 99, 235)
	pdf.Cell(0, 15, "INVOICE")
	pdf.Ln(15)

	if err := r.drawQRCode(pdf, invoice.Token); err != nil {
		return nil, err
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(248, 249, 250)
	header := [][2]string{
		{"Invoice #:", invoice.Number},
		{"Issue Date:", invoice.IssueDate.String()},
		{"Due Date:", invoice.DueDate.String()},
		{"Status:", strings.ToUpper(string(invoice.DisplayStatus(today)))},
	}
	for _, row := range header {
		pdf.CellFormat(35, 8, row[0], "1", 0, "", true, 0, "")
		pdf.CellFormat(55, 8, tr(row[1]), "1", 1, "", false, 0, "")
	}
	pdf.Ln(8)

	if invoice.Client != nil {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(37, 99, 235)
		pdf.Cell(0, 8, "Bill To:")
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(0, 0, 0)
		for _, line := range []string{invoice.Client.Name, invoice.Client.Company, invoice.Client.Email, invoice.Client.Address, joinNonEmpty(" ", invoice.Client.PostalCode, invoice.Client.City, invoice.Client.Country)} {
			if line == "" {
				continue
			}
			pdf.CellFormat(90, 5, tr(line), "", 1, "", false, 0, "")
		}
		pdf.Ln(8)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFillColor(37, 99, 235)
	pdf.CellFormat(85, 10, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 10, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 10, "Unit Price", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 10, "Total", "1", 1, "C", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(248, 249, 250)
	fill := false
	for _, item := range invoice.LineItems {
		switch e := item.Entry().(type) {
		case models.SectionLine:
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(170, 8, tr(e.Description), "1", 1, "", true, 0, "")
		case models.ItemLine:
			pdf.SetFont("Arial", "", 9)
			pdf.CellFormat(85, 8, tr(e.Description), "1", 0, "", fill, 0, "")
			pdf.CellFormat(25, 8, quantityLabel(e), "1", 0, "C", fill, 0, "")
			pdf.CellFormat(30, 8, r.money(nullOrZero(e.UnitPrice)), "1", 0, "R", fill, 0, "")
			pdf.CellFormat(30, 8, r.money(e.Amount().Round(models.MoneyScale)), "1", 1, "R", fill, 0, "")
			fill = !fill
		case models.DiscountLine:
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(140, 8, tr(e.Description), "1", 0, "", fill, 0, "")
			pdf.CellFormat(30, 8, r.money(e.UnitPrice.Round(models.MoneyScale)), "1", 1, "R", fill, 0, "")
			fill = !fill
		}
	}
	pdf.Ln(8)

	totalsX := 110.0
	pdf.SetFont("Arial", "B", 10)
	pdf.SetX(totalsX)
	pdf.CellFormat(40, 8, "Subtotal:", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, r.money(invoice.Subtotal), "", 1, "R", false, 0, "")
	if invoice.TotalDiscount.IsPositive() {
		pdf.SetX(totalsX)
		pdf.CellFormat(40, 8, "Discount:", "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, "-"+r.money(invoice.TotalDiscount), "", 1, "R", false, 0, "")
	}
	pdf.SetX(totalsX)
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(37, 99, 235)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(40, 10, "TOTAL:", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 10, r.money(invoice.Total), "1", 1, "R", true, 0, "")

	if invoice.Notes != "" {
		pdf.Ln(10)
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(37, 99, 235)
		pdf.Cell(0, 8, "Notes:")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 5, tr(invoice.Notes), "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// drawQRCode places the pay link in the top right corner of the first page.
func (r *InvoicePDFRenderer) drawQRCode(pdf *gofpdf.Fpdf, token string) error {
	png, err := qrcode.Encode(r.links.PublicInvoice(token), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to encode QR code: %w", err)
	}

	options := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, options, bytes.NewReader(png))
	pdf.ImageOptions(qrImageName, 160, 15, 30, 30, false, options, 0, r.links.PublicInvoice(token))
	return pdf.Error()
}

func quantityLabel(e models.ItemLine) string {
	qty := nullOrZero(e.Quantity).String()
	if label := e.UnitType.Label(); label != "" {
		return qty + " " + label
	}
	return qty
}

func nullOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
