package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"spendex/models"
)

// Layout constants, in points from the bottom of an A4 page. The header
// is drawn once on the first page only.
const (
	pdfTitleY     = 800
	pdfHeaderY    = 760
	pdfTopY       = 800 // first row position after a page break
	pdfBottomY    = 50
	pdfLineStep   = 20
	pdfMaxDescLen = 25
)

// WritePDF renders the expense history as a paginated PDF report and
// writes it to w.
func WritePDF(w io.Writer, expenses []models.Expense) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("Expenses Report", true)
	pdf.AddPage()
	_, pageHeight := pdf.GetPageSize()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(200, pageHeight-pdfTitleY, "Expenses Report")

	pdf.SetFont("Helvetica", "", 12)
	y := float64(pdfHeaderY)
	pdf.Text(50, pageHeight-y, "Date")
	pdf.Text(150, pageHeight-y, "Category")
	pdf.Text(300, pageHeight-y, "Description")
	// Core fonts have no rupee glyph, so the currency marker is spelled out.
	pdf.Text(450, pageHeight-y, "Amount (Rs)")
	y -= pdfLineStep

	for _, e := range expenses {
		if y < pdfBottomY {
			pdf.AddPage()
			y = pdfTopY
		}
		pdf.Text(50, pageHeight-y, e.Date.Format("2006-01-02"))
		pdf.Text(150, pageHeight-y, e.Category)
		pdf.Text(300, pageHeight-y, truncate(e.Description, pdfMaxDescLen))
		pdf.Text(450, pageHeight-y, fmt.Sprintf("%.2f", e.Amount))
		y -= pdfLineStep
	}

	return pdf.Output(w)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
