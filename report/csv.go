package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"spendex/models"
)

// WriteCSV streams the expense history as CSV: a header row, then one row
// per expense with the date as YYYY-MM-DD and the amount with exactly two
// decimal places.
func WriteCSV(w io.Writer, expenses []models.Expense) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Date", "Category", "Description", "Amount"}); err != nil {
		return err
	}
	for _, e := range expenses {
		record := []string{
			e.Date.Format("2006-01-02"),
			e.Category,
			e.Description,
			fmt.Sprintf("%.2f", e.Amount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
