// Package report computes spending aggregates and serializes expense
// history for download.
package report

import (
	"math"
	"sort"
	"strings"

	"spendex/models"
)

// AggregateByCategory sums amounts per lower-cased category.
func AggregateByCategory(expenses []models.Expense) map[string]float64 {
	totals := make(map[string]float64)
	for _, e := range expenses {
		totals[strings.ToLower(e.Category)] += e.Amount
	}
	return totals
}

type MonthTotal struct {
	Month string // "YYYY-MM"
	Total float64
}

// AggregateByMonth sums amounts per calendar month, ascending by month
// key. Lexicographic order on "YYYY-MM" is chronological order.
func AggregateByMonth(expenses []models.Expense) []MonthTotal {
	totals := make(map[string]float64)
	for _, e := range expenses {
		totals[e.Date.Format("2006-01")] += e.Amount
	}

	months := make([]MonthTotal, 0, len(totals))
	for month, total := range totals {
		months = append(months, MonthTotal{Month: month, Total: total})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months
}

type Summary struct {
	Total   float64
	Average float64 // rounded to 2 decimal places, 0 when empty
	Count   int
}

func Summarize(expenses []models.Expense) Summary {
	s := Summary{Count: len(expenses)}
	for _, e := range expenses {
		s.Total += e.Amount
	}
	if s.Count > 0 {
		s.Average = math.Round(s.Total/float64(s.Count)*100) / 100
	}
	return s
}

// HighestCategory returns the category with the largest total, or "N/A"
// for an empty expense set. Ties resolve to the alphabetically first
// category so the figure is deterministic.
func HighestCategory(byCategory map[string]float64) string {
	highest := "N/A"
	var max float64
	for category, total := range byCategory {
		if highest == "N/A" || total > max || (total == max && category < highest) {
			highest = category
			max = total
		}
	}
	return highest
}
