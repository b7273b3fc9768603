package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type Expense struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// Category is the fixed expense vocabulary. Icon and color are only used
// by the templates; aggregation keys on the lower-cased ID.
type Category struct {
	ID    string
	Icon  string
	Color string
}

var Categories = []Category{
	{"food", "🍔", "#FF6384"},
	{"transport", "🚌", "#36A2EB"},
	{"shopping", "🛍️", "#FFCE56"},
	{"bills", "💡", "#4BC0C0"},
	{"entertainment", "🎬", "#9966FF"},
	{"toy", "🧸", "#42BFD8"},
	{"other", "📦", "#FF9F40"},
}

// CategoryByID returns the matching category, or the "other" entry for
// anything outside the vocabulary.
func CategoryByID(id string) Category {
	for _, c := range Categories {
		if c.ID == id {
			return c
		}
	}
	return Categories[len(Categories)-1]
}
