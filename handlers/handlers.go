package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"

	"spendex/auth"
	"spendex/config"
	"spendex/db"
	"spendex/i18n"
	"spendex/models"
	"spendex/report"
)

// Handlers holds everything a request needs: the store, the session
// manager and the configuration. One instance is built at startup.
type Handlers struct {
	store       *db.Store
	sessions    *auth.Sessions
	cfg         *config.Config
	templateDir string

	loginLimiter  *rateLimiter
	signupLimiter *rateLimiter
}

func New(store *db.Store, sessions *auth.Sessions, cfg *config.Config, templateDir string) *Handlers {
	return &Handlers{
		store:         store,
		sessions:      sessions,
		cfg:           cfg,
		templateDir:   templateDir,
		loginLimiter:  newRateLimiter(5, 15*time.Minute, 15*time.Minute),
		signupLimiter: newRateLimiter(5, 15*time.Minute, 15*time.Minute),
	}
}

func (h *Handlers) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/{$}", h.Home)
	mux.HandleFunc("/register", h.Register)
	mux.HandleFunc("/login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)
	mux.HandleFunc("GET /dashboard", h.Dashboard)
	mux.HandleFunc("/add_expense", h.AddExpense)
	mux.HandleFunc("POST /delete_expense/{id}", h.DeleteExpense)
	mux.HandleFunc("/change_password", h.ChangePassword)
	mux.HandleFunc("GET /export/csv", h.ExportCSV)
	mux.HandleFunc("GET /export/pdf", h.ExportPDF)
	mux.HandleFunc("GET /admin", h.AdminDashboard)
	mux.HandleFunc("GET /admin/users", h.AdminUsers)
	mux.HandleFunc("/admin/users/edit/{id}", h.EditUser)
	mux.HandleFunc("POST /admin/users/delete/{id}", h.DeleteUser)

	if h.cfg.Captcha {
		mux.Handle("/captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	}
}

// requireUser returns the session's user id, redirecting to the login
// page and returning 0 when there is none.
func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) int {
	userID := h.sessions.UserID(r)
	if userID == 0 {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
	return userID
}

// requireAdmin guards the administration routes: anonymous requests go to
// the login page, authenticated non-admins get 403.
func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.sessions.UserID(r) == 0 {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return false
	}
	if !h.sessions.IsAdmin(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	switch {
	case h.sessions.UserID(r) == 0:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case h.sessions.IsAdmin(r):
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		lang := i18n.DetectLanguage(r)
		ip := getClientIP(r)
		if !h.signupLimiter.Allow(ip) {
			h.sessions.Flash(w, r, i18n.T(lang, "TooManyAttempts"))
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}

		if h.cfg.Captcha && !captcha.VerifyString(r.FormValue("captchaId"), r.FormValue("captchaSolution")) {
			h.sessions.Flash(w, r, i18n.T(lang, "InvalidCaptcha"))
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}

		username := r.FormValue("username")
		password := r.FormValue("password")

		hash, err := db.HashPassword(password)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if _, err := h.store.CreateUser(username, hash); err != nil {
			if errors.Is(err, db.ErrDuplicateUsername) {
				h.signupLimiter.RecordFailure(ip)
				h.sessions.Flash(w, r, i18n.T(lang, "UsernameAlreadyExists"))
				http.Redirect(w, r, "/register", http.StatusSeeOther)
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.sessions.Flash(w, r, i18n.T(lang, "RegistrationSuccessful"))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := map[string]any{}
	if h.cfg.Captcha {
		data["CaptchaID"] = captcha.New()
	}
	h.render(w, r, "register.html", data)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		lang := i18n.DetectLanguage(r)
		ip := getClientIP(r)
		if !h.loginLimiter.Allow(ip) {
			h.sessions.Flash(w, r, i18n.T(lang, "TooManyAttempts"))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user, err := h.store.GetUserByUsername(r.FormValue("username"))

		// Timing attack mitigation: always run one bcrypt comparison.
		targetHash := db.DummyHash
		if err == nil {
			targetHash = user.PasswordHash
		}
		match := db.CheckPasswordHash(r.FormValue("password"), targetHash)

		if err != nil || !match {
			h.loginLimiter.RecordFailure(ip)
			h.sessions.Flash(w, r, i18n.T(lang, "InvalidCredentials"))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		h.loginLimiter.Reset(ip)
		h.sessions.SetSession(w, r, user.ID, user.IsAdmin)
		if user.IsAdmin {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
		} else {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		}
		return
	}
	h.render(w, r, "login.html", nil)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	h.sessions.Clear(w, r)
	h.sessions.Flash(w, r, i18n.T(lang, "LoggedOut"))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// expenseView decorates an expense with its presentation attributes.
type expenseView struct {
	models.Expense
	Icon      string
	Color     string
	DateLabel string
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUser(w, r)
	if userID == 0 {
		return
	}
	if h.sessions.IsAdmin(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	expenses, err := h.store.ListExpensesByUser(userID)
	if err != nil {
		log.Printf("Dashboard: listing expenses: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	categoryData := report.AggregateByCategory(expenses)
	summary := report.Summarize(expenses)

	items := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		cat := models.CategoryByID(e.Category)
		items = append(items, expenseView{
			Expense:   e,
			Icon:      cat.Icon,
			Color:     cat.Color,
			DateLabel: e.Date.Format("2006-01-02"),
		})
	}

	h.render(w, r, "dashboard.html", map[string]any{
		"Expenses":        items,
		"CategoryData":    categoryData,
		"TrendData":       report.AggregateByMonth(expenses),
		"TotalSpent":      summary.Total,
		"AverageExpense":  summary.Average,
		"HighestCategory": report.HighestCategory(categoryData),
	})
}

func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUser(w, r)
	if userID == 0 {
		return
	}

	if r.Method == http.MethodPost {
		lang := i18n.DetectLanguage(r)

		amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
		if err != nil {
			h.sessions.Flash(w, r, i18n.T(lang, "InvalidAmount"))
			http.Redirect(w, r, "/add_expense", http.StatusSeeOther)
			return
		}

		var date time.Time
		if ds := r.FormValue("date"); ds != "" {
			date, err = time.Parse("2006-01-02", ds)
			if err != nil {
				h.sessions.Flash(w, r, i18n.T(lang, "InvalidDate"))
				http.Redirect(w, r, "/add_expense", http.StatusSeeOther)
				return
			}
		}

		_, err = h.store.CreateExpense(userID, amount, r.FormValue("category"), r.FormValue("description"), date)
		if err != nil {
			log.Printf("AddExpense: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.sessions.Flash(w, r, i18n.T(lang, "ExpenseAdded"))
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	h.render(w, r, "add_expense.html", map[string]any{
		"Categories": models.Categories,
		"Today":      time.Now().Format("2006-01-02"),
	})
}

func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUser(w, r)
	if userID == 0 {
		return
	}
	lang := i18n.DetectLanguage(r)

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch err := h.store.DeleteExpense(id, userID, h.sessions.IsAdmin(r)); {
	case errors.Is(err, db.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, db.ErrNotAuthorized):
		h.sessions.Flash(w, r, i18n.T(lang, "NotAuthorizedExpense"))
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	case err != nil:
		log.Printf("DeleteExpense: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		h.sessions.Flash(w, r, i18n.T(lang, "ExpenseDeleted"))
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUser(w, r)
	if userID == 0 {
		return
	}

	if r.Method == http.MethodPost {
		lang := i18n.DetectLanguage(r)

		user, err := h.store.GetUserByID(userID)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !db.CheckPasswordHash(r.FormValue("current_password"), user.PasswordHash) {
			h.sessions.Flash(w, r, i18n.T(lang, "WrongCurrentPassword"))
			http.Redirect(w, r, "/change_password", http.StatusSeeOther)
			return
		}
		newPassword := r.FormValue("new_password")
		if newPassword != r.FormValue("confirm_password") {
			h.sessions.Flash(w, r, i18n.T(lang, "PasswordMismatch"))
			http.Redirect(w, r, "/change_password", http.StatusSeeOther)
			return
		}

		hash, err := db.HashPassword(newPassword)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if err := h.store.UpdatePassword(userID, hash); err != nil {
			log.Printf("ChangePassword: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.sessions.Flash(w, r, i18n.T(lang, "PasswordUpdated"))
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	h.render(w, r, "change_password.html", nil)
}

func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUser(w, r)
	if userID == 0 {
		return
	}

	expenses, err := h.store.ListExpensesByUser(userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	if err := report.WriteCSV(w, expenses); err != nil {
		log.Printf("ExportCSV: %v", err)
	}
}

func (h *Handlers) ExportPDF(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUser(w, r)
	if userID == 0 {
		return
	}

	expenses, err := h.store.ListExpensesByUser(userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.pdf"`)
	if err := report.WritePDF(w, expenses); err != nil {
		log.Printf("ExportPDF: %v", err)
	}
}

func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	h.renderUserList(w, r, "admin_dashboard.html")
}

func (h *Handlers) AdminUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	h.renderUserList(w, r, "admin_users.html")
}

func (h *Handlers) renderUserList(w http.ResponseWriter, r *http.Request, page string) {
	users, err := h.store.ListUsers()
	if err != nil {
		log.Printf("listing users: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, page, map[string]any{"Users": users})
}

func (h *Handlers) EditUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		lang := i18n.DetectLanguage(r)

		var hash string
		if pw := r.FormValue("new_password"); pw != "" {
			hash, err = db.HashPassword(pw)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		}

		isAdmin := r.FormValue("is_admin") != ""
		switch err := h.store.UpdateUser(id, r.FormValue("username"), hash, isAdmin); {
		case errors.Is(err, db.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, db.ErrDuplicateUsername):
			h.sessions.Flash(w, r, i18n.T(lang, "UsernameAlreadyExists"))
			http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		case err != nil:
			log.Printf("EditUser: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		default:
			h.sessions.Flash(w, r, i18n.T(lang, "UserUpdated"))
			http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		}
		return
	}

	user, err := h.store.GetUserByID(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "edit_user.html", map[string]any{"User": user})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	lang := i18n.DetectLanguage(r)

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch err := h.store.DeleteUser(id); {
	case errors.Is(err, db.ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		log.Printf("DeleteUser: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		h.sessions.Flash(w, r, i18n.T(lang, "UserDeleted"))
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
	}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	lang := i18n.DetectLanguage(r)

	funcMap := template.FuncMap{
		"T": func(key string) string {
			return i18n.T(lang, key)
		},
		"json": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return "null"
			}
			return template.JS(b)
		},
	}

	tmpl, err := template.New(name).Funcs(funcMap).ParseFiles(
		filepath.Join(h.templateDir, "layout.html"),
		filepath.Join(h.templateDir, name),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	data["AppName"] = h.cfg.AppName
	data["Lang"] = lang
	data["csrfField"] = csrf.TemplateField(r)
	// Flashes mutate the session cookie, so drain them before the body.
	data["Flashes"] = h.sessions.Flashes(w, r)
	data["LoggedIn"] = h.sessions.UserID(r) != 0
	data["IsAdmin"] = h.sessions.IsAdmin(r)

	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("rendering %s: %v", name, err)
	}
}
