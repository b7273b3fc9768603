package db

import (
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"spendex/models"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrNotFound          = errors.New("record not found")
	ErrNotAuthorized     = errors.New("not authorized")
)

// DummyHash is a throwaway bcrypt digest compared against when a login
// names an unknown user, so the response time does not reveal whether the
// username exists.
const DummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Store owns the SQLite handle. All reads and writes go through its
// typed methods; each mutating method commits before returning.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Foreign keys are switched on so deleting a user cascades
// to its expenses.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	createTables := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		amount REAL NOT NULL,
		category TEXT NOT NULL,
		description TEXT,
		date DATETIME DEFAULT CURRENT_TIMESTAMP,
		user_id INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`
	if _, err := conn.Exec(createTables); err != nil {
		conn.Close()
		return nil, err
	}

	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// SeedAdmin creates the administrator account once. A user with the given
// username already existing, admin or not, leaves the table untouched.
func (s *Store) SeedAdmin(username, password string) error {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec("INSERT INTO users (username, password_hash, is_admin) VALUES (?, ?, 1)", username, hash)
	if err != nil {
		return err
	}
	log.Printf("Admin user %q created", username)
	return nil
}

// CreateUser inserts a non-admin user and returns its id.
func (s *Store) CreateUser(username, passwordHash string) (int, error) {
	result, err := s.conn.Exec("INSERT INTO users (username, password_hash) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrDuplicateUsername
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	return int(id), err
}

func (s *Store) GetUserByID(id int) (*models.User, error) {
	return s.scanUser(s.conn.QueryRow(
		"SELECT id, username, password_hash, is_admin, created_at FROM users WHERE id = ?", id))
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	return s.scanUser(s.conn.QueryRow(
		"SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = ?", username))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers() ([]models.User, error) {
	rows, err := s.conn.Query("SELECT id, username, password_hash, is_admin, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser replaces username and admin flag. An empty passwordHash keeps
// the stored digest.
func (s *Store) UpdateUser(id int, username, passwordHash string, isAdmin bool) error {
	var result sql.Result
	var err error
	if passwordHash != "" {
		result, err = s.conn.Exec(
			"UPDATE users SET username = ?, password_hash = ?, is_admin = ? WHERE id = ?",
			username, passwordHash, isAdmin, id)
	} else {
		result, err = s.conn.Exec(
			"UPDATE users SET username = ?, is_admin = ? WHERE id = ?",
			username, isAdmin, id)
	}
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicateUsername
		}
		return err
	}
	return checkAffected(result)
}

func (s *Store) UpdatePassword(id int, passwordHash string) error {
	result, err := s.conn.Exec("UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// DeleteUser removes the user; the schema cascade removes its expenses.
func (s *Store) DeleteUser(id int) error {
	result, err := s.conn.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// CreateExpense persists a new expense. The category is lower-cased here
// so aggregation always groups consistently; a zero date means now.
func (s *Store) CreateExpense(userID int, amount float64, category, description string, date time.Time) (int, error) {
	if date.IsZero() {
		date = time.Now()
	}
	result, err := s.conn.Exec(
		"INSERT INTO expenses (amount, category, description, date, user_id) VALUES (?, ?, ?, ?, ?)",
		amount, strings.ToLower(category), description, date, userID)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	return int(id), err
}

func (s *Store) GetExpense(id int) (*models.Expense, error) {
	var e models.Expense
	err := s.conn.QueryRow(
		"SELECT id, amount, category, description, date, user_id FROM expenses WHERE id = ?", id).
		Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.Date, &e.UserID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExpensesByUser returns the user's expenses ordered by date
// descending, newest first.
func (s *Store) ListExpensesByUser(userID int) ([]models.Expense, error) {
	rows, err := s.conn.Query(
		"SELECT id, amount, category, description, date, user_id FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.Date, &e.UserID); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// DeleteExpense removes the expense with the given id. Ownership is
// enforced here: only the owner or an administrator may delete.
func (s *Store) DeleteExpense(id, userID int, isAdmin bool) error {
	expense, err := s.GetExpense(id)
	if err != nil {
		return err
	}
	if expense.UserID != userID && !isAdmin {
		return ErrNotAuthorized
	}
	_, err = s.conn.Exec("DELETE FROM expenses WHERE id = ?", id)
	return err
}

// CountExpensesByUser reports how many expense rows belong to the user.
func (s *Store) CountExpensesByUser(userID int) (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM expenses WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
