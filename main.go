package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/joho/godotenv"

	"spendex/auth"
	"spendex/config"
	"spendex/db"
	"spendex/handlers"
	"spendex/i18n"
)

func main() {
	// Optional .env file for ADMIN_USERNAME / ADMIN_PASSWORD and friends.
	_ = godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if err := i18n.LoadTranslations("i18n"); err != nil {
		log.Fatalf("Error loading translations: %v", err)
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer store.Close()

	if err := store.SeedAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Error seeding admin user: %v", err)
	}

	sessions := auth.NewSessions(cfg.SessionKey, cfg.ListenPort != 8080)

	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	h := handlers.New(store, sessions, cfg, "templates")
	h.RegisterHandlers(mux)

	addr := fmt.Sprintf("%s:%d", cfg.ListenIP, cfg.ListenPort)
	log.Printf("Server starting on %s (%s)", addr, cfg.AppName)

	// CSRF Protection
	// We need a 32-byte key. Using session key for now, assuming it's suitable.
	// In production, this should be a separate key.
	csrfMiddleware := csrf.Protect(
		[]byte(cfg.SessionKey),
		csrf.Secure(false), // Set to true in production with HTTPS
		csrf.Path("/"),
	)

	if err := http.ListenAndServe(addr, handlers.SecurityHeadersMiddleware(csrfMiddleware(mux))); err != nil {
		log.Fatal(err)
	}
}
