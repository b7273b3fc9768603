package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

const SessionName = "spendex-session"

// Sessions wraps the cookie store. One instance is built at startup and
// handed to the handlers; there is no package-level store.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions derives two 32-byte keys from the configured secret: an HMAC
// key for signing and an AES key for content encryption.
func NewSessions(secret string, secure bool) *Sessions {
	authKey := sha256.Sum256([]byte(secret + "auth"))
	encKey := sha256.Sum256([]byte(secret + "encryption"))

	store := sessions.NewCookieStore(authKey[:], encKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// UserID returns the authenticated user's id, or 0 for no session.
func (s *Sessions) UserID(r *http.Request) int {
	session, _ := s.store.Get(r, SessionName)
	if id, ok := session.Values["userID"].(int); ok {
		return id
	}
	return 0
}

func (s *Sessions) IsAdmin(r *http.Request) bool {
	session, _ := s.store.Get(r, SessionName)
	if isAdmin, ok := session.Values["isAdmin"].(bool); ok {
		return isAdmin
	}
	return false
}

func (s *Sessions) SetSession(w http.ResponseWriter, r *http.Request, userID int, isAdmin bool) {
	session, _ := s.store.Get(r, SessionName)
	session.Values["userID"] = userID
	session.Values["isAdmin"] = isAdmin
	session.Save(r, w)
}

// Clear drops the authenticated identity but keeps the cookie alive, so a
// flash queued right after logout still reaches the login page.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) {
	session, _ := s.store.Get(r, SessionName)
	delete(session.Values, "userID")
	delete(session.Values, "isAdmin")
	session.Save(r, w)
}

// Flash queues a one-shot notice shown on the next rendered page.
func (s *Sessions) Flash(w http.ResponseWriter, r *http.Request, message string) {
	session, _ := s.store.Get(r, SessionName)
	session.AddFlash(message)
	session.Save(r, w)
}

// Flashes drains and returns the queued notices. The drain mutates the
// session, so it must be called before any body bytes are written.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []string {
	session, _ := s.store.Get(r, SessionName)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	session.Save(r, w)

	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}
