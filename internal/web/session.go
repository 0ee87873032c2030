package web

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	sessionName = "donormap"
	viewIDKey   = "view_id"
)

// NewSessionStore returns a cookie store signed with key. A nil or empty key
// is replaced by a random one, which invalidates sessions on restart.
func NewSessionStore(key []byte, secure bool) *sessions.CookieStore {
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// viewID returns the session's view id, issuing a new one (and its cookie)
// when the request carries none or an undecodable one.
func (s *Server) viewID(w http.ResponseWriter, r *http.Request) string {
	// Get returns a fresh session alongside a decode error.
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		s.logger.Debug("discarding unreadable session", "error", err)
	}
	if id, ok := sess.Values[viewIDKey].(string); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	sess.Values[viewIDKey] = id
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to save session", "error", err)
	}
	return id
}
