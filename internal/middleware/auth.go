package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/store"
)

const sessionCookieName = "elevenses_session"

// authenticate resolves the session cookie to an identity. Membership is
// checked on every request, so a removed member loses access immediately
// even with a live session.
func authenticate(r *http.Request, sessions *store.SessionStore, households *store.HouseholdStore) (auth.AuthContext, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.AuthContext{}, false
	}
	sess, err := sessions.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return auth.AuthContext{}, false
	}
	member, err := households.GetMember(sess.HouseholdID, sess.UserID)
	if err != nil || member == nil {
		return auth.AuthContext{}, false
	}
	return auth.AuthContext{
		UserID:      sess.UserID,
		HouseholdID: sess.HouseholdID,
		Role:        member.Role,
		SessionID:   sess.ID,
	}, true
}

// RequireAuth validates the session cookie and attaches the identity to the
// request context. Clients are JSON API consumers, so failures answer 401
// rather than redirecting anywhere.
func RequireAuth(sessions *store.SessionStore, households *store.HouseholdStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := authenticate(r, sessions, households)
			if !ok {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), ac)))
		})
	}
}

// RequireAdmin rejects requests whose identity lacks the admin role. It runs
// inside RequireAuth, so an anonymous request never reaches it.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			jsonError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	jsonError(w, http.StatusUnauthorized, "authentication required")
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
