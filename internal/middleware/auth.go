package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/reciclamt/internal/auth"
	"github.com/dukerupert/reciclamt/internal/model"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "reciclamt_session"

type SessionLookup interface {
	GetByToken(ctx context.Context, token string) (*model.Session, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth validates the session cookie and populates AuthContext. The
// role is read from the user record on every request so that promotions and
// demotions apply immediately.
func RequireAuth(sessions SessionLookup, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				jsonError(w, http.StatusUnauthorized, "login required")
				return
			}

			sess, err := sessions.GetByToken(r.Context(), cookie.Value)
			if err != nil {
				logger.Error("session lookup", "error", err)
				jsonError(w, http.StatusInternalServerError, "could not verify session")
				return
			}
			if sess == nil {
				jsonError(w, http.StatusUnauthorized, "session expired")
				return
			}

			user, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil {
				logger.Error("session user lookup", "error", err, "user_id", sess.UserID)
				jsonError(w, http.StatusInternalServerError, "could not verify session")
				return
			}
			if user == nil {
				jsonError(w, http.StatusUnauthorized, "session expired")
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Role:      user.Role,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			jsonError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
