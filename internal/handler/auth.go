package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/dukerupert/reciclamt/internal/auth"
	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/middleware"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	maxAvatarSeed  = 64
)

type AuthHandler struct {
	userStore     *store.UserStore
	sessionStore  *store.SessionStore
	ledger        *ledger.Service
	isAdminEmail  func(string) bool
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler builds the account handler. isAdminEmail decides which
// registrations are granted the admin role; nil grants it to nobody.
func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, ls *ledger.Service, isAdminEmail func(string) bool, secureCookies bool, logger *slog.Logger) *AuthHandler {
	if isAdminEmail == nil {
		isAdminEmail = func(string) bool { return false }
	}
	return &AuthHandler{
		userStore:     us,
		sessionStore:  ss,
		ledger:        ls,
		isAdminEmail:  isAdminEmail,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileResponse struct {
	User               *model.User `json:"user"`
	LevelProgress      float64     `json:"level_progress"`
	NextLevelThreshold int         `json:"next_level_threshold"`
}

func newProfile(u *model.User) profileResponse {
	return profileResponse{
		User:               u,
		LevelProgress:      model.LevelProgress(u.Points),
		NextLevelThreshold: model.NextLevelThreshold,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	name := sanitize(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	phone := normalizePhone(req.Phone)
	if len(phone) < 8 {
		writeError(w, http.StatusBadRequest, "a valid phone number is required")
		return
	}
	var emailAddr *string
	if e := strings.ToLower(strings.TrimSpace(req.Email)); e != "" {
		if !strings.Contains(e, "@") {
			writeError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		emailAddr = &e
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	role := model.RoleUser
	if emailAddr != nil && h.isAdminEmail(*emailAddr) {
		role = model.RoleAdmin
	}

	user, err := h.userStore.Create(r.Context(), name, phone, emailAddr, string(hash), role)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "an account with this email or phone already exists")
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, newProfile(user))
}

type loginRequest struct {
	// Identifier is an email address or a phone number.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	id := strings.TrimSpace(req.Identifier)
	if id == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email or phone and password are required")
		return
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(id, "@") {
		user, err = h.userStore.GetByEmail(r.Context(), id)
	} else {
		user, err = h.userStore.GetByPhone(r.Context(), normalizePhone(id))
	}
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "could not sign in, please try again")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	writeJSON(w, http.StatusOK, newProfile(user))
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	sess, err := h.sessionStore.Create(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(store.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
	return true
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if ok {
		if err := h.sessionStore.Delete(r.Context(), ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
		h.ledger.Forget(r.Context(), ac.UserID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get current user", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, newProfile(user))
}

func (h *AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AvatarSeed string `json:"avatar_seed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	seed := sanitize(req.AvatarSeed)
	if seed == "" || len(seed) > maxAvatarSeed {
		writeError(w, http.StatusBadRequest, "avatar_seed must be 1 to 64 characters")
		return
	}

	user, err := h.userStore.UpdateAvatar(r.Context(), auth.UserID(r.Context()), seed)
	if err != nil {
		h.logger.Error("update avatar", "error", err)
		writeError(w, http.StatusInternalServerError, "could not update avatar")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, newProfile(user))
}

// normalizePhone keeps digits and a leading plus sign.
func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, c := range s {
		if unicode.IsDigit(c) || (c == '+' && i == 0) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
