package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
)

type AdminHandler struct {
	userStore *store.UserStore
	ledger    *ledger.Service
	logger    *slog.Logger
}

func NewAdminHandler(us *store.UserStore, svc *ledger.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{userStore: us, ledger: svc, logger: logger}
}

// ListUsers returns users matching ?search= on name, email or phone.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")), parseLimit(r, 100, 1000))
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type adjustPointsRequest struct {
	Delta int    `json:"delta"`
	Note  string `json:"note"`
}

// AdjustPoints applies a signed manual correction to a user's balance.
func (h *AdminHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req adjustPointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	note := sanitize(req.Note)
	if note == "" {
		writeError(w, http.StatusBadRequest, "note is required")
		return
	}

	userID := r.PathValue("id")
	balance, err := h.ledger.AdjustPoints(r.Context(), userID, req.Delta, note)
	if err != nil {
		writeLedgerError(w, h.logger, "adjust points", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"points":  balance,
	})
}

func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != model.RoleUser && role != model.RoleAdmin {
		writeError(w, http.StatusBadRequest, "role must be user or admin")
		return
	}

	user, err := h.userStore.UpdateRole(r.Context(), r.PathValue("id"), role)
	if err != nil {
		h.logger.Error("update role", "error", err)
		writeError(w, http.StatusInternalServerError, "could not update role")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
