package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
	"github.com/microcosm-cc/bluemonday"
)

const maxBodyBytes = 1 << 20

// plainText strips all markup from user-supplied free text.
var plainText = bluemonday.StrictPolicy()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// sanitize removes markup and surrounding space, leaving plain text.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(s)))
}

func parseLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// writeLedgerError maps ledger and store failures onto HTTP responses.
// Unexpected errors are logged and reported without internal detail.
func writeLedgerError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidWeight):
		writeError(w, http.StatusBadRequest, "weight must be a positive number of kilograms, at most 100")
	case errors.Is(err, ledger.ErrInvalidMaterial):
		writeError(w, http.StatusBadRequest, "material type is required")
	case errors.Is(err, ledger.ErrZeroAdjustment):
		writeError(w, http.StatusBadRequest, "adjustment must not be zero")
	case errors.Is(err, ledger.ErrAdjustmentTooLarge):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("adjustment must be at most %d points either way", model.MaxAdjustment))
	case errors.Is(err, ledger.ErrBalanceLimit):
		writeError(w, http.StatusConflict, "balance would exceed the maximum")
	case errors.Is(err, ledger.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ledger.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, "reward not found")
	case errors.Is(err, ledger.ErrRewardUnavailable):
		writeError(w, http.StatusConflict, "reward is not available")
	case errors.Is(err, ledger.ErrInsufficientPoints):
		writeError(w, http.StatusConflict, "insufficient points")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "the request collided with another one, please try again")
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "could not complete the operation, please try again")
	}
}
