package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/reciclamt/internal/auth"
	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
)

type PointsHandler struct {
	ledger          *ledger.Service
	pointEntryStore *store.PointEntryStore
	logger          *slog.Logger
}

func NewPointsHandler(svc *ledger.Service, ps *store.PointEntryStore, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{ledger: svc, pointEntryStore: ps, logger: logger}
}

type balanceResponse struct {
	Points             int     `json:"points"`
	LevelProgress      float64 `json:"level_progress"`
	NextLevelThreshold int     `json:"next_level_threshold"`
}

func newBalance(points int) balanceResponse {
	return balanceResponse{
		Points:             points,
		LevelProgress:      model.LevelProgress(points),
		NextLevelThreshold: model.NextLevelThreshold,
	}
}

// Balance serves the cached balance, filling the cache on a miss.
func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	points, err := h.ledger.Balance(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeLedgerError(w, h.logger, "read balance", err)
		return
	}
	writeJSON(w, http.StatusOK, newBalance(points))
}

// Refresh re-reads the authoritative balance.
func (h *PointsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	points, err := h.ledger.Refresh(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeLedgerError(w, h.logger, "refresh balance", err)
		return
	}
	writeJSON(w, http.StatusOK, newBalance(points))
}

func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.pointEntryStore.ListByUser(r.Context(), auth.UserID(r.Context()), parseLimit(r, 100, 1000))
	if err != nil {
		h.logger.Error("list point entries", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load point history")
		return
	}
	if entries == nil {
		entries = []model.PointEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
