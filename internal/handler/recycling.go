package handler

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/dukerupert/reciclamt/internal/auth"
	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
)

const maxLocationLen = 200

type RecyclingHandler struct {
	ledger         *ledger.Service
	recyclingStore *store.RecyclingStore
	logger         *slog.Logger
}

func NewRecyclingHandler(svc *ledger.Service, rs *store.RecyclingStore, logger *slog.Logger) *RecyclingHandler {
	return &RecyclingHandler{ledger: svc, recyclingStore: rs, logger: logger}
}

type submitRecyclingRequest struct {
	MaterialType string  `json:"material_type"`
	WeightKg     float64 `json:"weight_kg"`
	Location     string  `json:"location"`
}

// Submit records a drop-off and credits its points.
func (h *RecyclingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRecyclingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if math.IsNaN(req.WeightKg) || req.WeightKg < model.MinWeightKg || req.WeightKg > model.MaxWeightKg {
		writeError(w, http.StatusBadRequest, "weight must be between 0.1 and 100 kg")
		return
	}

	material, err := model.ParseMaterial(req.MaterialType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "material_type must be one of Plástico, Papel, Vidro, Metal, Eletrônicos")
		return
	}

	location := sanitize(req.Location)
	if len(location) > maxLocationLen {
		writeError(w, http.StatusBadRequest, "location is too long")
		return
	}

	earning, err := h.ledger.RecordRecycling(r.Context(), ledger.RecyclingInput{
		UserID:   auth.UserID(r.Context()),
		Material: material,
		WeightKg: req.WeightKg,
		Location: location,
	})
	if err != nil {
		writeLedgerError(w, h.logger, "record recycling", err)
		return
	}

	writeJSON(w, http.StatusCreated, earning)
}

func (h *RecyclingHandler) List(w http.ResponseWriter, r *http.Request) {
	activities, err := h.recyclingStore.ListByUser(r.Context(), auth.UserID(r.Context()), parseLimit(r, 50, 500))
	if err != nil {
		h.logger.Error("list recycling activities", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load activities")
		return
	}
	if activities == nil {
		activities = []model.RecyclingActivity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

func (h *RecyclingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.recyclingStore.Stats(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("recycling stats", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type materialRate struct {
	Name        model.Material `json:"name"`
	PointsPerKg int            `json:"points_per_kg"`
}

// Materials lists the material vocabulary with its rates.
func (h *RecyclingHandler) Materials(w http.ResponseWriter, r *http.Request) {
	rates := make([]materialRate, 0, len(model.Materials))
	for _, m := range model.Materials {
		rates = append(rates, materialRate{Name: m, PointsPerKg: model.Rate(m)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"materials":    rates,
		"default_rate": model.DefaultRate,
	})
}
