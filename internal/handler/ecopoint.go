package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/reciclamt/internal/geo"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
)

const maxRadiusKm = 500

type EcopointHandler struct {
	ecopointStore *store.EcopointStore
	logger        *slog.Logger
}

func NewEcopointHandler(es *store.EcopointStore, logger *slog.Logger) *EcopointHandler {
	return &EcopointHandler{ecopointStore: es, logger: logger}
}

func (h *EcopointHandler) List(w http.ResponseWriter, r *http.Request) {
	ecopoints, err := h.ecopointStore.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list ecopoints", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load ecopoints")
		return
	}
	if ecopoints == nil {
		ecopoints = []model.Ecopoint{}
	}
	writeJSON(w, http.StatusOK, ecopoints)
}

// Nearby lists active ecopoints around ?lat=&lng=, closest first. radius is
// in kilometers and defaults to 10.
func (h *EcopointHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil || !geo.ValidCoordinates(lat, lng) {
		writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates")
		return
	}

	radius := geo.DefaultRadiusKm
	if v := q.Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > maxRadiusKm {
			writeError(w, http.StatusBadRequest, "radius must be between 0 and 500 km")
			return
		}
		radius = parsed
	}

	ecopoints, err := h.ecopointStore.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list ecopoints", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load ecopoints")
		return
	}
	writeJSON(w, http.StatusOK, geo.Nearby(ecopoints, lat, lng, radius))
}
