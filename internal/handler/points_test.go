package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/reciclamt/internal/model"
)

func TestBalanceAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	h := NewPointsHandler(env.ledger, env.entries, discardLogger)
	u := env.createUser(t, "Ana", "65999990001", 1500)

	w := httptest.NewRecorder()
	h.Balance(w, asUser(newRequest(t, http.MethodGet, "/api/points", nil), u))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp balanceResponse
	decodeBody(t, w, &resp)
	if resp.Points != 1500 {
		t.Errorf("points = %d, want 1500", resp.Points)
	}
	if resp.LevelProgress != 100 {
		t.Errorf("progress = %v, want capped at 100", resp.LevelProgress)
	}

	w = httptest.NewRecorder()
	h.Refresh(w, asUser(newRequest(t, http.MethodPost, "/api/points/refresh", nil), u))
	resp = balanceResponse{}
	decodeBody(t, w, &resp)
	if resp.Points != 1500 {
		t.Errorf("refreshed points = %d, want 1500", resp.Points)
	}

	w = httptest.NewRecorder()
	h.Balance(w, asUser(newRequest(t, http.MethodGet, "/api/points", nil), &model.User{ID: "missing"}))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", w.Code)
	}
}

func TestPointHistory(t *testing.T) {
	env := newTestEnv(t)
	h := NewPointsHandler(env.ledger, env.entries, discardLogger)
	u := env.createUser(t, "Ana", "65999990001", 0)

	w := httptest.NewRecorder()
	h.History(w, asUser(newRequest(t, http.MethodGet, "/api/points/history", nil), u))
	if w.Body.String() != "[]\n" {
		t.Errorf("empty history = %q, want []", w.Body.String())
	}

	if _, err := env.ledger.AdjustPoints(t.Context(), u.ID, 200, "bônus"); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if _, err := env.ledger.AdjustPoints(t.Context(), u.ID, -50, "correção"); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	w = httptest.NewRecorder()
	h.History(w, asUser(newRequest(t, http.MethodGet, "/api/points/history", nil), u))
	var entries []model.PointEntry
	decodeBody(t, w, &entries)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	sum := 0
	for _, e := range entries {
		sum += e.Delta
		if e.Reason != model.EntryAdjustment {
			t.Errorf("reason = %q, want adjustment", e.Reason)
		}
	}
	if sum != 150 {
		t.Errorf("sum = %d, want 150", sum)
	}
}
