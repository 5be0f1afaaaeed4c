package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/model"
)

func submit(t *testing.T, h *RecyclingHandler, u *model.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.Submit(w, asUser(newRequest(t, http.MethodPost, "/api/recycling", body), u))
	return w
}

func TestSubmitRecycling(t *testing.T) {
	env := newTestEnv(t)
	h := NewRecyclingHandler(env.ledger, env.recycling, discardLogger)
	u := env.createUser(t, "Ana", "65999990001", 0)

	w := submit(t, h, u, submitRecyclingRequest{
		MaterialType: "plastico",
		WeightKg:     2.5,
		Location:     "<b>Ecoponto Centro</b>",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var earning ledger.Earning
	decodeBody(t, w, &earning)
	if earning.PointsEarned != 25 {
		t.Errorf("points earned = %d, want 25", earning.PointsEarned)
	}
	if earning.NewBalance != 25 {
		t.Errorf("balance = %d, want 25", earning.NewBalance)
	}
	if earning.Activity.MaterialType != model.Plastic {
		t.Errorf("material = %q, want %q", earning.Activity.MaterialType, model.Plastic)
	}
	if earning.Activity.Location == nil || *earning.Activity.Location != "Ecoponto Centro" {
		t.Errorf("location = %v, want sanitized text", earning.Activity.Location)
	}

	user, err := env.users.GetByID(t.Context(), u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Points != 25 {
		t.Errorf("stored points = %d, want 25", user.Points)
	}
}

func TestSubmitRecyclingValidation(t *testing.T) {
	env := newTestEnv(t)
	h := NewRecyclingHandler(env.ledger, env.recycling, discardLogger)
	u := env.createUser(t, "Ana", "65999990001", 0)

	tests := []struct {
		name string
		req  submitRecyclingRequest
	}{
		{"zero weight", submitRecyclingRequest{MaterialType: "Papel", WeightKg: 0}},
		{"below minimum", submitRecyclingRequest{MaterialType: "Papel", WeightKg: 0.05}},
		{"above maximum", submitRecyclingRequest{MaterialType: "Papel", WeightKg: 100.5}},
		{"negative", submitRecyclingRequest{MaterialType: "Papel", WeightKg: -1}},
		{"blank material", submitRecyclingRequest{MaterialType: "  ", WeightKg: 1}},
		{"unknown material", submitRecyclingRequest{MaterialType: "Madeira", WeightKg: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := submit(t, h, u, tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}

	activities, err := env.recycling.ListByUser(t.Context(), u.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(activities) != 0 {
		t.Errorf("activities = %d, want 0 after rejected submissions", len(activities))
	}
}

func TestSubmitRecyclingUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	h := NewRecyclingHandler(env.ledger, env.recycling, discardLogger)

	w := submit(t, h, &model.User{ID: "missing"}, submitRecyclingRequest{MaterialType: "Papel", WeightKg: 1})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRecyclingListAndStats(t *testing.T) {
	env := newTestEnv(t)
	h := NewRecyclingHandler(env.ledger, env.recycling, discardLogger)
	u := env.createUser(t, "Ana", "65999990001", 0)

	w := httptest.NewRecorder()
	h.List(w, asUser(newRequest(t, http.MethodGet, "/api/recycling", nil), u))
	if w.Body.String() != "[]\n" {
		t.Errorf("empty list body = %q, want []", w.Body.String())
	}

	submit(t, h, u, submitRecyclingRequest{MaterialType: "Metal", WeightKg: 2})
	submit(t, h, u, submitRecyclingRequest{MaterialType: "Vidro", WeightKg: 1})

	w = httptest.NewRecorder()
	h.List(w, asUser(newRequest(t, http.MethodGet, "/api/recycling", nil), u))
	var activities []model.RecyclingActivity
	decodeBody(t, w, &activities)
	if len(activities) != 2 {
		t.Fatalf("activities = %d, want 2", len(activities))
	}

	w = httptest.NewRecorder()
	h.Stats(w, asUser(newRequest(t, http.MethodGet, "/api/recycling/stats", nil), u))
	var stats model.RecyclingStats
	decodeBody(t, w, &stats)
	if stats.TotalActivities != 2 || stats.TotalPoints != 42 || stats.TotalWeight != 3 {
		t.Errorf("stats = %+v, want 2 activities, 42 points, 3 kg", stats)
	}
	if stats.Materials[model.Metal].Points != 30 {
		t.Errorf("metal points = %d, want 30", stats.Materials[model.Metal].Points)
	}
}

func TestMaterials(t *testing.T) {
	h := NewRecyclingHandler(nil, nil, discardLogger)
	w := httptest.NewRecorder()
	h.Materials(w, httptest.NewRequest(http.MethodGet, "/api/materials", nil))

	var resp struct {
		Materials   []materialRate `json:"materials"`
		DefaultRate int            `json:"default_rate"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Materials) != 5 {
		t.Fatalf("materials = %d, want 5", len(resp.Materials))
	}
	if resp.Materials[4].Name != model.Electronics || resp.Materials[4].PointsPerKg != 25 {
		t.Errorf("last material = %+v, want Eletrônicos at 25", resp.Materials[4])
	}
	if resp.DefaultRate != 10 {
		t.Errorf("default rate = %d, want 10", resp.DefaultRate)
	}
}
