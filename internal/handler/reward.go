package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/reciclamt/internal/auth"
	"github.com/dukerupert/reciclamt/internal/email"
	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
	"github.com/dukerupert/reciclamt/internal/websocket"
)

const (
	maxRewardName        = 120
	maxRewardDescription = 1000
	emailTimeout         = 10 * time.Second
)

// RedemptionMailer delivers redemption codes by email.
type RedemptionMailer interface {
	Configured() bool
	SendRedemptionCode(ctx context.Context, n email.RedemptionNotice) error
}

type RewardHandler struct {
	rewardStore *store.RewardStore
	userStore   *store.UserStore
	ledger      *ledger.Service
	mailer      RedemptionMailer
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, us *store.UserStore, svc *ledger.Service, mailer RedemptionMailer, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{
		rewardStore: rs,
		userStore:   us,
		ledger:      svc,
		mailer:      mailer,
		hub:         hub,
		logger:      logger,
	}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	PointsRequired int                 `json:"points_required"`
	Category       string              `json:"category"`
	ImageURL       string              `json:"image_url"`
	Availability   *model.Availability `json:"availability"`
}

// toReward validates req and copies it onto r. An omitted availability
// leaves r.Availability as it was.
func (req rewardRequest) toReward(r *model.Reward) string {
	name := sanitize(req.Name)
	if name == "" || len(name) > maxRewardName {
		return "name is required and must be at most 120 characters"
	}
	desc := sanitize(req.Description)
	if len(desc) > maxRewardDescription {
		return "description is too long"
	}
	if req.PointsRequired <= 0 {
		return "points_required must be greater than zero"
	}
	category := sanitize(req.Category)
	if category == "" {
		return "category is required"
	}

	var image *string
	if raw := strings.TrimSpace(req.ImageURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "image_url must be an http or https URL"
		}
		image = &raw
	}

	r.Name = name
	r.Description = desc
	r.PointsRequired = req.PointsRequired
	r.Category = category
	r.ImageURL = image
	if req.Availability != nil {
		r.Availability = *req.Availability
	}
	return ""
}

// Catalog lists the rewards a user can redeem right now.
func (h *RewardHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.ListAvailable(r.Context())
	if err != nil {
		h.logger.Error("list available rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// List is the admin listing, filtered by category, availability and a
// free-text search over name and description.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.RewardFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if v := q.Get("availability"); v != "" {
		a, err := model.ParseAvailability(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "availability must be available, unavailable or coming_soon")
			return
		}
		f.Availability = &a
	}

	rewards, err := h.rewardStore.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.rewardStore.Categories(r.Context())
	if err != nil {
		h.logger.Error("list reward categories", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	var reward model.Reward
	if msg := req.toReward(&reward); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.rewardStore.Create(r.Context(), &reward)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "created", created.ID, map[string]any{"reward": created}))
	writeJSON(w, http.StatusCreated, created)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := h.rewardStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get reward", "error", err, "reward_id", id)
		writeError(w, http.StatusInternalServerError, "could not update reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.toReward(existing); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.rewardStore.Update(r.Context(), existing)
	if err != nil {
		h.logger.Error("update reward", "error", err, "reward_id", id)
		writeError(w, http.StatusInternalServerError, "could not update reward")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "updated", updated.ID, map[string]any{"reward": updated}))
	writeJSON(w, http.StatusOK, updated)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := h.rewardStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get reward", "error", err, "reward_id", id)
		writeError(w, http.StatusInternalServerError, "could not delete reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	err = h.rewardStore.Delete(r.Context(), id)
	if errors.Is(err, store.ErrInUse) {
		writeError(w, http.StatusConflict, "reward has redemptions; mark it unavailable instead")
		return
	}
	if err != nil {
		h.logger.Error("delete reward", "error", err, "reward_id", id)
		writeError(w, http.StatusInternalServerError, "could not delete reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	// CurrentPoints is the balance the client last saw. When absent the
	// cached balance is used.
	CurrentPoints *int `json:"current_points"`
}

func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	userID := auth.UserID(r.Context())
	var current int
	if req.CurrentPoints != nil {
		current = *req.CurrentPoints
	} else {
		balance, err := h.ledger.Balance(r.Context(), userID)
		if err != nil {
			writeLedgerError(w, h.logger, "read balance", err)
			return
		}
		current = balance
	}

	result, err := h.ledger.RedeemReward(r.Context(), userID, r.PathValue("id"), current)
	if err != nil {
		writeLedgerError(w, h.logger, "redeem reward", err)
		return
	}

	h.notifyRedemption(r.Context(), userID, result)
	writeJSON(w, http.StatusCreated, result)
}

// notifyRedemption emails the code when email delivery is configured and
// the user has an address. Failures are logged; the redemption stands.
func (h *RewardHandler) notifyRedemption(ctx context.Context, userID string, result *ledger.Redemption) {
	if h.mailer == nil || !h.mailer.Configured() {
		return
	}
	user, err := h.userStore.GetByID(ctx, userID)
	if err != nil || user == nil || user.Email == nil {
		return
	}
	reward, err := h.rewardStore.GetByID(ctx, result.Redemption.RewardID)
	if err != nil || reward == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
	defer cancel()
	err = h.mailer.SendRedemptionCode(ctx, email.RedemptionNotice{
		To:         *user.Email,
		UserName:   user.Name,
		RewardName: reward.Name,
		Code:       result.Code,
		NewBalance: result.NewBalance,
	})
	if err != nil {
		h.logger.Error("send redemption email", "error", err, "user_id", userID)
	}
}

func (h *RewardHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	redemptions, err := h.rewardStore.ListRedemptionsByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list redemptions", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load redemptions")
		return
	}
	if redemptions == nil {
		redemptions = []model.RewardRedemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}

// LookupRedemption finds a redemption by its code so staff can honor it.
func (h *RewardHandler) LookupRedemption(w http.ResponseWriter, r *http.Request) {
	redemption, err := h.rewardStore.GetRedemptionByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		h.logger.Error("lookup redemption", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load redemption")
		return
	}
	if redemption == nil {
		writeError(w, http.StatusNotFound, "redemption not found")
		return
	}
	writeJSON(w, http.StatusOK, redemption)
}
