package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/google/uuid"
)

type Service struct {
	store  Store
	cache  BalanceCache
	notify NotifyFunc
	code   CodeFunc
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*Service)

// WithCache keeps cache in sync with every committed balance change.
func WithCache(c BalanceCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithNotify registers fn to be told about committed balance changes.
func WithNotify(fn NotifyFunc) Option {
	return func(s *Service) {
		s.notify = fn
	}
}

// WithCodeFunc replaces the redemption code generator.
func WithCodeFunc(fn CodeFunc) Option {
	return func(s *Service) {
		s.code = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		code:   RandomCode,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecyclingInput is a claimed recycling drop-off.
type RecyclingInput struct {
	UserID   string
	Material model.Material
	WeightKg float64
	Location string
}

// Earning is the outcome of a recorded recycling activity.
type Earning struct {
	Activity     model.RecyclingActivity `json:"activity"`
	PointsEarned int                     `json:"points_earned"`
	NewBalance   int                     `json:"new_total_points"`
}

// RecordRecycling persists a recycling activity and credits the points it
// earns. Submitting the same input twice records two activities.
func (s *Service) RecordRecycling(ctx context.Context, in RecyclingInput) (*Earning, error) {
	if math.IsNaN(in.WeightKg) || in.WeightKg <= 0 || in.WeightKg > model.MaxWeightKg {
		return nil, ErrInvalidWeight
	}
	if strings.TrimSpace(string(in.Material)) == "" {
		return nil, ErrInvalidMaterial
	}

	earned := model.PointsFor(in.Material, in.WeightKg)
	activity := model.RecyclingActivity{
		ID:           s.newID(),
		UserID:       in.UserID,
		MaterialType: in.Material,
		WeightKg:     in.WeightKg,
		PointsEarned: earned,
		CreatedAt:    s.now(),
	}
	if loc := strings.TrimSpace(in.Location); loc != "" {
		activity.Location = &loc
	}

	balance, err := s.store.CreditActivity(ctx, &activity)
	if err != nil {
		return nil, fmt.Errorf("credit activity: %w", err)
	}

	s.logger.Info("recycling recorded",
		"user_id", in.UserID,
		"material", in.Material,
		"weight_kg", in.WeightKg,
		"points", earned,
		"balance", balance.Points,
	)
	s.publish(ctx, in.UserID, balance)

	return &Earning{Activity: activity, PointsEarned: earned, NewBalance: balance.Points}, nil
}

// Redemption is the outcome of a reward redemption.
type Redemption struct {
	Redemption model.RewardRedemption `json:"redemption"`
	Code       string                 `json:"redemption_code"`
	NewBalance int                    `json:"new_points"`
}

// RedeemReward exchanges points for a reward. currentPoints is the caller's
// view of the balance; it gates the request before any write, and the store
// re-checks the authoritative balance when debiting.
func (s *Service) RedeemReward(ctx context.Context, userID, rewardID string, currentPoints int) (*Redemption, error) {
	reward, err := s.store.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.Redeemable() {
		return nil, ErrRewardUnavailable
	}
	if currentPoints < reward.PointsRequired {
		return nil, ErrInsufficientPoints
	}

	r := model.RewardRedemption{
		ID:             s.newID(),
		UserID:         userID,
		RewardID:       reward.ID,
		PointsUsed:     reward.PointsRequired,
		RedemptionCode: s.code(),
		Status:         model.RedemptionPending,
		CreatedAt:      s.now(),
	}

	balance, err := s.store.DebitRedemption(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("debit redemption: %w", err)
	}

	s.logger.Info("reward redeemed",
		"user_id", userID,
		"reward_id", reward.ID,
		"points", reward.PointsRequired,
		"code", r.RedemptionCode,
		"balance", balance.Points,
	)
	s.publish(ctx, userID, balance)

	return &Redemption{Redemption: r, Code: r.RedemptionCode, NewBalance: balance.Points}, nil
}

// AdjustPoints applies a manual signed correction to a user's balance. The
// magnitude of delta is capped at model.MaxAdjustment.
func (s *Service) AdjustPoints(ctx context.Context, userID string, delta int, note string) (int, error) {
	if delta == 0 {
		return 0, ErrZeroAdjustment
	}
	if delta > model.MaxAdjustment || delta < -model.MaxAdjustment {
		return 0, ErrAdjustmentTooLarge
	}

	balance, err := s.store.AdjustPoints(ctx, userID, delta, strings.TrimSpace(note))
	if err != nil {
		return 0, fmt.Errorf("adjust points: %w", err)
	}

	s.logger.Info("points adjusted", "user_id", userID, "delta", delta, "balance", balance.Points)
	s.publish(ctx, userID, balance)

	return balance.Points, nil
}

// Balance returns the user's balance, preferring the cache.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("balance cache get", "user_id", userID, "error", err)
		} else if ok {
			return b.Points, nil
		}
	}
	return s.Refresh(ctx, userID)
}

// Refresh re-reads the balance from the store and updates the cache.
func (s *Service) Refresh(ctx context.Context, userID string) (int, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.storeCached(ctx, userID, Balance{Points: u.Points, Version: u.BalanceVersion})
	return u.Points, nil
}

// Forget drops the cached balance for userID.
func (s *Service) Forget(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("balance cache delete", "user_id", userID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, userID string, b Balance) {
	s.storeCached(ctx, userID, b)
	if s.notify != nil {
		s.notify(userID, b.Points)
	}
}

// storeCached hands b to the cache, which keeps whichever version is newer.
func (s *Service) storeCached(ctx context.Context, userID string, b Balance) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, userID, b); err != nil {
		s.logger.Warn("balance cache set", "user_id", userID, "error", err)
	}
}
