package ledger

import (
	"context"

	"github.com/dukerupert/reciclamt/internal/model"
)

// Balance is a committed points total. Version grows by one with each
// change, so of two balances for the same user the higher version is newer.
type Balance struct {
	Points  int
	Version int64
}

// Store is the record store the ledger runs against. Implementations must
// apply each Credit/Debit/Adjust call atomically: the record, its journal
// entry and the balance change commit together, and the balance update is
// a store-side increment, never a client-computed overwrite.
type Store interface {
	// GetUser returns ErrUserNotFound when id does not resolve.
	GetUser(ctx context.Context, id string) (*model.User, error)
	// GetReward returns ErrRewardNotFound when id does not resolve.
	GetReward(ctx context.Context, id string) (*model.Reward, error)

	// CreditActivity persists a and adds a.PointsEarned to the owner's
	// balance, returning the new balance. It fails with ErrBalanceLimit if
	// the balance would pass model.MaxPoints.
	CreditActivity(ctx context.Context, a *model.RecyclingActivity) (Balance, error)

	// DebitRedemption persists r and subtracts r.PointsUsed from the owner's
	// balance. It fails with ErrInsufficientPoints, persisting nothing, if
	// the stored balance is below r.PointsUsed.
	DebitRedemption(ctx context.Context, r *model.RewardRedemption) (Balance, error)

	// AdjustPoints applies a signed delta, failing with
	// ErrInsufficientPoints if the balance would go negative and
	// ErrBalanceLimit if it would pass model.MaxPoints.
	AdjustPoints(ctx context.Context, userID string, delta int, note string) (Balance, error)
}

// BalanceCache holds the last known balance per user. It is a view, not a
// source of truth: errors are logged and otherwise ignored.
type BalanceCache interface {
	Get(ctx context.Context, userID string) (b Balance, ok bool, err error)
	// Set stores b unless the cache already holds a higher version.
	Set(ctx context.Context, userID string, b Balance) error
	Delete(ctx context.Context, userID string) error
}

// NotifyFunc is called after every committed balance change.
type NotifyFunc func(userID string, points int)
