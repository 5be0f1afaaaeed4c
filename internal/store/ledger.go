package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/google/uuid"
)

// LedgerStore implements ledger.Store. Each credit or debit runs in one
// transaction that moves the balance with a store-side increment, persists
// the triggering record and appends a point entry.
type LedgerStore struct {
	db      *database.DB
	users   *UserStore
	rewards *RewardStore
}

var _ ledger.Store = (*LedgerStore)(nil)

func NewLedgerStore(db *database.DB) *LedgerStore {
	return &LedgerStore{
		db:      db,
		users:   NewUserStore(db),
		rewards: NewRewardStore(db),
	}
}

func (s *LedgerStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ledger.ErrUserNotFound
	}
	return u, nil
}

func (s *LedgerStore) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	r, err := s.rewards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ledger.ErrRewardNotFound
	}
	return r, nil
}

func (s *LedgerStore) CreditActivity(ctx context.Context, a *model.RecyclingActivity) (ledger.Balance, error) {
	var balance ledger.Balance
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = s.applyDelta(ctx, tx, a.UserID, a.PointsEarned, a.CreatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO recycling_activities (id, user_id, material_type, weight_kg, points_earned, location, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			a.ID, a.UserID, string(a.MaterialType), a.WeightKg, a.PointsEarned, a.Location, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}

		return s.appendEntry(ctx, tx, a.UserID, a.PointsEarned, model.EntryRecycling, &a.ID, "", a.CreatedAt)
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	return balance, nil
}

func (s *LedgerStore) DebitRedemption(ctx context.Context, r *model.RewardRedemption) (ledger.Balance, error) {
	var balance ledger.Balance
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = s.applyDelta(ctx, tx, r.UserID, -r.PointsUsed, r.CreatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO reward_redemptions (id, user_id, reward_id, points_used, redemption_code, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			r.ID, r.UserID, r.RewardID, r.PointsUsed, r.RedemptionCode, r.Status, r.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert redemption: %w", ErrDuplicate)
			}
			return fmt.Errorf("insert redemption: %w", err)
		}

		return s.appendEntry(ctx, tx, r.UserID, -r.PointsUsed, model.EntryRedemption, &r.ID, "", r.CreatedAt)
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	return balance, nil
}

func (s *LedgerStore) AdjustPoints(ctx context.Context, userID string, delta int, note string) (ledger.Balance, error) {
	now := time.Now().UTC()
	var balance ledger.Balance
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = s.applyDelta(ctx, tx, userID, delta, now)
		if err != nil {
			return err
		}
		return s.appendEntry(ctx, tx, userID, delta, model.EntryAdjustment, nil, note, now)
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	return balance, nil
}

func (s *LedgerStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// applyDelta moves the balance by delta unless that would take it below
// zero or above model.MaxPoints, and returns the new balance.
func (s *LedgerStore) applyDelta(ctx context.Context, tx *sql.Tx, userID string, delta int, at time.Time) (ledger.Balance, error) {
	var b ledger.Balance
	err := tx.QueryRowContext(ctx, s.db.Rebind(
		`UPDATE users SET points = points + ?, balance_version = balance_version + 1, updated_at = ?
		 WHERE id = ? AND points + ? BETWEEN 0 AND ?
		 RETURNING points, balance_version`),
		delta, at, userID, delta, model.MaxPoints,
	).Scan(&b.Points, &b.Version)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return b, fmt.Errorf("update balance: %w", err)
	}

	var one int
	err = tx.QueryRowContext(ctx, s.db.Rebind(`SELECT 1 FROM users WHERE id = ?`), userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ledger.ErrUserNotFound
	}
	if err != nil {
		return b, fmt.Errorf("check user: %w", err)
	}
	if delta > 0 {
		return b, ledger.ErrBalanceLimit
	}
	return b, ledger.ErrInsufficientPoints
}

func (s *LedgerStore) appendEntry(ctx context.Context, tx *sql.Tx, userID string, delta int, reason string, ref *string, note string, at time.Time) error {
	_, err := tx.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO point_entries (id, user_id, delta, reason, reference_id, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), userID, delta, reason, ref, note, at,
	)
	if err != nil {
		return fmt.Errorf("insert point entry: %w", err)
	}
	return nil
}
