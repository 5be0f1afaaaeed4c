package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/google/uuid"
)

type RewardStore struct {
	db *database.DB
}

func NewRewardStore(db *database.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var imageURL sql.NullString
	var availability string

	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.PointsRequired, &r.Category,
		&imageURL, &availability, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if imageURL.Valid {
		r.ImageURL = &imageURL.String
	}
	r.Availability, err = model.ParseAvailability(availability)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, name, description, points_required, category, image_url, availability, created_at, updated_at`

// Create inserts r, assigning its id and timestamps.
func (s *RewardStore) Create(ctx context.Context, r *model.Reward) (*model.Reward, error) {
	now := time.Now().UTC()
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}

	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`INSERT INTO rewards (id, name, description, points_required, category, image_url, availability, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+rewardCols),
		id, r.Name, r.Description, r.PointsRequired, r.Category, r.ImageURL, r.Availability.String(), now, now,
	)
	created, err := scanReward(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return created, nil
}

func (s *RewardStore) GetByID(ctx context.Context, id string) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`), id)
	r, err := scanReward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// Update overwrites the catalog fields of the reward with r.ID. It returns
// nil if no such reward exists.
func (s *RewardStore) Update(ctx context.Context, r *model.Reward) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`UPDATE rewards SET name = ?, description = ?, points_required = ?, category = ?, image_url = ?, availability = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+rewardCols),
		r.Name, r.Description, r.PointsRequired, r.Category, r.ImageURL, r.Availability.String(), time.Now().UTC(), r.ID,
	)
	updated, err := scanReward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return updated, nil
}

// Delete removes a reward that has never been redeemed. It returns ErrInUse
// if redemptions reference it; deleting a missing reward is a no-op.
func (s *RewardStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM rewards WHERE id = ?
		 AND NOT EXISTS (SELECT 1 FROM reward_redemptions WHERE reward_id = ?)`),
		id, id,
	)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r != nil {
		return ErrInUse
	}
	return nil
}

// ListAvailable returns the redeemable catalog, cheapest first.
func (s *RewardStore) ListAvailable(ctx context.Context) ([]model.Reward, error) {
	return s.query(ctx, `SELECT `+rewardCols+` FROM rewards WHERE availability = ? ORDER BY points_required ASC, name ASC`,
		model.Available.String())
}

// List returns rewards matching f, cheapest first.
func (s *RewardStore) List(ctx context.Context, f model.RewardFilter) ([]model.Reward, error) {
	var where []string
	var args []any
	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, `category = ?`)
		args = append(args, c)
	}
	if f.Availability != nil {
		where = append(where, `availability = ?`)
		args = append(args, f.Availability.String())
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		p := likePattern(q)
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}

	query := `SELECT ` + rewardCols + ` FROM rewards`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY points_required ASC, name ASC`
	return s.query(ctx, query, args...)
}

func (s *RewardStore) query(ctx context.Context, query string, args ...any) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// Categories returns the distinct non-empty reward categories in order.
func (s *RewardStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM rewards WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// --- Redemption methods ---

const redemptionCols = `rr.id, rr.user_id, rr.reward_id, rr.points_used, rr.redemption_code, rr.status, rr.created_at,
	r.name, r.description, r.image_url`

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.RewardRedemption, error) {
	var rr model.RewardRedemption
	var sum model.RewardSummary
	var imageURL sql.NullString

	err := scanner.Scan(&rr.ID, &rr.UserID, &rr.RewardID, &rr.PointsUsed, &rr.RedemptionCode, &rr.Status, &rr.CreatedAt,
		&sum.Name, &sum.Description, &imageURL)
	if err != nil {
		return nil, err
	}

	if imageURL.Valid {
		sum.ImageURL = &imageURL.String
	}
	rr.Reward = &sum
	return &rr, nil
}

// ListRedemptionsByUser returns a user's redemptions newest first, each with
// the redeemed reward's name, description and image.
func (s *RewardStore) ListRedemptionsByUser(ctx context.Context, userID string) ([]model.RewardRedemption, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT `+redemptionCols+`
		 FROM reward_redemptions rr JOIN rewards r ON r.id = rr.reward_id
		 WHERE rr.user_id = ?
		 ORDER BY rr.created_at DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.RewardRedemption
	for rows.Next() {
		rr, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *rr)
	}
	return redemptions, rows.Err()
}

// GetRedemptionByCode looks up a redemption by the code shown to the user.
func (s *RewardStore) GetRedemptionByCode(ctx context.Context, code string) (*model.RewardRedemption, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT `+redemptionCols+`
		 FROM reward_redemptions rr JOIN rewards r ON r.id = rr.reward_id
		 WHERE rr.redemption_code = ?`),
		strings.ToUpper(strings.TrimSpace(code)),
	)
	rr, err := scanRedemption(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption by code: %w", err)
	}
	return rr, nil
}
