package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/model"
)

type RecyclingStore struct {
	db *database.DB
}

func NewRecyclingStore(db *database.DB) *RecyclingStore {
	return &RecyclingStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.RecyclingActivity, error) {
	var a model.RecyclingActivity
	var location sql.NullString
	err := scanner.Scan(&a.ID, &a.UserID, &a.MaterialType, &a.WeightKg, &a.PointsEarned, &location, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if location.Valid {
		a.Location = &location.String
	}
	return &a, nil
}

const activityCols = `id, user_id, material_type, weight_kg, points_earned, location, created_at`

// ListByUser returns a user's activities newest first. limit <= 0 means all.
func (s *RecyclingStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.RecyclingActivity, error) {
	query := `SELECT ` + activityCols + ` FROM recycling_activities WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.RecyclingActivity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

// Stats aggregates all of a user's activities.
func (s *RecyclingStore) Stats(ctx context.Context, userID string) (model.RecyclingStats, error) {
	activities, err := s.ListByUser(ctx, userID, 0)
	if err != nil {
		return model.RecyclingStats{}, err
	}
	return model.SummarizeActivities(activities), nil
}
