package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/model"
)

type PointEntryStore struct {
	db *database.DB
}

func NewPointEntryStore(db *database.DB) *PointEntryStore {
	return &PointEntryStore{db: db}
}

func scanPointEntry(scanner interface{ Scan(...any) error }) (*model.PointEntry, error) {
	var e model.PointEntry
	var ref sql.NullString
	err := scanner.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &ref, &e.Note, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ref.Valid {
		e.ReferenceID = &ref.String
	}
	return &e, nil
}

const pointEntryCols = `id, user_id, delta, reason, reference_id, note, created_at`

// ListByUser returns a user's balance history newest first. limit <= 0 means all.
func (s *PointEntryStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.PointEntry, error) {
	query := `SELECT ` + pointEntryCols + ` FROM point_entries WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list point entries: %w", err)
	}
	defer rows.Close()

	var entries []model.PointEntry
	for rows.Next() {
		e, err := scanPointEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan point entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Sum returns the total of a user's journal deltas.
func (s *PointEntryStore) Sum(ctx context.Context, userID string) (int, error) {
	var sum int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT COALESCE(SUM(delta), 0) FROM point_entries WHERE user_id = ?`), userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum point entries: %w", err)
	}
	return sum, nil
}
