package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/google/uuid"
)

type EcopointStore struct {
	db *database.DB
}

func NewEcopointStore(db *database.DB) *EcopointStore {
	return &EcopointStore{db: db}
}

func scanEcopoint(scanner interface{ Scan(...any) error }) (*model.Ecopoint, error) {
	var e model.Ecopoint
	var materials string
	var hours, contact sql.NullString

	err := scanner.Scan(&e.ID, &e.Name, &e.Address, &e.Latitude, &e.Longitude, &materials,
		&hours, &contact, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(materials), &e.AcceptedMaterials); err != nil {
		return nil, fmt.Errorf("decode accepted materials: %w", err)
	}
	if e.AcceptedMaterials == nil {
		e.AcceptedMaterials = []string{}
	}
	if hours.Valid {
		e.OperatingHours = &hours.String
	}
	if contact.Valid {
		e.ContactInfo = &contact.String
	}
	return &e, nil
}

const ecopointCols = `id, name, address, latitude, longitude, accepted_materials, operating_hours, contact_info, active, created_at, updated_at`

func (s *EcopointStore) Create(ctx context.Context, e *model.Ecopoint) (*model.Ecopoint, error) {
	materials := e.AcceptedMaterials
	if materials == nil {
		materials = []string{}
	}
	encoded, err := json.Marshal(materials)
	if err != nil {
		return nil, fmt.Errorf("encode accepted materials: %w", err)
	}
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`INSERT INTO ecopoints (id, name, address, latitude, longitude, accepted_materials, operating_hours, contact_info, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+ecopointCols),
		id, e.Name, e.Address, e.Latitude, e.Longitude, string(encoded), e.OperatingHours, e.ContactInfo, e.Active, now, now,
	)
	created, err := scanEcopoint(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert ecopoint: %w", err)
	}
	return created, nil
}

func (s *EcopointStore) GetByID(ctx context.Context, id string) (*model.Ecopoint, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+ecopointCols+` FROM ecopoints WHERE id = ?`), id)
	e, err := scanEcopoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ecopoint: %w", err)
	}
	return e, nil
}

// ListActive returns active ecopoints ordered by name.
func (s *EcopointStore) ListActive(ctx context.Context) ([]model.Ecopoint, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT `+ecopointCols+` FROM ecopoints WHERE active = ? ORDER BY name ASC`), true)
	if err != nil {
		return nil, fmt.Errorf("list ecopoints: %w", err)
	}
	defer rows.Close()

	var ecopoints []model.Ecopoint
	for rows.Next() {
		e, err := scanEcopoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ecopoint: %w", err)
		}
		ecopoints = append(ecopoints, *e)
	}
	return ecopoints, rows.Err()
}
