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

type UserStore struct {
	db *database.DB
}

func NewUserStore(db *database.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var email sql.NullString
	err := scanner.Scan(&u.ID, &u.Name, &u.Phone, &email, &u.PasswordHash, &u.Points,
		&u.BalanceVersion, &u.AvatarSeed, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	return &u, nil
}

const userCols = `id, name, phone, email, password_hash, points, balance_version, avatar_seed, role, created_at, updated_at`

// Create inserts a user with a zero balance and the default avatar. It
// returns ErrDuplicate if the phone or email is already registered.
func (s *UserStore) Create(ctx context.Context, name, phone string, email *string, passwordHash, role string) (*model.User, error) {
	if role == "" {
		role = model.RoleUser
	}
	var emailArg any
	if email != nil && *email != "" {
		emailArg = strings.ToLower(*email)
	}
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`INSERT INTO users (id, name, phone, email, password_hash, points, avatar_seed, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
		 RETURNING `+userCols),
		uuid.NewString(), name, phone, emailArg, passwordHash, model.DefaultAvatarSeed, role, now, now,
	)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) get(ctx context.Context, where string, arg any) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+userCols+` FROM users WHERE `+where), arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.get(ctx, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.get(ctx, `email = ?`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	u, err := s.get(ctx, `phone = ?`, strings.TrimSpace(phone))
	if err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return u, nil
}

// UpdateAvatar changes only the avatar seed. The balance is never part of a
// profile write.
func (s *UserStore) UpdateAvatar(ctx context.Context, id, seed string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET avatar_seed = ?, updated_at = ? WHERE id = ?`),
		seed, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update avatar: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) UpdateRole(ctx context.Context, id, role string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`),
		role, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return s.GetByID(ctx, id)
}

// List returns users newest first. A non-empty search matches name, email
// or phone, case-insensitively.
func (s *UserStore) List(ctx context.Context, search string, limit int) ([]model.User, error) {
	query := `SELECT ` + userCols + ` FROM users`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		p := likePattern(search)
		query += ` WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(COALESCE(email, '')) LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\'`
		args = append(args, p, p, p)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
