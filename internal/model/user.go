package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	DefaultAvatarSeed = "felix"
)

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Email          *string   `json:"email"`
	PasswordHash   string    `json:"-"`
	Points         int       `json:"points"`
	BalanceVersion int64     `json:"-"` // bumped by every committed points change
	AvatarSeed     string    `json:"avatar_seed"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Balance limits. MaxPoints fits a 32-bit INTEGER column on every
// supported database.
const (
	MaxPoints     = 1_000_000_000
	MaxAdjustment = 1_000_000
)

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NextLevelThreshold is the point total that completes the first level.
const NextLevelThreshold = 1000

// LevelProgress returns the percentage of NextLevelThreshold reached, capped at 100.
func LevelProgress(points int) float64 {
	if points <= 0 {
		return 0
	}
	p := float64(points) / NextLevelThreshold * 100
	if p > 100 {
		return 100
	}
	return p
}
