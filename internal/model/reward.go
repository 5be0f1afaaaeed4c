package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Availability is the catalog state of a reward.
type Availability int

const (
	Available Availability = iota
	Unavailable
	ComingSoon
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	case ComingSoon:
		return "coming_soon"
	default:
		return fmt.Sprintf("availability(%d)", int(a))
	}
}

// ParseAvailability accepts the canonical names plus the legacy encodings
// "true", "false" and "soon".
func ParseAvailability(s string) (Availability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "true":
		return Available, nil
	case "unavailable", "false":
		return Unavailable, nil
	case "coming_soon", "soon":
		return ComingSoon, nil
	}
	return 0, fmt.Errorf("invalid availability %q", s)
}

func (a Availability) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Availability) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*a = Available
		} else {
			*a = Unavailable
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("availability must be a string or boolean")
	}
	parsed, err := ParseAvailability(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

type Reward struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	PointsRequired int          `json:"points_required"`
	Category       string       `json:"category"`
	ImageURL       *string      `json:"image_url"`
	Availability   Availability `json:"availability"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Redeemable reports whether the reward can currently be exchanged for points.
func (r *Reward) Redeemable() bool {
	return r.Availability == Available
}

// RewardFilter narrows the admin reward listing. Zero values match everything.
type RewardFilter struct {
	Category     string
	Availability *Availability
	Search       string
}

const RedemptionPending = "pending"

type RewardRedemption struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	RewardID       string    `json:"reward_id"`
	PointsUsed     int       `json:"points_used"`
	RedemptionCode string    `json:"redemption_code"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`

	// Populated by listings that join the reward.
	Reward *RewardSummary `json:"reward,omitempty"`
}

type RewardSummary struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url"`
}
