package model

import "time"

// Reasons recorded on point entries.
const (
	EntryRecycling  = "recycling"
	EntryRedemption = "redemption"
	EntryAdjustment = "adjustment"
)

// PointEntry is one signed change to a user's balance. The entries of a
// user always sum to User.Points.
type PointEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Delta       int       `json:"delta"`
	Reason      string    `json:"reason"`
	ReferenceID *string   `json:"reference_id"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}
