package model

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Material is a recyclable material category. Point grants are priced per
// kilogram of material.
type Material string

const (
	Plastic     Material = "Plástico"
	Paper       Material = "Papel"
	Glass       Material = "Vidro"
	Metal       Material = "Metal"
	Electronics Material = "Eletrônicos"
)

// Materials lists the recognized vocabulary in display order.
var Materials = []Material{Plastic, Paper, Glass, Metal, Electronics}

// DefaultRate applies to material types outside the vocabulary.
const DefaultRate = 10

var ratesPerKg = map[Material]int{
	Plastic:     10,
	Paper:       8,
	Glass:       12,
	Metal:       15,
	Electronics: 25,
}

// Weight bounds accepted for a single submission.
const (
	MinWeightKg = 0.1
	MaxWeightKg = 100
)

// Rate returns the points per kilogram for m.
func Rate(m Material) int {
	if r, ok := ratesPerKg[m]; ok {
		return r
	}
	return DefaultRate
}

// PointsFor returns round(rate * weightKg), rounding half away from zero.
func PointsFor(m Material, weightKg float64) int {
	return int(math.Round(float64(Rate(m)) * weightKg))
}

// ParseMaterial maps user input onto the vocabulary, ignoring case,
// surrounding space and accents ("plastico" -> Plástico).
func ParseMaterial(s string) (Material, error) {
	key := foldMaterial(s)
	for _, m := range Materials {
		if foldMaterial(string(m)) == key {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown material %q", s)
}

func foldMaterial(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.ToLower(folded)
}

type RecyclingActivity struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	MaterialType Material  `json:"material_type"`
	WeightKg     float64   `json:"weight_kg"`
	PointsEarned int       `json:"points_earned"`
	Location     *string   `json:"location"`
	CreatedAt    time.Time `json:"created_at"`
}

type MaterialStats struct {
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
	Points int     `json:"points"`
}

type RecyclingStats struct {
	TotalActivities int                        `json:"total_activities"`
	TotalPoints     int                        `json:"total_points"`
	TotalWeight     float64                    `json:"total_weight"`
	Materials       map[Material]MaterialStats `json:"material_stats"`
}

// SummarizeActivities aggregates a user's activity history.
func SummarizeActivities(activities []RecyclingActivity) RecyclingStats {
	stats := RecyclingStats{Materials: make(map[Material]MaterialStats)}
	for _, a := range activities {
		stats.TotalActivities++
		stats.TotalPoints += a.PointsEarned
		stats.TotalWeight += a.WeightKg

		ms := stats.Materials[a.MaterialType]
		ms.Count++
		ms.Weight += a.WeightKg
		ms.Points += a.PointsEarned
		stats.Materials[a.MaterialType] = ms
	}
	return stats
}
