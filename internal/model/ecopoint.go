package model

import "time"

type Ecopoint struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Address           string    `json:"address"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	AcceptedMaterials []string  `json:"accepted_materials"`
	OperatingHours    *string   `json:"operating_hours"`
	ContactInfo       *string   `json:"contact_info"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Accepts reports whether the ecopoint takes the given material.
func (e *Ecopoint) Accepts(m Material) bool {
	for _, name := range e.AcceptedMaterials {
		if name == string(m) {
			return true
		}
	}
	return false
}
