// Package seed loads the starter reward catalog and ecopoint list.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/dukerupert/reciclamt/internal/store"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Rewards   []RewardSeed   `yaml:"rewards"`
	Ecopoints []EcopointSeed `yaml:"ecopoints"`
}

type RewardSeed struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	PointsRequired int    `yaml:"points_required"`
	Category       string `yaml:"category"`
	ImageURL       string `yaml:"image_url"`
	Availability   string `yaml:"availability"`
}

type EcopointSeed struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Address           string   `yaml:"address"`
	Latitude          float64  `yaml:"latitude"`
	Longitude         float64  `yaml:"longitude"`
	AcceptedMaterials []string `yaml:"accepted_materials"`
	OperatingHours    string   `yaml:"operating_hours"`
	ContactInfo       string   `yaml:"contact_info"`
	Inactive          bool     `yaml:"inactive"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// Parse decodes and validates a YAML catalog.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i, rw := range c.Rewards {
		if rw.ID == "" || rw.Name == "" {
			return nil, fmt.Errorf("reward %d: id and name are required", i)
		}
		if rw.PointsRequired <= 0 {
			return nil, fmt.Errorf("reward %q: points_required must be positive", rw.ID)
		}
		if _, err := model.ParseAvailability(availabilityOrDefault(rw.Availability)); err != nil {
			return nil, fmt.Errorf("reward %q: %w", rw.ID, err)
		}
	}
	for i, e := range c.Ecopoints {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("ecopoint %d: id and name are required", i)
		}
		for _, m := range e.AcceptedMaterials {
			if _, err := model.ParseMaterial(m); err != nil {
				return nil, fmt.Errorf("ecopoint %q: %w", e.ID, err)
			}
		}
	}
	return &c, nil
}

func availabilityOrDefault(s string) string {
	if s == "" {
		return model.Available.String()
	}
	return s
}

type RewardCreator interface {
	Create(ctx context.Context, r *model.Reward) (*model.Reward, error)
}

type EcopointCreator interface {
	Create(ctx context.Context, e *model.Ecopoint) (*model.Ecopoint, error)
}

// Result counts what Load inserted and what was already present.
type Result struct {
	RewardsCreated   int
	RewardsSkipped   int
	EcopointsCreated int
	EcopointsSkipped int
}

// Load inserts the catalog. Entries are keyed by their fixed ids, so loading
// the same catalog twice inserts nothing the second time.
func Load(ctx context.Context, c *Catalog, rewards RewardCreator, ecopoints EcopointCreator, logger *slog.Logger) (Result, error) {
	var res Result
	for _, rw := range c.Rewards {
		a, _ := model.ParseAvailability(availabilityOrDefault(rw.Availability))
		r := &model.Reward{
			ID:             rw.ID,
			Name:           rw.Name,
			Description:    rw.Description,
			PointsRequired: rw.PointsRequired,
			Category:       rw.Category,
			ImageURL:       optional(rw.ImageURL),
			Availability:   a,
		}
		if _, err := rewards.Create(ctx, r); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				res.RewardsSkipped++
				continue
			}
			return res, fmt.Errorf("seed reward %q: %w", rw.ID, err)
		}
		res.RewardsCreated++
	}

	for _, es := range c.Ecopoints {
		materials := make([]string, 0, len(es.AcceptedMaterials))
		for _, m := range es.AcceptedMaterials {
			mat, _ := model.ParseMaterial(m)
			materials = append(materials, string(mat))
		}
		e := &model.Ecopoint{
			ID:                es.ID,
			Name:              es.Name,
			Address:           es.Address,
			Latitude:          es.Latitude,
			Longitude:         es.Longitude,
			AcceptedMaterials: materials,
			OperatingHours:    optional(es.OperatingHours),
			ContactInfo:       optional(es.ContactInfo),
			Active:            !es.Inactive,
		}
		if _, err := ecopoints.Create(ctx, e); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				res.EcopointsSkipped++
				continue
			}
			return res, fmt.Errorf("seed ecopoint %q: %w", es.ID, err)
		}
		res.EcopointsCreated++
	}

	logger.Info("catalog seeded",
		"rewards_created", res.RewardsCreated,
		"rewards_skipped", res.RewardsSkipped,
		"ecopoints_created", res.EcopointsCreated,
		"ecopoints_skipped", res.EcopointsSkipped,
	)
	return res, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
