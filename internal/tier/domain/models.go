package domain

import (
	"math"
)

// Unbounded marks the open upper end of the terminal tier.
const Unbounded int64 = math.MaxInt64

// Kind names a tier table.
type Kind string

const (
	KindLeague Kind = "league"
	KindRank   Kind = "rank"
)

// Tier is one bracket of an ordered, contiguous point table.
type Tier struct {
	Name      string   `json:"name" mapstructure:"name"`
	MinPoints int64    `json:"min_points" mapstructure:"min_points"`
	MaxPoints int64    `json:"max_points" mapstructure:"max_points"`
	Icon      string   `json:"icon" mapstructure:"icon"`
	Benefits  []string `json:"benefits" mapstructure:"benefits"`
}

// IsTerminal reports whether the tier has no upper bound.
func (t Tier) IsTerminal() bool {
	return t.MaxPoints == Unbounded
}

// Contains reports whether points fall inside [MinPoints, MaxPoints].
func (t Tier) Contains(points int64) bool {
	return points >= t.MinPoints && points <= t.MaxPoints
}

// Standing is the read model returned for a point total.
type Standing struct {
	Kind         Kind    `json:"kind"`
	Points       int64   `json:"points"`
	Tier         Tier    `json:"tier"`
	Next         *Tier   `json:"next,omitempty"`
	Progress     float64 `json:"progress"`
	PointsToNext int64   `json:"points_to_next"`
}
