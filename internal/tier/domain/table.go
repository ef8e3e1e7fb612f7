package domain

import (
	"sort"
	"strings"
)

// Table is an ordered tier table. Methods are pure and safe for concurrent use
// as long as the slice is not mutated after validation.
type Table struct {
	Kind  Kind
	Tiers []Tier
}

// NewTable validates tiers and returns a table that owns a copy of them.
func NewTable(kind Kind, tiers []Tier) (Table, error) {
	copied := make([]Tier, len(tiers))
	for i, t := range tiers {
		t.Name = strings.TrimSpace(t.Name)
		t.Benefits = append([]string(nil), t.Benefits...)
		copied[i] = t
	}
	table := Table{Kind: kind, Tiers: copied}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

// Validate checks that the table covers [0, ∞) with no gaps or overlaps.
func (t Table) Validate() error {
	if len(t.Tiers) == 0 {
		return configError(t.Kind, "table is empty")
	}
	if t.Tiers[0].MinPoints != 0 {
		return configError(t.Kind, "first tier %q starts at %d, want 0", t.Tiers[0].Name, t.Tiers[0].MinPoints)
	}

	seen := make(map[string]struct{}, len(t.Tiers))
	last := len(t.Tiers) - 1
	for i, tier := range t.Tiers {
		if tier.Name == "" {
			return configError(t.Kind, "tier %d has no name", i)
		}
		key := strings.ToLower(tier.Name)
		if _, dup := seen[key]; dup {
			return configError(t.Kind, "duplicate tier name %q", tier.Name)
		}
		seen[key] = struct{}{}

		if tier.MaxPoints < tier.MinPoints {
			return configError(t.Kind, "tier %q has max %d below min %d", tier.Name, tier.MaxPoints, tier.MinPoints)
		}
		if i == last {
			if !tier.IsTerminal() {
				return configError(t.Kind, "terminal tier %q must be unbounded", tier.Name)
			}
			continue
		}
		if tier.IsTerminal() {
			return configError(t.Kind, "non-terminal tier %q is unbounded", tier.Name)
		}
		next := t.Tiers[i+1]
		if tier.MaxPoints+1 != next.MinPoints {
			return configError(t.Kind, "tier %q ends at %d but %q starts at %d", tier.Name, tier.MaxPoints, next.Name, next.MinPoints)
		}
	}
	return nil
}

// Classify returns the unique tier containing points.
func (t Table) Classify(points int64) (Tier, error) {
	idx, err := t.index(points)
	if err != nil {
		return Tier{}, err
	}
	return t.Tiers[idx], nil
}

// Next returns the tier above the classification of points. ok is false in
// the terminal tier.
func (t Table) Next(points int64) (tier Tier, ok bool, err error) {
	idx, err := t.index(points)
	if err != nil {
		return Tier{}, false, err
	}
	if idx+1 >= len(t.Tiers) {
		return Tier{}, false, nil
	}
	return t.Tiers[idx+1], true, nil
}

// Progress returns how far points are through their tier, in [0, 100].
// The terminal tier always reports 100.
func (t Table) Progress(points int64) (float64, error) {
	tier, err := t.Classify(points)
	if err != nil {
		return 0, err
	}
	return progressWithin(tier, points), nil
}

// Standing bundles classification, next tier and progress.
func (t Table) Standing(points int64) (Standing, error) {
	idx, err := t.index(points)
	if err != nil {
		return Standing{}, err
	}
	tier := t.Tiers[idx]
	standing := Standing{
		Kind:     t.Kind,
		Points:   points,
		Tier:     tier,
		Progress: progressWithin(tier, points),
	}
	if idx+1 < len(t.Tiers) {
		next := t.Tiers[idx+1]
		standing.Next = &next
		standing.PointsToNext = next.MinPoints - points
	}
	return standing, nil
}

func (t Table) index(points int64) (int, error) {
	if points < 0 {
		return 0, ErrInvalidPoints
	}
	// tiers are sorted by MinPoints; find the last tier starting at or below points
	idx := sort.Search(len(t.Tiers), func(i int) bool {
		return t.Tiers[i].MinPoints > points
	}) - 1
	if idx < 0 || !t.Tiers[idx].Contains(points) {
		return 0, configError(t.Kind, "no tier matches %d points", points)
	}
	return idx, nil
}

func progressWithin(tier Tier, points int64) float64 {
	if tier.IsTerminal() {
		return 100
	}
	span := tier.MaxPoints - tier.MinPoints
	if span <= 0 {
		return 100
	}
	pct := float64(points-tier.MinPoints) / float64(span) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
