package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeTierTable(t *testing.T) Table {
	t.Helper()
	table, err := NewTable(KindLeague, []Tier{
		{Name: "One", MinPoints: 0, MaxPoints: 999},
		{Name: "Two", MinPoints: 1000, MaxPoints: 2999},
		{Name: "Three", MinPoints: 3000, MaxPoints: Unbounded},
	})
	require.NoError(t, err)
	return table
}

func TestClassifyBoundaries(t *testing.T) {
	table := threeTierTable(t)

	tier, err := table.Classify(999)
	require.NoError(t, err)
	assert.Equal(t, "One", tier.Name)

	tier, err = table.Classify(1000)
	require.NoError(t, err)
	assert.Equal(t, "Two", tier.Name)

	tier, err = table.Classify(999999)
	require.NoError(t, err)
	assert.Equal(t, "Three", tier.Name)

	progress, err := table.Progress(999999)
	require.NoError(t, err)
	assert.Equal(t, 100.0, progress)

	_, ok, err := table.Next(999999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyExactlyOneTierMatches(t *testing.T) {
	for kind, table := range DefaultTables() {
		points := []int64{0, Unbounded}
		for _, tier := range table.Tiers {
			points = append(points, tier.MinPoints, tier.MaxPoints)
		}
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 2000; i++ {
			points = append(points, rng.Int63n(50_000))
		}

		for _, p := range points {
			matches := 0
			for _, tier := range table.Tiers {
				if tier.Contains(p) {
					matches++
				}
			}
			require.Equalf(t, 1, matches, "kind %s points %d", kind, p)

			got, err := table.Classify(p)
			require.NoError(t, err)
			assert.True(t, got.Contains(p))
		}
	}
}

func TestProgressMonotonicWithinTierAndResets(t *testing.T) {
	table := threeTierTable(t)

	prev := -1.0
	for p := int64(0); p <= 999; p++ {
		progress, err := table.Progress(p)
		require.NoError(t, err)
		require.GreaterOrEqual(t, progress, prev)
		require.LessOrEqual(t, progress, 100.0)
		prev = progress
	}
	assert.Equal(t, 100.0, prev)

	atNext, err := table.Progress(1000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, atNext)

	for _, p := range []int64{3000, 3001, 1 << 40, Unbounded} {
		progress, err := table.Progress(p)
		require.NoError(t, err)
		assert.Equal(t, 100.0, progress)
	}
}

func TestNextReturnsFollowingTier(t *testing.T) {
	table := threeTierTable(t)

	next, ok, err := table.Next(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Two", next.Name)

	next, ok, err = table.Next(2999)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Three", next.Name)
}

func TestStandingPointsToNext(t *testing.T) {
	table := threeTierTable(t)

	standing, err := table.Standing(1500)
	require.NoError(t, err)
	assert.Equal(t, "Two", standing.Tier.Name)
	require.NotNil(t, standing.Next)
	assert.Equal(t, "Three", standing.Next.Name)
	assert.Equal(t, int64(1500), standing.PointsToNext)
	assert.InDelta(t, 25.0125, standing.Progress, 0.001)

	top, err := table.Standing(5000)
	require.NoError(t, err)
	assert.Nil(t, top.Next)
	assert.Zero(t, top.PointsToNext)
}

func TestNegativePointsRejected(t *testing.T) {
	table := threeTierTable(t)
	_, err := table.Classify(-1)
	assert.ErrorIs(t, err, ErrInvalidPoints)
}

func TestValidateRejectsMalformedTables(t *testing.T) {
	cases := map[string][]Tier{
		"empty":            nil,
		"not from zero":    {{Name: "A", MinPoints: 1, MaxPoints: Unbounded}},
		"gap":              {{Name: "A", MinPoints: 0, MaxPoints: 10}, {Name: "B", MinPoints: 12, MaxPoints: Unbounded}},
		"overlap":          {{Name: "A", MinPoints: 0, MaxPoints: 10}, {Name: "B", MinPoints: 10, MaxPoints: Unbounded}},
		"bounded terminal": {{Name: "A", MinPoints: 0, MaxPoints: 10}, {Name: "B", MinPoints: 11, MaxPoints: 20}},
		"early unbounded":  {{Name: "A", MinPoints: 0, MaxPoints: Unbounded}, {Name: "B", MinPoints: 11, MaxPoints: Unbounded}},
		"duplicate name":   {{Name: "A", MinPoints: 0, MaxPoints: 10}, {Name: "a", MinPoints: 11, MaxPoints: Unbounded}},
		"unnamed":          {{Name: " ", MinPoints: 0, MaxPoints: Unbounded}},
		"inverted":         {{Name: "A", MinPoints: 0, MaxPoints: 10}, {Name: "B", MinPoints: 11, MaxPoints: 5}, {Name: "C", MinPoints: 6, MaxPoints: Unbounded}},
	}

	for name, tiers := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTable(KindRank, tiers)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestSinglePointTierReportsFullProgress(t *testing.T) {
	table, err := NewTable(KindRank, []Tier{
		{Name: "Zero", MinPoints: 0, MaxPoints: 0},
		{Name: "Rest", MinPoints: 1, MaxPoints: Unbounded},
	})
	require.NoError(t, err)

	progress, err := table.Progress(0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, progress)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("leagues")
	require.NoError(t, err)
	assert.Equal(t, KindLeague, kind)

	_, err = ParseKind("badge")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
