package service

import (
	"testing"

	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type swappableSource struct {
	tables map[tierdomain.Kind]tierdomain.Table
}

func (s *swappableSource) Tables() map[tierdomain.Kind]tierdomain.Table {
	return s.tables
}

func TestServiceUsesDefaultTablesWithoutSource(t *testing.T) {
	svc := New(Params{Log: zap.NewNop()})

	tier, err := svc.Classify(tierdomain.KindLeague, 1500)
	require.NoError(t, err)
	assert.Equal(t, "Silver", tier.Name)

	rank, err := svc.Classify(tierdomain.KindRank, 1500)
	require.NoError(t, err)
	assert.Equal(t, "Giver", rank.Name)
}

func TestServiceFollowsSourceSwap(t *testing.T) {
	source := &swappableSource{tables: tierdomain.DefaultTables()}
	svc := New(Params{Log: zap.NewNop(), Source: source})

	before, err := svc.Classify(tierdomain.KindLeague, 500)
	require.NoError(t, err)
	assert.Equal(t, "Bronze", before.Name)

	replaced, err := tierdomain.NewTable(tierdomain.KindLeague, []tierdomain.Tier{
		{Name: "Starter", MinPoints: 0, MaxPoints: 99},
		{Name: "Regular", MinPoints: 100, MaxPoints: tierdomain.Unbounded},
	})
	require.NoError(t, err)
	source.tables = map[tierdomain.Kind]tierdomain.Table{tierdomain.KindLeague: replaced}

	after, err := svc.Classify(tierdomain.KindLeague, 500)
	require.NoError(t, err)
	assert.Equal(t, "Regular", after.Name)

	_, err = svc.Classify(tierdomain.KindRank, 500)
	assert.ErrorIs(t, err, tierdomain.ErrUnknownKind)
}

func TestServiceStandingAndNext(t *testing.T) {
	svc := NewStatic(tierdomain.DefaultTables())

	standing, err := svc.Standing(tierdomain.KindLeague, 20000)
	require.NoError(t, err)
	assert.Equal(t, "Diamond", standing.Tier.Name)
	assert.Equal(t, 100.0, standing.Progress)

	_, ok, err := svc.Next(tierdomain.KindLeague, 20000)
	require.NoError(t, err)
	assert.False(t, ok)

	next, ok, err := svc.Next(tierdomain.KindRank, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Giver", next.Name)

	progress, err := svc.Progress(tierdomain.KindRank, 250)
	require.NoError(t, err)
	assert.InDelta(t, 50.1, progress, 0.01)
}
