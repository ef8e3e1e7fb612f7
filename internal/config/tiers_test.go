package config

import (
	"os"
	"path/filepath"
	"testing"

	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validTiers = `
tiers:
  league:
    - name: Starter
      min_points: 0
      max_points: 999
      icon: starter
      benefits: ["Badge"]
    - name: Pillar
      min_points: 1000
      max_points: 2999
    - name: Beacon
      min_points: 3000
`

const gappedTiers = `
tiers:
  league:
    - name: Starter
      min_points: 0
      max_points: 999
    - name: Pillar
      min_points: 1500
`

func writeTierFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTierFileOverridesLeaguesOnly(t *testing.T) {
	tables, err := LoadTierFile(writeTierFile(t, validTiers))
	require.NoError(t, err)

	leagues := tables[tierdomain.KindLeague]
	require.Len(t, leagues.Tiers, 3)
	assert.Equal(t, "Beacon", leagues.Tiers[2].Name)
	assert.True(t, leagues.Tiers[2].IsTerminal())
	assert.Equal(t, []string{"Badge"}, leagues.Tiers[0].Benefits)
	assert.NotNil(t, leagues.Tiers[1].Benefits)

	ranks := tables[tierdomain.KindRank]
	assert.Equal(t, len(tierdomain.DefaultRanks()), len(ranks.Tiers))
}

func TestLoadTierFileRejectsGaps(t *testing.T) {
	_, err := LoadTierFile(writeTierFile(t, gappedTiers))
	require.Error(t, err)
	assert.True(t, tierdomain.IsConfigurationError(err))
}

func TestHolderFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewTierConfigHolder(Config{}, zap.NewNop())
	require.NoError(t, err)

	tier, err := holder.Tables()[tierdomain.KindLeague].Classify(0)
	require.NoError(t, err)
	assert.Equal(t, "Bronze", tier.Name)
}

func TestHolderFailsStartupOnInvalidFile(t *testing.T) {
	_, err := NewTierConfigHolder(Config{TiersFile: writeTierFile(t, gappedTiers)}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, tierdomain.IsConfigurationError(err))
}

func TestHolderReloadKeepsPreviousTablesOnInvalidConfig(t *testing.T) {
	path := writeTierFile(t, validTiers)
	holder, err := NewTierConfigHolder(Config{TiersFile: path}, zap.NewNop())
	require.NoError(t, err)

	bad := viper.New()
	bad.SetConfigFile(writeTierFile(t, gappedTiers))
	require.NoError(t, bad.ReadInConfig())
	holder.reload(bad, "bad.yml")

	assert.Equal(t, "Starter", holder.Tables()[tierdomain.KindLeague].Tiers[0].Name)

	good := viper.New()
	good.SetConfigFile(writeTierFile(t, `
tiers:
  league:
    - name: Everyone
      min_points: 0
`))
	require.NoError(t, good.ReadInConfig())
	holder.reload(good, "good.yml")

	assert.Len(t, holder.Tables()[tierdomain.KindLeague].Tiers, 1)
}
