package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/spreadwatch/config"
	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://fapi.asterdex.com", cfg.Venues.AsterHost)
	assert.Equal(t, 60, cfg.Signal.Lookback)
	assert.Equal(t, 2.0, cfg.Signal.EnterZ)
	assert.Equal(t, time.Second, cfg.PollEvery())
	assert.Equal(t, int64(3000), cfg.Signal.StaleMSThreshold)
	assert.Equal(t, 1000.0, cfg.Funding.NotionalUSD)
	assert.Equal(t, 8, cfg.Funding.CycleHours[domain.VenueAster])

	require.Len(t, cfg.Pairs, 1)
	assert.Equal(t, "BTCUSDT", cfg.Pairs[0].Name)
	assert.Equal(t, domain.VenueLighter, cfg.Pairs[0].A.Venue)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
venues:
  aster_host: http://localhost:9001
  lighter_host: http://localhost:9002
pairs:
  - name: ETHUSDT
    a: {venue: lighter, symbol: ETH}
    b: {venue: aster, symbol: ETHUSDT}
signal:
  lookback: 120
  poll_ms: 500
  enter_z: 1.5
fees:
  aster: {taker: 0.0004}
funding:
  notional_usd: 5000
ingest:
  url: http://localhost:8000/api/ingest/spread
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9001", cfg.Venues.AsterHost)
	assert.Equal(t, 120, cfg.Signal.Lookback)
	assert.Equal(t, 500*time.Millisecond, cfg.PollEvery())
	assert.Equal(t, 1.5, cfg.Signal.EnterZ)
	assert.Equal(t, 0.5, cfg.Signal.ExitZ, "lo no especificado mantiene el default")
	require.NotNil(t, cfg.Fees.Aster.Taker)
	assert.Equal(t, 0.0004, *cfg.Fees.Aster.Taker)
	assert.Nil(t, cfg.Fees.Aster.Maker)
	assert.Equal(t, 5000.0, cfg.Funding.NotionalUSD)
	assert.Equal(t, "http://localhost:8000/api/ingest/spread", cfg.Ingest.URL)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Pairs, 1)
	assert.Equal(t, "ETHUSDT", cfg.Pairs[0].Name)
	assert.Equal(t, "ETH", cfg.Pairs[0].A.Symbol)
	assert.Nil(t, cfg.Pairs[0].A.MarketID, "market_id se descubre al arrancar")
}

func TestLoad_PartialCycleHoursKeepsPerVenueDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
funding:
  cycle_hours:
    aster: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Funding.CycleHours[domain.VenueAster])
	assert.Equal(t, 8, cfg.Funding.CycleHours[domain.VenueLighter],
		"un venue sin entrada no debe quedarse en 0")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ASTER_HOST", "http://env-host:9000")
	t.Setenv("SPREADWATCH_DB_PATH", "/tmp/env.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "http://env-host:9000", cfg.Venues.AsterHost)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.DSN)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pairs: [unclosed"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
