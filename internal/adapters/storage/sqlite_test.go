package storage_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/spreadwatch/internal/adapters/storage"
	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(filepath.Join(t.TempDir(), "spreadwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sample(pair string, ts int64, priceA, priceB float64) domain.Sample {
	return domain.Sample{
		Pair:   pair,
		TsMS:   ts,
		PriceA: priceA,
		PriceB: priceB,
		Spread: priceA - priceB,
		Z:      1.2,
		Mean:   0.3,
		Std:    0.1,
	}
}

func TestInsertAndSpreads_NewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Insert(ctx, sample("BTCUSDT", 1000*i, 100, 99.5)))
	}

	rows, err := s.Spreads(ctx, "BTCUSDT", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(5000), rows[0].TsMS)
	assert.Equal(t, int64(3000), rows[2].TsMS)

	// Invariante: spread == price_a - price_b en todo sample persistido.
	for _, r := range rows {
		assert.Equal(t, r.PriceA-r.PriceB, r.Spread)
	}
}

func TestInsert_RoundTripsNullableFields(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sm := sample("ETHUSDT", 42, 2000, 1999)
	sm.EMA = domain.Float64(1.5)
	sm.BestBidA = domain.Float64(1999.5)
	sm.TakerFeeB = domain.Float64(0.0005)
	sm.FrCountdownMS = domain.Float64(3600000)
	sm.Advice = domain.String("position likely to span next funding; evaluate net funding")
	sm.Stale = domain.Int(1)

	require.NoError(t, s.Insert(ctx, sm))

	rows, err := s.Spreads(ctx, "ETHUSDT", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	require.NotNil(t, got.EMA)
	assert.Equal(t, 1.5, *got.EMA)
	require.NotNil(t, got.BestBidA)
	assert.Equal(t, 1999.5, *got.BestBidA)
	require.NotNil(t, got.TakerFeeB)
	assert.Equal(t, 0.0005, *got.TakerFeeB)
	require.NotNil(t, got.Advice)
	assert.Contains(t, *got.Advice, "funding")
	require.NotNil(t, got.Stale)
	assert.Equal(t, 1, *got.Stale)

	// Campos no poblados quedan a nil, no a cero.
	assert.Nil(t, got.CenterDev)
	assert.Nil(t, got.HalfLifeS)
	assert.Nil(t, got.VolA)
}

func TestPairsAndLatestAll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sample("ETHUSDT", 100, 2000, 1999)))
	require.NoError(t, s.Insert(ctx, sample("BTCUSDT", 100, 65000, 64990)))
	require.NoError(t, s.Insert(ctx, sample("BTCUSDT", 200, 65010, 65000)))

	pairs, err := s.Pairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, pairs)

	latest, err := s.LatestAll(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byPair := map[string]domain.Sample{}
	for _, sm := range latest {
		byPair[sm.Pair] = sm
	}
	assert.Equal(t, int64(200), byPair["BTCUSDT"].TsMS)
	assert.Equal(t, int64(100), byPair["ETHUSDT"].TsMS)
}

func TestSelfMigration_AddsMissingColumns(t *testing.T) {
	// Simula una base escrita por un binario viejo sin las columnas
	// advice ni t_exit_s: el schema mínimo de la primera release.
	dir := t.TempDir()
	path := filepath.Join(dir, "old.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE spreads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair TEXT NOT NULL, ts_ms INTEGER NOT NULL,
		price_a REAL NOT NULL, price_b REAL NOT NULL, spread REAL NOT NULL,
		z REAL NOT NULL, mean REAL NOT NULL, std REAL NOT NULL
	);
	INSERT INTO spreads(pair, ts_ms, price_a, price_b, spread, z, mean, std)
	VALUES ('BTCUSDT', 1, 100, 99, 1, 0, 1, 0);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := storage.NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	// Insertar con los campos nuevos funciona sin migración externa.
	sm := sample("BTCUSDT", 2, 101, 99)
	sm.Advice = domain.String("convergence expected before next funding; funding avoidable")
	sm.TExitS = domain.Float64(600)
	require.NoError(t, s.Insert(ctx, sm))

	rows, err := s.Spreads(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Advice)
	assert.Equal(t, 600.0, *rows[0].TExitS)

	// La fila vieja sigue legible con los campos nuevos a nil.
	assert.Nil(t, rows[1].Advice)
	assert.Nil(t, rows[1].TExitS)
}

func TestAdminConfig_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	got, err := s.AdminGet(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "sin fila todavía")

	cfg := map[string]any{
		"ratelimits": map[string]any{
			"aster": map[string]any{"global": map[string]any{"capacity": 20.0, "refill": 10.0}},
		},
	}
	require.NoError(t, s.AdminSet(ctx, cfg))

	got, err = s.AdminGet(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, got, "ratelimits")

	// Update in place de la fila única.
	cfg["ratelimits"].(map[string]any)["lighter"] = map[string]any{
		"global": map[string]any{"capacity": 5.0, "refill": 2.0},
	}
	require.NoError(t, s.AdminSet(ctx, cfg))

	got, err = s.AdminGet(ctx)
	require.NoError(t, err)
	rl := got["ratelimits"].(map[string]any)
	assert.Contains(t, rl, "lighter")
}
