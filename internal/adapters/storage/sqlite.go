package storage

// sqlite.go — almacén append-only de samples con migración automática.
//
// Estrategia:
//   - `spreads`: una fila por tick y par, nunca se actualiza ni borra.
//     Índice (pair, ts_ms) para las lecturas del panel.
//   - Self-migration: antes de cada escritura se comprueba que existan todas
//     las columnas esperadas y se añaden las que falten (TEXT para advice,
//     REAL para el resto). Así el schema en disco es siempre un superconjunto
//     de los schemas históricos y no hace falta tooling de migración externo.
//   - `admin_config`: una única fila (id=1) con el JSON de rate limits.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS spreads (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    pair    TEXT    NOT NULL,
    ts_ms   INTEGER NOT NULL,
    price_a REAL    NOT NULL,
    price_b REAL    NOT NULL,
    spread  REAL    NOT NULL,
    z       REAL    NOT NULL,
    mean    REAL    NOT NULL,
    std     REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_spreads_pair_ts ON spreads(pair, ts_ms);

CREATE TABLE IF NOT EXISTS admin_config (
    id   INTEGER PRIMARY KEY CHECK (id = 1),
    json TEXT NOT NULL
);
`

// sampleColumns son las columnas del sample en el orden de inserción y
// lectura. El schema base solo declara las NOT NULL; el resto las añade
// ensureSchema como columnas nullable.
var sampleColumns = []string{
	"pair", "ts_ms", "price_a", "price_b", "spread", "z", "mean", "std",
	"ema", "center_dev",
	"best_bid_a", "best_ask_a", "best_bid_b", "best_ask_b",
	"ob_spread_a", "ob_spread_b", "ob_spread_pct_a", "ob_spread_pct_b",
	"vol_a", "vol_b",
	"depth_qty_a", "depth_qty_b", "depth_notional_a", "depth_notional_b",
	"maker_fee_a", "taker_fee_a", "maker_fee_b", "taker_fee_b",
	"fr_a", "fr_b", "fr_countdown_ms",
	"half_life_s", "t_exit_s", "advice",
	"net_funding_cycle_usd", "expect_funding_next_usd",
	"age_a_ms", "age_b_ms", "skew_ms", "latency_ms", "stale",
}

// SQLite implementa ports.SampleStore usando SQLite puro Go (sin CGo).
type SQLite struct {
	db *sql.DB
}

// NewSQLite abre (o crea) la base de datos en la ruta dada, creando el
// directorio si hace falta, y aplica el schema base.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage.NewSQLite: mkdir %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLite: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close cierra la conexión.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ensureSchema añade las columnas esperadas que falten en `spreads`.
// Se llama en cada camino de escritura: permite extender el schema entre
// releases sin migraciones externas. Las columnas nuevas son nullable.
func (s *SQLite) ensureSchema(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(spreads)")
	if err != nil {
		return fmt.Errorf("storage.ensureSchema: table_info: %w", err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("storage.ensureSchema: scan: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage.ensureSchema: rows: %w", err)
	}

	for _, col := range sampleColumns {
		if existing[col] {
			continue
		}
		ctype := "REAL"
		if col == "advice" {
			ctype = "TEXT"
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE spreads ADD COLUMN %s %s", col, ctype)); err != nil {
			return fmt.Errorf("storage.ensureSchema: add column %s: %w", col, err)
		}
	}
	return nil
}

// Insert persiste un sample (commit por escritura).
func (s *SQLite) Insert(ctx context.Context, sm domain.Sample) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	var stale *float64
	if sm.Stale != nil {
		stale = domain.Float64(float64(*sm.Stale))
	}

	args := []any{
		sm.Pair, sm.TsMS, sm.PriceA, sm.PriceB, sm.Spread, sm.Z, sm.Mean, sm.Std,
		sm.EMA, sm.CenterDev,
		sm.BestBidA, sm.BestAskA, sm.BestBidB, sm.BestAskB,
		sm.OBSpreadA, sm.OBSpreadB, sm.OBSpreadPctA, sm.OBSpreadPctB,
		sm.VolA, sm.VolB,
		sm.DepthQtyA, sm.DepthQtyB, sm.DepthNotionalA, sm.DepthNotionalB,
		sm.MakerFeeA, sm.TakerFeeA, sm.MakerFeeB, sm.TakerFeeB,
		sm.FrA, sm.FrB, sm.FrCountdownMS,
		sm.HalfLifeS, sm.TExitS, sm.Advice,
		sm.NetFundingCycleUSD, sm.ExpectFundingNextUSD,
		sm.AgeAMS, sm.AgeBMS, sm.SkewMS, sm.LatencyMS, stale,
	}

	q := fmt.Sprintf("INSERT INTO spreads(%s) VALUES (%s)",
		strings.Join(sampleColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(sampleColumns)), ", "))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("storage.Insert: %w", err)
	}
	return nil
}

// Spreads devuelve hasta limit samples del par, el más nuevo primero.
func (s *SQLite) Spreads(ctx context.Context, pair string, limit int) ([]domain.Sample, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM spreads WHERE pair = ? ORDER BY ts_ms DESC LIMIT ?",
		strings.Join(sampleColumns, ", "))
	rows, err := s.db.QueryContext(ctx, q, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.Spreads: %w", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

// Pairs devuelve los nombres de par distintos, ordenados.
func (s *SQLite) Pairs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT pair FROM spreads ORDER BY pair")
	if err != nil {
		return nil, fmt.Errorf("storage.Pairs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("storage.Pairs: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestAll devuelve el sample más reciente de cada par con una sola query
// (join contra (pair, MAX(ts_ms))).
func (s *SQLite) LatestAll(ctx context.Context) ([]domain.Sample, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	cols := make([]string, len(sampleColumns))
	for i, c := range sampleColumns {
		cols[i] = "t." + c
	}
	q := fmt.Sprintf(`SELECT %s FROM spreads t
		JOIN (SELECT pair, MAX(ts_ms) ts FROM spreads GROUP BY pair) m
		ON t.pair = m.pair AND t.ts_ms = m.ts`,
		strings.Join(cols, ", "))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("storage.LatestAll: %w", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

// AdminGet devuelve el blob JSON de admin_config, o nil si no hay fila.
func (s *SQLite) AdminGet(ctx context.Context) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT json FROM admin_config WHERE id = 1").Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.AdminGet: %w", err)
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("storage.AdminGet: parse: %w", err)
	}
	return cfg, nil
}

// AdminSet crea o reemplaza la fila única de admin_config.
func (s *SQLite) AdminSet(ctx context.Context, cfg map[string]any) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("storage.AdminSet: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admin_config (id, json) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET json = excluded.json`, string(b))
	if err != nil {
		return fmt.Errorf("storage.AdminSet: %w", err)
	}
	return nil
}

// scanSamples lee filas con las columnas de sampleColumns en orden.
func scanSamples(rows *sql.Rows) ([]domain.Sample, error) {
	var out []domain.Sample
	for rows.Next() {
		var (
			sm     domain.Sample
			advice sql.NullString
			opt    [31]sql.NullFloat64
			stale  sql.NullFloat64
		)
		dest := []any{
			&sm.Pair, &sm.TsMS, &sm.PriceA, &sm.PriceB, &sm.Spread, &sm.Z, &sm.Mean, &sm.Std,
			&opt[0], &opt[1], // ema, center_dev
			&opt[2], &opt[3], &opt[4], &opt[5], // best bid/ask a,b
			&opt[6], &opt[7], &opt[8], &opt[9], // ob_spread(_pct) a,b
			&opt[10], &opt[11], // vol a,b
			&opt[12], &opt[13], &opt[14], &opt[15], // depth qty/notional
			&opt[16], &opt[17], &opt[18], &opt[19], // fees
			&opt[20], &opt[21], &opt[22], // fr_a, fr_b, countdown
			&opt[23], &opt[24], &advice, // half_life, t_exit, advice
			&opt[25], &opt[26], // funding usd
			&opt[27], &opt[28], &opt[29], &opt[30], &stale, // ages, skew, latency, stale
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("storage.scanSamples: %w", err)
		}

		f := func(i int) *float64 {
			if opt[i].Valid {
				v := opt[i].Float64
				return &v
			}
			return nil
		}
		sm.EMA, sm.CenterDev = f(0), f(1)
		sm.BestBidA, sm.BestAskA, sm.BestBidB, sm.BestAskB = f(2), f(3), f(4), f(5)
		sm.OBSpreadA, sm.OBSpreadB, sm.OBSpreadPctA, sm.OBSpreadPctB = f(6), f(7), f(8), f(9)
		sm.VolA, sm.VolB = f(10), f(11)
		sm.DepthQtyA, sm.DepthQtyB, sm.DepthNotionalA, sm.DepthNotionalB = f(12), f(13), f(14), f(15)
		sm.MakerFeeA, sm.TakerFeeA, sm.MakerFeeB, sm.TakerFeeB = f(16), f(17), f(18), f(19)
		sm.FrA, sm.FrB, sm.FrCountdownMS = f(20), f(21), f(22)
		sm.HalfLifeS, sm.TExitS = f(23), f(24)
		if advice.Valid {
			sm.Advice = domain.String(advice.String)
		}
		sm.NetFundingCycleUSD, sm.ExpectFundingNextUSD = f(25), f(26)
		sm.AgeAMS, sm.AgeBMS, sm.SkewMS, sm.LatencyMS = f(27), f(28), f(29), f(30)
		if stale.Valid {
			sm.Stale = domain.Int(int(stale.Float64))
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
