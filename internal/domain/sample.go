package domain

import "time"

// Acciones sugeridas por el poller según el z-score del spread.
const (
	ActionEnterShortALongB = "enter_short_A_long_B"
	ActionEnterLongAShortB = "enter_long_A_short_B"
	ActionExit             = "exit"
	ActionHold             = "hold"
)

// Sample es un tick de observación de un par. Los campos de enriquecimiento
// son opcionales: quedan a nil cuando el upstream no estaba disponible, y el
// schema de storage los persiste como columnas nullable.
type Sample struct {
	Pair   string  `json:"pair"`
	TsMS   int64   `json:"ts_ms"`
	PriceA float64 `json:"price_a"`
	PriceB float64 `json:"price_b"`
	Spread float64 `json:"spread"` // invariante: PriceA - PriceB

	Z    float64 `json:"z"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`

	EMA       *float64 `json:"ema"`
	CenterDev *float64 `json:"center_dev"`
	Action    string   `json:"action,omitempty"`

	// Resumen de order book por pata.
	BestBidA        *float64 `json:"best_bid_a"`
	BestAskA        *float64 `json:"best_ask_a"`
	BestBidB        *float64 `json:"best_bid_b"`
	BestAskB        *float64 `json:"best_ask_b"`
	OBSpreadA       *float64 `json:"ob_spread_a"`
	OBSpreadB       *float64 `json:"ob_spread_b"`
	OBSpreadPctA    *float64 `json:"ob_spread_pct_a"`
	OBSpreadPctB    *float64 `json:"ob_spread_pct_b"`
	DepthQtyA       *float64 `json:"depth_qty_a"`
	DepthQtyB       *float64 `json:"depth_qty_b"`
	DepthNotionalA  *float64 `json:"depth_notional_a"`
	DepthNotionalB  *float64 `json:"depth_notional_b"`

	// Volumen quote 24h y fees por pata (fracción, no bps).
	VolA      *float64 `json:"vol_a"`
	VolB      *float64 `json:"vol_b"`
	MakerFeeA *float64 `json:"maker_fee_a"`
	TakerFeeA *float64 `json:"taker_fee_a"`
	MakerFeeB *float64 `json:"maker_fee_b"`
	TakerFeeB *float64 `json:"taker_fee_b"`

	// Funding y estimación de reversión.
	FrA                  *float64 `json:"fr_a"`
	FrB                  *float64 `json:"fr_b"`
	FrCountdownMS        *float64 `json:"fr_countdown_ms"`
	HalfLifeS            *float64 `json:"half_life_s"`
	TExitS               *float64 `json:"t_exit_s"`
	Advice               *string  `json:"advice"`
	NetFundingCycleUSD   *float64 `json:"net_funding_cycle_usd"`
	ExpectFundingNextUSD *float64 `json:"expect_funding_next_usd"`

	// Frescura del tick.
	AgeAMS    *float64 `json:"age_a_ms"`
	AgeBMS    *float64 `json:"age_b_ms"`
	SkewMS    *float64 `json:"skew_ms"`
	LatencyMS *float64 `json:"latency_ms"`
	Stale     *int     `json:"stale"`
}

// NowMS devuelve el reloj de pared en milisegundos unix.
func NowMS() int64 {
	return time.Now().UnixMilli()
}

// Float64 devuelve un puntero a v. Los Samples son pointer-heavy y este helper
// evita variables intermedias en adapters y tests.
func Float64(v float64) *float64 { return &v }

// Int devuelve un puntero a v.
func Int(v int) *int { return &v }

// String devuelve un puntero a v.
func String(v string) *string { return &v }
