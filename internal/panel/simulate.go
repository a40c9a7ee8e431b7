package panel

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
)

// SimResult es el desglose de costes de entrar una posición del notional
// dado barriendo el libro actual con órdenes taker.
type SimResult struct {
	MidA         float64 `json:"mid_a"`
	MidB         float64 `json:"mid_b"`
	AvgA         float64 `json:"avg_a"`
	AvgB         float64 `json:"avg_b"`
	SlipAPct     float64 `json:"slip_a_pct"`
	SlipBPct     float64 `json:"slip_b_pct"`
	SlipAUSD     float64 `json:"slip_a_usd"`
	SlipBUSD     float64 `json:"slip_b_usd"`
	FeeAUSD      float64 `json:"fee_a_usd"`
	FeeBUSD      float64 `json:"fee_b_usd"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	FilledBaseA  float64 `json:"filled_base_a"`
	FilledBaseB  float64 `json:"filled_base_b"`
}

// simLeg son las entradas por pata del simulador.
type simLeg struct {
	mid    float64
	levels domain.BookLevels
	taker  float64 // fracción; 0 si el venue no lo expone
}

// avgExecPrice barre los niveles en el orden dado consumiendo hasta baseQty
// y devuelve el precio medio de ejecución y la cantidad llenada.
func avgExecPrice(levels []domain.Level, baseQty float64) (avg, filled float64) {
	remaining := baseQty
	quote := 0.0
	for _, lv := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lv.Qty())
		quote += take * lv.Price()
		remaining -= take
		filled += take
	}
	if filled > 0 {
		avg = quote / filled
	}
	return avg, filled
}

// simulate calcula el coste de ejecutar el patrón con notionalUSD por pata.
// enter_short_A_long_B vende A (bids) y compra B (asks); el patrón inverso
// al revés. Cualquier otro patrón es error del caller.
func simulate(pattern string, notionalUSD float64, a, b simLeg) (SimResult, error) {
	var levelsA, levelsB []domain.Level
	switch pattern {
	case domain.ActionEnterShortALongB:
		levelsA, levelsB = a.levels.Bids, b.levels.Asks
	case domain.ActionEnterLongAShortB:
		levelsA, levelsB = a.levels.Asks, b.levels.Bids
	default:
		return SimResult{}, fmt.Errorf("panel.simulate: invalid pattern %q", pattern)
	}

	avgA, filledA := avgExecPrice(levelsA, notionalUSD/a.mid)
	avgB, filledB := avgExecPrice(levelsB, notionalUSD/b.mid)

	slipAPct, slipBPct := 0.0, 0.0
	if avgA > 0 {
		slipAPct = math.Abs(avgA-a.mid) / a.mid
	}
	if avgB > 0 {
		slipBPct = math.Abs(avgB-b.mid) / b.mid
	}

	r := SimResult{
		MidA:        a.mid,
		MidB:        b.mid,
		AvgA:        avgA,
		AvgB:        avgB,
		SlipAPct:    slipAPct,
		SlipBPct:    slipBPct,
		SlipAUSD:    slipAPct * notionalUSD,
		SlipBUSD:    slipBPct * notionalUSD,
		FeeAUSD:     a.taker * notionalUSD,
		FeeBUSD:     b.taker * notionalUSD,
		FilledBaseA: filledA,
		FilledBaseB: filledB,
	}
	r.TotalCostUSD = r.SlipAUSD + r.SlipBUSD + r.FeeAUSD + r.FeeBUSD
	return r, nil
}
