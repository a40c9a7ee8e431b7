package domain

// BookSummary es el resumen top-N del order book de una pata.
// Los campos de profundidad suman los N mejores niveles de ambos lados.
type BookSummary struct {
	BestBid       *float64 `json:"best_bid"`
	BestAsk       *float64 `json:"best_ask"`
	SpreadAbs     *float64 `json:"spread_abs"`
	SpreadPct     *float64 `json:"spread_pct"`
	DepthQty      float64  `json:"depth_qty"`
	DepthNotional float64  `json:"depth_notional"`
}

// Level es un nivel de precio del libro: [precio, cantidad base].
type Level [2]float64

// Price devuelve el precio del nivel.
func (l Level) Price() float64 { return l[0] }

// Qty devuelve la cantidad base del nivel.
func (l Level) Qty() float64 { return l[1] }

// BookLevels son los N mejores niveles crudos de ambos lados,
// con el índice 0 como mejor precio (bids descendente, asks ascendente).
type BookLevels struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// DayStats son las estadísticas de 24h que consume el monitor.
type DayStats struct {
	QuoteVolume *float64 `json:"quote_volume"`
}

// FeeSchedule son los fees por lado en fracción (0.0002 = 2 bps).
// Cualquiera de los dos puede faltar si el venue no lo expone.
type FeeSchedule struct {
	Maker *float64 `json:"maker"`
	Taker *float64 `json:"taker"`
}

// FundingInfo es el estado de funding de una pata. NextTimeMS puede ser una
// aproximación del adapter cuando el venue no publica el próximo pago.
type FundingInfo struct {
	Rate       *float64 `json:"rate"`
	NextTimeMS *float64 `json:"next_time_ms"`
}
