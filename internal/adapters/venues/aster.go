package venues

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/alejandrodnm/spreadwatch/internal/ports"
	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
)

const defaultAsterHost = "https://fapi.asterdex.com"

// Aster es el adapter read-only del perp DEX Aster, con API estilo Binance
// futures (/fapi/v1/...). Los fees no se exponen por API pública, así que
// vienen de configuración.
type Aster struct {
	rest       *restClient
	fees       domain.FeeSchedule
	cycleHours int
}

// NewAster crea el adapter. host vacío usa el de producción; fees son los
// defaults de config (cualquiera puede ser nil); cycleHours se usa solo si
// el venue no devuelve nextFundingTime.
func NewAster(host string, limiter *ratelimit.Limiter, fees domain.FeeSchedule, cycleHours int) *Aster {
	if host == "" {
		host = defaultAsterHost
	}
	return &Aster{
		rest:       newRESTClient(domain.VenueAster, strings.TrimRight(host, "/"), limiter),
		fees:       fees,
		cycleHours: cycleHours,
	}
}

// Name devuelve el tag del venue.
func (a *Aster) Name() string { return domain.VenueAster }

// Close cierra la sesión HTTP compartida.
func (a *Aster) Close() error {
	a.rest.closeIdle()
	return nil
}

// MidPrice usa el último precio del ticker como proxy de mid; Aster no
// cobra por este endpoint y evita pedir el libro entero cada tick.
func (a *Aster) MidPrice(ctx context.Context, leg domain.Market) (float64, error) {
	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	params := url.Values{"symbol": {leg.Symbol}}
	if err := a.rest.get(ctx, "global", "/fapi/v1/ticker/price", params, &out); err != nil {
		return 0, err
	}
	p := parseF(out.Price)
	if p == nil {
		return 0, ports.ErrNoBook
	}
	return *p, nil
}

// asterDepth es la respuesta de /fapi/v1/depth: niveles como pares de strings.
type asterDepth struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

func (d asterDepth) levels(n int) domain.BookLevels {
	conv := func(raw [][2]string) []domain.Level {
		out := make([]domain.Level, 0, min(n, len(raw)))
		for _, pq := range raw[:min(n, len(raw))] {
			p := parseF(pq[0])
			q := parseF(pq[1])
			if p == nil || q == nil {
				continue
			}
			out = append(out, domain.Level{*p, *q})
		}
		return out
	}
	return domain.BookLevels{Bids: conv(d.Bids), Asks: conv(d.Asks)}
}

// OrderBookSummary resume los N mejores niveles de /fapi/v1/depth.
func (a *Aster) OrderBookSummary(ctx context.Context, leg domain.Market, levels int) (domain.BookSummary, error) {
	var out asterDepth
	params := url.Values{"symbol": {leg.Symbol}, "limit": {strconv.Itoa(levels)}}
	if err := a.rest.get(ctx, "depth", "/fapi/v1/depth", params, &out); err != nil {
		return domain.BookSummary{}, err
	}
	return summarize(out.levels(levels))
}

// OrderBookLevels devuelve los N mejores niveles crudos.
func (a *Aster) OrderBookLevels(ctx context.Context, leg domain.Market, levels int) (domain.BookLevels, error) {
	var out asterDepth
	params := url.Values{"symbol": {leg.Symbol}, "limit": {strconv.Itoa(levels)}}
	if err := a.rest.get(ctx, "depth", "/fapi/v1/depth", params, &out); err != nil {
		return domain.BookLevels{}, err
	}
	return out.levels(levels), nil
}

// Stats24h devuelve el volumen quote del ticker de 24h.
func (a *Aster) Stats24h(ctx context.Context, leg domain.Market) (domain.DayStats, error) {
	var out struct {
		Volume      string `json:"volume"`
		QuoteVolume string `json:"quoteVolume"`
	}
	params := url.Values{"symbol": {leg.Symbol}}
	if err := a.rest.get(ctx, "global", "/fapi/v1/ticker/24hr", params, &out); err != nil {
		return domain.DayStats{}, err
	}
	return domain.DayStats{QuoteVolume: parseF(out.QuoteVolume)}, nil
}

// Fees devuelve los fees configurados; Aster no los publica por REST público.
func (a *Aster) Fees(_ context.Context, _ domain.Market) (domain.FeeSchedule, error) {
	return a.fees, nil
}

// FundingInfo lee /fapi/v1/premiumIndex (estilo Binance: lastFundingRate,
// nextFundingTime). Si falta nextFundingTime, aproxima por ciclo.
func (a *Aster) FundingInfo(ctx context.Context, leg domain.Market) (domain.FundingInfo, error) {
	var out struct {
		LastFundingRate string `json:"lastFundingRate"`
		NextFundingTime int64  `json:"nextFundingTime"`
	}
	params := url.Values{"symbol": {leg.Symbol}}
	if err := a.rest.get(ctx, "global", "/fapi/v1/premiumIndex", params, &out); err != nil {
		return domain.FundingInfo{}, err
	}

	info := domain.FundingInfo{Rate: parseF(out.LastFundingRate)}
	if out.NextFundingTime > 0 {
		info.NextTimeMS = domain.Float64(float64(out.NextFundingTime))
	} else {
		info.NextTimeMS = domain.Float64(nextFundingApprox(domain.NowMS(), a.cycleHours))
	}
	return info, nil
}

// summarize construye el BookSummary a partir de niveles ya recortados a N.
func summarize(lv domain.BookLevels) (domain.BookSummary, error) {
	if len(lv.Bids) == 0 && len(lv.Asks) == 0 {
		return domain.BookSummary{}, ports.ErrNoBook
	}

	s := domain.BookSummary{}
	if len(lv.Bids) > 0 {
		s.BestBid = domain.Float64(lv.Bids[0].Price())
	}
	if len(lv.Asks) > 0 {
		s.BestAsk = domain.Float64(lv.Asks[0].Price())
	}
	if s.BestBid != nil && s.BestAsk != nil {
		mid := (*s.BestBid + *s.BestAsk) / 2
		s.SpreadAbs = domain.Float64(*s.BestAsk - *s.BestBid)
		if mid != 0 {
			s.SpreadPct = domain.Float64(*s.SpreadAbs / mid)
		}
	}
	for _, l := range lv.Bids {
		s.DepthQty += l.Qty()
		s.DepthNotional += l.Price() * l.Qty()
	}
	for _, l := range lv.Asks {
		s.DepthQty += l.Qty()
		s.DepthNotional += l.Price() * l.Qty()
	}
	return s, nil
}
