package venues

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/alejandrodnm/spreadwatch/internal/ports"
	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
)

const defaultLighterHost = "https://mainnet.zklighter.elliot.ai"

// Lighter es el adapter read-only del zk-perp Lighter. Trabaja con market_id
// numérico; el mapping symbol → market_id se descubre con FetchMarketMap y
// queda cacheado (también trae los fees por mercado).
type Lighter struct {
	rest       *restClient
	cycleHours int

	mu    sync.Mutex
	books []lighterBook // cache de /api/v1/orderBooks
}

// NewLighter crea el adapter. host vacío usa mainnet.
func NewLighter(host string, limiter *ratelimit.Limiter, cycleHours int) *Lighter {
	if host == "" {
		host = defaultLighterHost
	}
	return &Lighter{
		rest:       newRESTClient(domain.VenueLighter, host, limiter),
		cycleHours: cycleHours,
	}
}

// Name devuelve el tag del venue.
func (l *Lighter) Name() string { return domain.VenueLighter }

// Close cierra la sesión HTTP compartida.
func (l *Lighter) Close() error {
	l.rest.closeIdle()
	return nil
}

type lighterBook struct {
	Symbol   string `json:"symbol"`
	MarketID int    `json:"market_id"`
	MakerFee string `json:"maker_fee"`
	TakerFee string `json:"taker_fee"`
}

// FetchMarketMap descarga symbol → market_id desde /api/v1/orderBooks y
// cachea la respuesta para Fees. Se llama en el arranque para resolver las
// patas de config que no traen market_id.
func (l *Lighter) FetchMarketMap(ctx context.Context) (map[string]int, error) {
	var out struct {
		OrderBooks []lighterBook `json:"order_books"`
	}
	if err := l.rest.get(ctx, "global", "/api/v1/orderBooks", nil, &out); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.books = out.OrderBooks
	l.mu.Unlock()

	mapping := make(map[string]int, len(out.OrderBooks))
	for _, b := range out.OrderBooks {
		mapping[b.Symbol] = b.MarketID
	}
	return mapping, nil
}

// lighterOrder es un nivel del libro tal y como lo devuelve la API.
type lighterOrder struct {
	Price         string `json:"price"`
	RemainingBase string `json:"remaining_base_amount"`
	InitialBase   string `json:"initial_base_amount"`
}

func (o lighterOrder) level() (domain.Level, bool) {
	p := parseF(o.Price)
	q := parseF(o.RemainingBase)
	if q == nil {
		q = parseF(o.InitialBase)
	}
	if p == nil || q == nil {
		return domain.Level{}, false
	}
	return domain.Level{*p, *q}, true
}

type lighterDepth struct {
	Bids []lighterOrder `json:"bids"`
	Asks []lighterOrder `json:"asks"`
}

func (d lighterDepth) levels(n int) domain.BookLevels {
	conv := func(raw []lighterOrder) []domain.Level {
		out := make([]domain.Level, 0, min(n, len(raw)))
		for _, o := range raw[:min(n, len(raw))] {
			if lv, ok := o.level(); ok {
				out = append(out, lv)
			}
		}
		return out
	}
	return domain.BookLevels{Bids: conv(d.Bids), Asks: conv(d.Asks)}
}

func (l *Lighter) fetchDepth(ctx context.Context, leg domain.Market, limit int) (lighterDepth, error) {
	if leg.MarketID == nil {
		return lighterDepth{}, fmt.Errorf("venues.Lighter: market_id not resolved for %q", leg.Symbol)
	}
	var out lighterDepth
	params := url.Values{
		"market_id": {strconv.Itoa(*leg.MarketID)},
		"limit":     {strconv.Itoa(limit)},
	}
	err := l.rest.get(ctx, "global", "/api/v1/orderBookOrders", params, &out)
	return out, err
}

// MidPrice devuelve (best_bid+best_ask)/2 del top of book, o el único lado
// disponible. ErrNoBook si el libro está vacío.
func (l *Lighter) MidPrice(ctx context.Context, leg domain.Market) (float64, error) {
	d, err := l.fetchDepth(ctx, leg, 1)
	if err != nil {
		return 0, err
	}
	lv := d.levels(1)
	switch {
	case len(lv.Bids) > 0 && len(lv.Asks) > 0:
		return (lv.Bids[0].Price() + lv.Asks[0].Price()) / 2, nil
	case len(lv.Bids) > 0:
		return lv.Bids[0].Price(), nil
	case len(lv.Asks) > 0:
		return lv.Asks[0].Price(), nil
	default:
		return 0, ports.ErrNoBook
	}
}

// OrderBookSummary resume los N mejores niveles.
func (l *Lighter) OrderBookSummary(ctx context.Context, leg domain.Market, levels int) (domain.BookSummary, error) {
	d, err := l.fetchDepth(ctx, leg, levels)
	if err != nil {
		return domain.BookSummary{}, err
	}
	return summarize(d.levels(levels))
}

// OrderBookLevels devuelve los N mejores niveles crudos.
func (l *Lighter) OrderBookLevels(ctx context.Context, leg domain.Market, levels int) (domain.BookLevels, error) {
	d, err := l.fetchDepth(ctx, leg, levels)
	if err != nil {
		return domain.BookLevels{}, err
	}
	return d.levels(levels), nil
}

// Stats24h lee el volumen quote diario de /api/v1/orderBookDetails.
func (l *Lighter) Stats24h(ctx context.Context, leg domain.Market) (domain.DayStats, error) {
	if leg.MarketID == nil {
		return domain.DayStats{}, fmt.Errorf("venues.Lighter: market_id not resolved for %q", leg.Symbol)
	}
	var out struct {
		Details []struct {
			DailyQuote string `json:"daily_quote_token_volume"`
		} `json:"order_book_details"`
	}
	params := url.Values{"market_id": {strconv.Itoa(*leg.MarketID)}}
	if err := l.rest.get(ctx, "global", "/api/v1/orderBookDetails", params, &out); err != nil {
		return domain.DayStats{}, err
	}
	if len(out.Details) == 0 {
		return domain.DayStats{}, nil
	}
	return domain.DayStats{QuoteVolume: parseF(out.Details[0].DailyQuote)}, nil
}

// Fees lee maker/taker del cache de orderBooks, refrescándolo si hace falta.
func (l *Lighter) Fees(ctx context.Context, leg domain.Market) (domain.FeeSchedule, error) {
	l.mu.Lock()
	books := l.books
	l.mu.Unlock()

	if books == nil {
		if _, err := l.FetchMarketMap(ctx); err != nil {
			return domain.FeeSchedule{}, err
		}
		l.mu.Lock()
		books = l.books
		l.mu.Unlock()
	}

	for _, b := range books {
		if b.Symbol == leg.Symbol {
			return domain.FeeSchedule{Maker: parseF(b.MakerFee), Taker: parseF(b.TakerFee)}, nil
		}
	}
	return domain.FeeSchedule{}, nil
}

// FundingInfo busca el rate en /api/v1/fundingRates; Lighter no publica el
// próximo pago, así que se aproxima alineado al ciclo configurado.
func (l *Lighter) FundingInfo(ctx context.Context, leg domain.Market) (domain.FundingInfo, error) {
	var out struct {
		FundingRates []struct {
			Exchange string `json:"exchange"`
			Symbol   string `json:"symbol"`
			Rate     string `json:"rate"`
		} `json:"funding_rates"`
	}
	if err := l.rest.get(ctx, "global", "/api/v1/fundingRates", nil, &out); err != nil {
		return domain.FundingInfo{}, err
	}

	info := domain.FundingInfo{
		NextTimeMS: domain.Float64(nextFundingApprox(domain.NowMS(), l.cycleHours)),
	}
	for _, fr := range out.FundingRates {
		if fr.Exchange == domain.VenueLighter && fr.Symbol == leg.Symbol {
			info.Rate = parseF(fr.Rate)
			break
		}
	}
	return info, nil
}
