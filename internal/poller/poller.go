package poller

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/alejandrodnm/spreadwatch/internal/ports"
	"github.com/alejandrodnm/spreadwatch/internal/signal"
)

// Textos del advisory de funding. Son parte del payload, no logging.
const (
	adviceAvoidable = "convergence expected before next funding; funding avoidable"
	adviceSpans     = "position likely to span next funding; evaluate net funding"
)

// Config controla el comportamiento de un poller de par.
type Config struct {
	Lookback    int           // ventana del z-score
	EMAWindow   int           // ventana de la EMA
	DepthLevels int           // niveles top-N para el resumen de libro
	EnterZ      float64       // umbral de entrada
	ExitZ       float64       // umbral de salida
	PollEvery   time.Duration // periodo de tick
	StaleMS     int64         // edad máxima de una pata (ms)
	SkewMS      int64         // desfase máximo entre patas (ms)
	NotionalUSD float64       // nominal para expresar el funding en USD
}

// Poller observa un par: cada tick lee mid-prices de ambas patas en paralelo,
// actualiza las señales, enriquece con libro/stats/fees y emite el sample a
// storage y/o al publisher. Nunca termina por su cuenta: cualquier fallo de
// tick se loguea y se sigue tras el sleep normal.
type Poller struct {
	pair      domain.Pair
	venueA    ports.Venue
	venueB    ports.Venue
	store     ports.SampleStore // opcional
	publisher ports.Publisher   // opcional; activa funding+advisory
	notifier  ports.Notifier    // opcional
	zscore    *signal.RollingZScore
	ema       *signal.EMA
	cfg       Config
}

// New construye el poller. Falla si alguna pata refiere a un venue sin
// adapter: error de configuración, fatal para este par.
func New(pair domain.Pair, venues map[string]ports.Venue, store ports.SampleStore, publisher ports.Publisher, notifier ports.Notifier, cfg Config) (*Poller, error) {
	venueA, ok := venues[pair.A.Venue]
	if !ok {
		return nil, fmt.Errorf("poller.New %s: no adapter for venue %q", pair.Name, pair.A.Venue)
	}
	venueB, ok := venues[pair.B.Venue]
	if !ok {
		return nil, fmt.Errorf("poller.New %s: no adapter for venue %q", pair.Name, pair.B.Venue)
	}

	return &Poller{
		pair:      pair,
		venueA:    venueA,
		venueB:    venueB,
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		zscore:    signal.NewRollingZScore(cfg.Lookback),
		ema:       signal.NewEMA(cfg.EMAWindow),
		cfg:       cfg,
	}, nil
}

// Run ejecuta el loop de ticks hasta que el contexto se cancele.
// El sleep es delay absoluto, sin compensar drift: los consumidores no
// deben depender de una cadencia exacta.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("poller starting",
		"pair", p.pair.Name,
		"a", p.pair.A.Venue,
		"b", p.pair.B.Venue,
		"poll", p.cfg.PollEvery,
	)

	for {
		if err := p.tick(ctx); err != nil {
			slog.Error("tick failed", "pair", p.pair.Name, "err", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("poller stopped", "pair", p.pair.Name)
			return
		case <-time.After(p.cfg.PollEvery):
		}
	}
}

// RunOnce ejecuta exactamente un tick. Lo usa el modo -once del monitor.
func (p *Poller) RunOnce(ctx context.Context) error {
	return p.tick(ctx)
}

// legFetch es el resultado de leer el mid-price de una pata con timing.
type legFetch struct {
	price float64
	tsMS  int64 // momento de completar la lectura
	durMS int64
	err   error
}

func timedMid(ctx context.Context, v ports.Venue, leg domain.Market) legFetch {
	t0 := domain.NowMS()
	price, err := v.MidPrice(ctx, leg)
	t1 := domain.NowMS()
	return legFetch{price: price, tsMS: t1, durMS: t1 - t0, err: err}
}

// tick ejecuta un ciclo completo: fetch → señal → enrich → emit.
func (p *Poller) tick(ctx context.Context) error {
	chA := make(chan legFetch, 1)
	chB := make(chan legFetch, 1)
	go func() { chA <- timedMid(ctx, p.venueA, p.pair.A) }()
	go func() { chB <- timedMid(ctx, p.venueB, p.pair.B) }()
	a, b := <-chA, <-chB

	if a.err != nil {
		return fmt.Errorf("poller.tick: leg A mid: %w", a.err)
	}
	if b.err != nil {
		return fmt.Errorf("poller.tick: leg B mid: %w", b.err)
	}

	spread := a.price - b.price
	z, mean, std := p.zscore.Update(spread)
	ema := p.ema.Update(spread)

	centerDev := 0.0
	if std > 1e-12 {
		centerDev = (spread - ema) / std
	}

	ts := max(a.tsMS, b.tsMS)
	ageA := ts - a.tsMS
	ageB := ts - b.tsMS
	skew := a.tsMS - b.tsMS
	if skew < 0 {
		skew = -skew
	}
	latency := max(a.durMS, b.durMS)

	action := decideAction(z, p.cfg.EnterZ, p.cfg.ExitZ)

	stale := 0
	if ageA > p.cfg.StaleMS || ageB > p.cfg.StaleMS || skew > p.cfg.SkewMS {
		stale = 1
		action = domain.ActionHold
	}

	s := domain.Sample{
		Pair:      p.pair.Name,
		TsMS:      ts,
		PriceA:    a.price,
		PriceB:    b.price,
		Spread:    spread,
		Z:         z,
		Mean:      mean,
		Std:       std,
		EMA:       domain.Float64(ema),
		CenterDev: domain.Float64(centerDev),
		Action:    action,
		AgeAMS:    domain.Float64(float64(ageA)),
		AgeBMS:    domain.Float64(float64(ageB)),
		SkewMS:    domain.Float64(float64(skew)),
		LatencyMS: domain.Float64(float64(latency)),
		Stale:     domain.Int(stale),
	}

	p.enrich(ctx, &s)

	// Funding y advisory solo cuando hay panel configurado: es el único
	// consumidor y no merece el round-trip extra en modo standalone.
	if p.publisher != nil {
		p.funding(ctx, &s, z)
	}

	if p.notifier != nil {
		p.notifier.Notify(s)
	}

	if p.store != nil {
		if err := p.store.Insert(ctx, s); err != nil {
			slog.Warn("storage error", "pair", p.pair.Name, "err", err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, s); err != nil {
			slog.Warn("publish error", "pair", p.pair.Name, "err", err)
		}
	}
	return nil
}

func decideAction(z, enterZ, exitZ float64) string {
	switch {
	case z >= enterZ:
		return domain.ActionEnterShortALongB
	case z <= -enterZ:
		return domain.ActionEnterLongAShortB
	case math.Abs(z) <= exitZ:
		return domain.ActionExit
	default:
		return domain.ActionHold
	}
}

// legEnrichment es lo que se intenta leer de cada pata tras el mid-price.
type legEnrichment struct {
	book  *domain.BookSummary
	vol   *float64
	maker *float64
	taker *float64
}

// enrichLeg lee resumen de libro, stats 24h y fees de una pata. Cada fallo
// se aísla: deja el campo a nil y el tick sigue.
func (p *Poller) enrichLeg(ctx context.Context, v ports.Venue, leg domain.Market) legEnrichment {
	var e legEnrichment

	if book, err := v.OrderBookSummary(ctx, leg, p.cfg.DepthLevels); err != nil {
		slog.Debug("book summary failed", "pair", p.pair.Name, "venue", v.Name(), "err", err)
	} else {
		e.book = &book
	}

	if stats, err := v.Stats24h(ctx, leg); err != nil {
		slog.Debug("24h stats failed", "pair", p.pair.Name, "venue", v.Name(), "err", err)
	} else {
		e.vol = stats.QuoteVolume
	}

	if fees, err := v.Fees(ctx, leg); err != nil {
		slog.Debug("fees failed", "pair", p.pair.Name, "venue", v.Name(), "err", err)
	} else {
		e.maker, e.taker = fees.Maker, fees.Taker
	}
	return e
}

func (p *Poller) enrich(ctx context.Context, s *domain.Sample) {
	chA := make(chan legEnrichment, 1)
	chB := make(chan legEnrichment, 1)
	go func() { chA <- p.enrichLeg(ctx, p.venueA, p.pair.A) }()
	go func() { chB <- p.enrichLeg(ctx, p.venueB, p.pair.B) }()
	ea, eb := <-chA, <-chB

	if ea.book != nil {
		s.BestBidA, s.BestAskA = ea.book.BestBid, ea.book.BestAsk
		s.OBSpreadA, s.OBSpreadPctA = ea.book.SpreadAbs, ea.book.SpreadPct
		s.DepthQtyA = domain.Float64(ea.book.DepthQty)
		s.DepthNotionalA = domain.Float64(ea.book.DepthNotional)
	}
	if eb.book != nil {
		s.BestBidB, s.BestAskB = eb.book.BestBid, eb.book.BestAsk
		s.OBSpreadB, s.OBSpreadPctB = eb.book.SpreadAbs, eb.book.SpreadPct
		s.DepthQtyB = domain.Float64(eb.book.DepthQty)
		s.DepthNotionalB = domain.Float64(eb.book.DepthNotional)
	}
	s.VolA, s.VolB = ea.vol, eb.vol
	s.MakerFeeA, s.TakerFeeA = ea.maker, ea.taker
	s.MakerFeeB, s.TakerFeeB = eb.maker, eb.taker
}

// funding lee el funding de ambas patas, estima la reversión AR(1) y, si la
// acción es de entrada, calcula el neto de funding y el advisory.
func (p *Poller) funding(ctx context.Context, s *domain.Sample, z float64) {
	var nextA, nextB *float64
	if fi, err := p.venueA.FundingInfo(ctx, p.pair.A); err != nil {
		slog.Debug("funding A failed", "pair", p.pair.Name, "err", err)
	} else {
		s.FrA, nextA = fi.Rate, fi.NextTimeMS
	}
	if fi, err := p.venueB.FundingInfo(ctx, p.pair.B); err != nil {
		slog.Debug("funding B failed", "pair", p.pair.Name, "err", err)
	} else {
		s.FrB, nextB = fi.Rate, fi.NextTimeMS
	}

	// countdown = min(próximo pago entre patas) - ts.
	switch {
	case nextA != nil && nextB != nil:
		s.FrCountdownMS = domain.Float64(math.Min(*nextA, *nextB) - float64(s.TsMS))
	case nextA != nil:
		s.FrCountdownMS = domain.Float64(*nextA - float64(s.TsMS))
	case nextB != nil:
		s.FrCountdownMS = domain.Float64(*nextB - float64(s.TsMS))
	}

	pollMS := int(p.cfg.PollEvery / time.Millisecond)
	s.HalfLifeS, s.TExitS = signal.EstimateReversion(p.zscore.Window(), z, p.cfg.ExitZ, pollMS)

	if s.FrCountdownMS == nil || s.TExitS == nil {
		return
	}

	// net_rate = fr_short - fr_long según la dirección de entrada. Ojo: los
	// rates van crudos, sin normalizar el convenio de signo de cada venue.
	var netRate *float64
	if s.FrA != nil && s.FrB != nil {
		switch s.Action {
		case domain.ActionEnterShortALongB:
			netRate = domain.Float64(*s.FrA - *s.FrB)
		case domain.ActionEnterLongAShortB:
			netRate = domain.Float64(*s.FrB - *s.FrA)
		}
	}
	if netRate == nil {
		return
	}

	timeToFundingS := math.Max(0, *s.FrCountdownMS/1000)
	if *s.TExitS < timeToFundingS {
		s.Advice = domain.String(adviceAvoidable)
	} else {
		s.Advice = domain.String(adviceSpans)
	}

	s.NetFundingCycleUSD = domain.Float64(p.cfg.NotionalUSD * *netRate)
	if *s.TExitS >= timeToFundingS {
		s.ExpectFundingNextUSD = domain.Float64(*s.NetFundingCycleUSD)
	} else {
		s.ExpectFundingNextUSD = domain.Float64(0)
	}
}
