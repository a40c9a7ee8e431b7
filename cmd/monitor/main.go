package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alejandrodnm/spreadwatch/config"
	"github.com/alejandrodnm/spreadwatch/internal/adapters/ingest"
	"github.com/alejandrodnm/spreadwatch/internal/adapters/notify"
	"github.com/alejandrodnm/spreadwatch/internal/adapters/storage"
	"github.com/alejandrodnm/spreadwatch/internal/adapters/venues"
	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/alejandrodnm/spreadwatch/internal/poller"
	"github.com/alejandrodnm/spreadwatch/internal/ports"
	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one tick per pair and exit")
	latest := flag.Bool("latest", false, "print the latest sample per pair and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug and print per-tick detail")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLite(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *latest {
		samples, err := store.LatestAll(ctx)
		if err != nil {
			slog.Error("failed to read latest samples", "err", err)
			os.Exit(1)
		}
		notifier.PrintLatest(samples)
		return
	}

	slog.Info("spreadwatch monitor starting",
		"config", *configPath,
		"pairs", len(cfg.Pairs),
		"poll", cfg.PollEvery(),
		"once", *once,
	)

	limiter := ratelimit.New(nil)
	if cfg.Ingest.AdminURL != "" {
		if rl, err := ingest.FetchAdminConfig(ctx, cfg.Ingest.AdminURL); err != nil {
			slog.Warn("admin config fetch failed, using defaults", "err", err)
		} else if rl != nil {
			limiter.Update(rl)
			slog.Info("rate limits loaded from panel", "venues", len(rl))
		}
	}

	aster := venues.NewAster(cfg.Venues.AsterHost, limiter, domain.FeeSchedule{
		Maker: cfg.Fees.Aster.Maker,
		Taker: cfg.Fees.Aster.Taker,
	}, cfg.Funding.CycleHours[domain.VenueAster])
	lighter := venues.NewLighter(cfg.Venues.LighterHost, limiter, cfg.Funding.CycleHours[domain.VenueLighter])
	defer aster.Close()
	defer lighter.Close()

	adapters := map[string]ports.Venue{
		domain.VenueAster:   aster,
		domain.VenueLighter: lighter,
	}

	pairs := resolveMarketIDs(ctx, cfg.Pairs, lighter)

	var publisher ports.Publisher
	if cfg.Ingest.URL != "" {
		publisher = ingest.New(cfg.Ingest.URL)
		slog.Info("publishing samples to panel", "url", cfg.Ingest.URL)
	}

	pollCfg := poller.Config{
		Lookback:    cfg.Signal.Lookback,
		EMAWindow:   cfg.Signal.EMAWindow,
		DepthLevels: cfg.Signal.DepthLevels,
		EnterZ:      cfg.Signal.EnterZ,
		ExitZ:       cfg.Signal.ExitZ,
		PollEvery:   cfg.PollEvery(),
		StaleMS:     cfg.Signal.StaleMSThreshold,
		SkewMS:      cfg.Signal.SkewMSThreshold,
		NotionalUSD: cfg.Funding.NotionalUSD,
	}

	var pollers []*poller.Poller
	for _, pair := range pairs {
		p, err := poller.New(pair, adapters, store, publisher, notifier, pollCfg)
		if err != nil {
			slog.Error("skipping pair", "pair", pair.Name, "err", err)
			continue
		}
		pollers = append(pollers, p)
	}
	if len(pollers) == 0 {
		slog.Error("no pairs left to monitor")
		os.Exit(1)
	}

	if *once {
		for _, p := range pollers {
			if err := p.RunOnce(ctx); err != nil {
				slog.Error("tick failed", "err", err)
			}
		}
		return
	}

	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func(p *poller.Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}
	wg.Wait()

	slog.Info("spreadwatch monitor stopped cleanly")
}

// resolveMarketIDs completa los market_id de lighter que la config dejó sin
// fijar. Una pata sin resolver deja el par fuera: error de configuración,
// fatal para ese par y solo para ese par.
func resolveMarketIDs(ctx context.Context, pairs []domain.Pair, lighter *venues.Lighter) []domain.Pair {
	needsMap := false
	for _, p := range pairs {
		if (p.A.Venue == domain.VenueLighter && p.A.MarketID == nil) ||
			(p.B.Venue == domain.VenueLighter && p.B.MarketID == nil) {
			needsMap = true
			break
		}
	}
	if !needsMap {
		return pairs
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	marketMap, err := lighter.FetchMarketMap(fetchCtx)
	if err != nil {
		slog.Warn("lighter market map fetch failed", "err", err)
		marketMap = map[string]int{}
	}

	resolve := func(leg domain.Market) (domain.Market, bool) {
		if leg.Venue != domain.VenueLighter || leg.MarketID != nil {
			return leg, true
		}
		id, ok := marketMap[leg.Symbol]
		if !ok {
			return leg, false
		}
		leg.MarketID = &id
		return leg, true
	}

	var out []domain.Pair
	for _, p := range pairs {
		a, okA := resolve(p.A)
		b, okB := resolve(p.B)
		if !okA || !okB {
			slog.Error("lighter market_id not resolved, skipping pair", "pair", p.Name)
			continue
		}
		p.A, p.B = a, b
		out = append(out, p)
	}
	return out
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
