package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/spreadwatch/config"
	"github.com/alejandrodnm/spreadwatch/internal/adapters/storage"
	"github.com/alejandrodnm/spreadwatch/internal/adapters/venues"
	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/alejandrodnm/spreadwatch/internal/panel"
	"github.com/alejandrodnm/spreadwatch/internal/ports"
	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
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
	if *addr != "" {
		cfg.Panel.Addr = *addr
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLite(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Los rate limits viven en la fila de admin config; el POST de
	// /api/admin/config los actualiza en caliente.
	limiter := ratelimit.New(nil)
	if adm, err := store.AdminGet(ctx); err != nil {
		slog.Warn("admin config read failed, using defaults", "err", err)
	} else if adm != nil {
		if raw, ok := adm["ratelimits"]; ok {
			if rl, err := ratelimit.ParseConfig(raw); err != nil {
				slog.Warn("stored rate limits unparseable, using defaults", "err", err)
			} else {
				limiter.Update(rl)
			}
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

	// Prefetch del market map de lighter para los endpoints de depth y
	// simulación. Si falla, esos endpoints devolverán 400 para los símbolos
	// sin resolver; el resto del panel funciona igual.
	marketIDs := map[string]int{}
	func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if m, err := lighter.FetchMarketMap(fetchCtx); err != nil {
			slog.Warn("lighter market map fetch failed", "err", err)
		} else {
			marketIDs = m
		}
	}()

	hub := panel.NewHub()
	srv := panel.NewServer(store, adapters, limiter, hub, panel.Config{
		Addr:      cfg.Panel.Addr,
		Pairs:     cfg.Pairs,
		MarketIDs: marketIDs,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("panel exited with error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}

	slog.Info("spreadwatch panel stopped cleanly")
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
