package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"shopledger/internal/adapters"
	"shopledger/internal/backend"
	"shopledger/internal/cache"
	"shopledger/internal/categories"
	"shopledger/internal/cli"
	"shopledger/internal/core"
	apphttp "shopledger/internal/http"
	"shopledger/internal/inventory"
	"shopledger/internal/ledger"
	applog "shopledger/internal/log"
	"shopledger/internal/metrics"
	"shopledger/internal/reports"
	"shopledger/internal/session"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(slog.Default())
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog(), m).CreateBackend(startCtx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	if cfg.LocalAdmin {
		if err := res.Stores.Flags.SetFlag(startCtx, session.LocalAdminFlag, true); err != nil {
			logger.Error("Failed to persist local admin flag", "error", err)
			os.Exit(1)
		}
	}
	state, err := session.Start(startCtx, res.Stores.Flags)
	if err != nil {
		logger.Error("Failed to read session flags", "error", err)
		os.Exit(1)
	}
	bus := session.NewBroadcaster()
	detach := state.Attach(bus)
	defer detach()

	clk := clock.WallClock
	led := ledger.New(res.Stores.Transactions, state, clk)
	recon := categories.NewReconciler(res.Stores.Categories, 4)
	cats := categories.NewRegistry(res.Stores.Categories, recon)
	// Each session sees its own load of the ledger and categories.
	stopReset := state.OnChange(func(session.Snapshot) {
		led.Reset()
		cats.Invalidate()
	})
	defer stopReset()

	invOpts := []inventory.Option{inventory.WithClock(clk), inventory.WithObserver(m)}
	if res.Publisher != nil {
		invOpts = append(invOpts, inventory.WithOutcomeHook(adapters.StockEvents(res.Publisher)))
	}
	inv := inventory.New(res.Stores.Products, res.Stores.Logs, led, invOpts...)

	summaries := cache.NewLRUCache[core.Summary](128, 10*time.Minute)
	caches := cache.NewManager()
	caches.Register(summaries)
	caches.StartCleanup(5 * time.Minute)
	rep := reports.New(led, summaries, cfg.Location())

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Session:            state,
		Broadcaster:        bus,
		Categories:         cats,
		Ledger:             led,
		Inventory:          inv,
		Reports:            rep,
		Ping:               res.Ping,
		Metrics:            m,
		Gatherer:           reg,
		Caches:             caches,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		Clock:              clk,
		Location:           cfg.Location(),
		BannerTTL:          cfg.BannerTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger.Slog(), 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		recon.Wait()
		if failed := recon.Failed(); len(failed) > 0 {
			logger.Warn("Category order not fully saved", "failed", len(failed))
		}
	})

	go func() {
		logger.Info("Starting shopledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"session", state.Current().Phase.String(),
			"events", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
