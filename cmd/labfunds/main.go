package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"labfunds/internal/auth"
	"labfunds/internal/backend"
	"labfunds/internal/cache"
	"labfunds/internal/cli"
	apphttp "labfunds/internal/http"
	"labfunds/internal/log"
	"labfunds/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	fundService, expenseService := res.Services(
		services.WithLogger(logger),
		services.WithTotalsCache(cfg.CacheSize, cfg.CacheTTL),
		services.WithBalanceConcurrency(cfg.BalanceConcurrency),
	)

	provider, err := auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to initialize auth provider", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(fundService, expenseService, apphttp.Options{
		Addr:   ":" + cfg.Port,
		Auth:   provider,
		Ready:  res.Store,
		Logger: logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		return errors.Join(srv.Shutdown(ctx), res.Cleanup())
	})

	caches := cache.NewManager()
	if c := fundService.TotalsCache(); c != nil {
		caches.Register(c)
	}
	caches.Start(ctx, time.Minute)

	logger.Info("Starting labfunds server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", cfg.EventsEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	caches.Wait()
	logger.Info("Server stopped gracefully")
}
