package main

import (
	"context"
	"fmt"
	"os"

	"labfunds/internal/auth"
	"labfunds/internal/backend"
	"labfunds/internal/cli"
	"labfunds/internal/commands"
	"labfunds/internal/log"
	"labfunds/internal/services"
)

func main() {
	cli.LoadEnvFile()

	root := commands.NewRootCommand(openApp)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*commands.App, error) {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLoggerTo(os.Stderr, cfg, log.ComponentAdmin)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize backend: %w", err)
	}
	fundService, expenseService := res.Services(
		services.WithLogger(logger),
		services.WithBalanceConcurrency(cfg.BalanceConcurrency),
	)
	tokens, err := auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	return &commands.App{
		Funds:    fundService,
		Expenses: expenseService,
		Tokens:   tokens,
		Close:    res.Cleanup,
	}, nil
}
