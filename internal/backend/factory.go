package backend

import (
	"context"
	"errors"
	"fmt"

	"labfunds/internal/amqp"
	"labfunds/internal/config"
	"labfunds/internal/log"
	"labfunds/internal/services"
	"labfunds/internal/storage"
	"labfunds/internal/storage/memory"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedFile:     appConfig.SeedFile,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// dialEvents is swapped in tests.
	dialEvents func(url, exchange, queue string) (*amqp.Client, error)
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger:     logger.WithComponent(log.ComponentBackend),
		dialEvents: amqp.NewClient,
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	var (
		store services.Store
		err   error
	)
	switch cfg.Type {
	case SQLiteBackend:
		store, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}

	if cfg.SeedFile != "" {
		if err := memory.LoadSeedFile(ctx, store, cfg.SeedFile); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed %s: %w", cfg.SeedFile, err)
		}
		f.logger.InfoContext(ctx, "Applied seed file", "path", cfg.SeedFile)
	}

	res := &BackendResult{Store: store}
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = f.dialEvents(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without fund events", log.FieldError, err)
		} else {
			res.Events = events
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		if events != nil {
			errs = append(errs, events.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return res, nil
}

// Services builds the fund and expense services over the result, adding
// event publishing when it is enabled.
func (r *BackendResult) Services(opts ...services.Option) (*services.FundService, *services.ExpenseService) {
	if r.Events != nil {
		opts = append(opts, services.WithEvents(r.Events))
	}
	fundService := services.NewFundService(r.Store, opts...)
	return fundService, services.NewExpenseService(r.Store, fundService)
}
