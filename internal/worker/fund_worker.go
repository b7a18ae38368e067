// Package worker keeps the exported balance sheet in step with fund events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"labfunds/internal/amqp"
	"labfunds/internal/core"
	"labfunds/internal/funds"
	"labfunds/internal/log"
	"labfunds/internal/sheets"
)

// BalanceSource computes balances. *services.FundService implements it.
type BalanceSource interface {
	ProjectBalance(ctx context.Context, id uuid.UUID) (*funds.ProjectBalance, error)
	Balances(ctx context.Context) ([]funds.ProjectBalance, error)
}

type FundWorker struct {
	balances BalanceSource
	exporter sheets.BalanceExporter
	logger   *log.Logger
}

func NewFundWorker(balances BalanceSource, exporter sheets.BalanceExporter, logger *log.Logger) *FundWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &FundWorker{
		balances: balances,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleFundEvent re-exports the balance of the project named by msg.
// Deleted or expired projects are acknowledged without export; the next
// full resync drops them from the sheet.
func (w *FundWorker) HandleFundEvent(ctx context.Context, msg *amqp.FundEventMessage) error {
	w.logger.InfoContext(ctx, "Processing fund event",
		log.FieldEventKind, msg.Kind,
		log.FieldProjectID, msg.ProjectID,
		log.FieldPeriod, msg.PeriodIndex)

	b, err := w.balances.ProjectBalance(ctx, msg.ProjectID)
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, funds.ErrTimelineOver):
		w.logger.InfoContext(ctx, "Skipping export for inactive project",
			log.FieldProjectID, msg.ProjectID,
			log.FieldError, err)
		return nil
	case err != nil:
		return fmt.Errorf("compute balance: %w", err)
	}
	if err := w.exporter.ExportProject(ctx, *b); err != nil {
		return fmt.Errorf("export balance: %w", err)
	}
	return nil
}

// Resync rewrites the whole snapshot from current balances.
func (w *FundWorker) Resync(ctx context.Context) error {
	all, err := w.balances.Balances(ctx)
	if err != nil {
		return fmt.Errorf("compute balances: %w", err)
	}
	if err := w.exporter.ExportAll(ctx, all); err != nil {
		return fmt.Errorf("export balances: %w", err)
	}
	w.logger.InfoContext(ctx, "Balance snapshot exported", "projects", len(all))
	return nil
}

// Run resyncs once and then every interval until ctx ends. Failed resyncs
// are logged and retried on the next tick.
func (w *FundWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.Resync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup resync failed", log.FieldError, err)
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Resync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic resync failed", log.FieldError, err)
			}
		}
	}
}
