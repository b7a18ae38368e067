// Package commands implements the labfunds-admin command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"labfunds/internal/auth"
	"labfunds/internal/core"
	"labfunds/internal/services"
)

// App is what the commands operate on. Close releases the backend.
type App struct {
	Funds    *services.FundService
	Expenses *services.ExpenseService
	Tokens   *auth.JWTProvider
	Close    func() error
}

// Opener builds the App lazily so --help never touches the backend.
type Opener func(ctx context.Context) (*App, error)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "labfunds-admin",
		Short: "Administer lab project funds",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newPeriodCommand(open),
		newCarryCommand(open),
		newOverrideCommand(open),
		newBalanceCommand(open),
		newTokenCommand(open),
	)
	return rootCmd
}

// withApp opens the App, runs fn and closes it again.
func withApp(cmd *cobra.Command, open Opener, fn func(ctx context.Context, app *App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if app.Close == nil {
			return
		}
		if cerr := app.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing backend: %w", cerr)
		}
	}()
	return fn(ctx, app)
}

func parseProjectID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, core.Invalid(fmt.Errorf("invalid project id %q", arg))
	}
	return id, nil
}
