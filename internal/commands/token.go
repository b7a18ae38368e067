package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"labfunds/internal/auth"
	"labfunds/internal/core"
)

func newTokenCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	var (
		email string
		role  string
		ttl   time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl <= 0 {
				return core.Invalid(errors.New("ttl must be positive"))
			}
			return withApp(cmd, open, func(_ context.Context, app *App) error {
				if app.Tokens == nil {
					return errors.New("token signing is not configured")
				}
				token, err := app.Tokens.Issue(auth.Identity{Email: email, Role: role}, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	issue.Flags().StringVar(&email, "email", "", "identity email (required)")
	_ = issue.MarkFlagRequired("email")
	issue.Flags().StringVar(&role, "role", auth.RoleViewer, "admin, accountant or viewer")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}
