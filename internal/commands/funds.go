package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"labfunds/internal/core"
	"labfunds/internal/funds"
	"labfunds/internal/period"
	"labfunds/internal/services"
)

func newPeriodCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "period <project-id>",
		Short: "Show the current period of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, app *App) error {
				view, err := app.Funds.GetProject(ctx, id)
				if err != nil {
					return err
				}
				printView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func newCarryCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "carry <project-id>",
		Short: "Carry the current period's leftover into the next period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, app *App) error {
				view, err := app.Funds.CarryForward(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Carried forward.")
				printView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func newOverrideCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Pin or unpin a project's current period",
	}

	setCmd := &cobra.Command{
		Use:   "set <project-id> <index>",
		Short: "Pin the current period to index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return core.Invalid(fmt.Errorf("invalid period index %q", args[1]))
			}
			return withApp(cmd, open, func(ctx context.Context, app *App) error {
				view, err := app.Funds.SetOverride(ctx, id, idx)
				if err != nil {
					return err
				}
				printView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <project-id>",
		Short: "Return to the calendar-derived period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, app *App) error {
				view, err := app.Funds.ClearOverride(ctx, id)
				if err != nil {
					return err
				}
				printView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}

	cmd.AddCommand(setCmd, clearCmd)
	return cmd
}

func newBalanceCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [project-id]",
		Short: "Print remaining balances per head",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, app *App) error {
				if len(args) == 1 {
					id, err := parseProjectID(args[0])
					if err != nil {
						return err
					}
					b, err := app.Funds.ProjectBalance(ctx, id)
					if err != nil {
						return err
					}
					return printBalances(cmd.OutOrStdout(), []funds.ProjectBalance{*b})
				}
				all, err := app.Funds.Balances(ctx)
				if err != nil {
					return err
				}
				return printBalances(cmd.OutOrStdout(), all)
			})
		},
	}
}

func printView(w io.Writer, v services.ProjectView) {
	pinned := "no"
	if v.Override != nil {
		pinned = "yes"
	}
	fmt.Fprintf(w, "%s (%s)\n", v.Name, v.ID)
	fmt.Fprintf(w, "  type:     %s\n", v.Type)
	fmt.Fprintf(w, "  period:   %d of %d (%s)\n", v.CurrentIndex, v.PeriodCount, v.Period)
	if start, end, ok := period.Bounds(v.Project, v.CurrentIndex); ok {
		fmt.Fprintf(w, "  dates:    %s to %s\n", start, end)
	}
	fmt.Fprintf(w, "  override: %s\n", pinned)
}

func printBalances(w io.Writer, all []funds.ProjectBalance) error {
	if len(all) == 0 {
		fmt.Fprintln(w, "No active projects.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tPERIOD\tHEAD\tALLOCATION\tCARRY IN\tSPENT\tREMAINING")
	for _, b := range all {
		for _, h := range b.Heads {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				b.Name, b.Period, h.Head,
				core.FormatAmount(h.Allocation),
				core.FormatAmount(h.CarryIn),
				core.FormatAmount(h.Spent),
				core.FormatAmount(h.Remaining))
		}
	}
	return tw.Flush()
}
