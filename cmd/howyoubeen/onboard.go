package main

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/cli"
	"github.com/dmitrijs2005/howyoubeen/internal/server"
	"github.com/dmitrijs2005/howyoubeen/internal/server/config"
	"github.com/spf13/cobra"
)

func onboardCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Create a profile interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				w := cli.NewWizard(app.Onboarding, cmd.InOrStdin(), cmd.OutOrStdout(), app.Platforms)
				res, err := w.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s with %d events and %d facts.\n", res.UserID, res.Events, res.Facts)
				return nil
			})
		},
	}
}

func sessionsCmd(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage onboarding sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "gc",
		Short: "Delete expired onboarding sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				n, err := app.Onboarding.CleanupExpired(ctx, timeNow())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired sessions.\n", n)
				return nil
			})
		},
	})
	return cmd
}

func sourcesCmd(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage connected sources",
	}

	var username string
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Collect new events from every connected source of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				u, err := app.UserByUsername(ctx, username)
				if err != nil {
					return fmt.Errorf("user %q: %w", username, err)
				}
				rep, err := app.Sources.Refresh(ctx, u.ID, timeNow())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Sources: %d, refreshed: %d, failed: %d\n", rep.Sources, rep.Refreshed, rep.Failed)
				fmt.Fprintf(out, "Events added: %d, skipped: %d\n", rep.EventsAdded, rep.EventsSkipped)
				for _, e := range rep.Errors {
					fmt.Fprintf(out, "  error: %s\n", e)
				}
				return nil
			})
		},
	}
	refresh.Flags().StringVarP(&username, "user", "u", "", "username")
	_ = refresh.MarkFlagRequired("user")

	cmd.AddCommand(refresh)
	return cmd
}
