// Command howyoubeen onboards users, refreshes their sources and renders
// newsletters from their timelines.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/howyoubeen/internal/server"
	"github.com/dmitrijs2005/howyoubeen/internal/server/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

// newApp is a seam for tests.
var newApp = server.NewApp

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "howyoubeen",
		Short:         "Personal timelines and tiered newsletters for friends",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(migrateCmd(flags))
	root.AddCommand(onboardCmd(flags))
	root.AddCommand(newsletterCmd(flags))
	root.AddCommand(shareCmd(flags))
	root.AddCommand(timelineCmd(flags))
	root.AddCommand(subscriptionsCmd(flags))
	root.AddCommand(askCmd(flags))
	root.AddCommand(sourcesCmd(flags))
	root.AddCommand(sessionsCmd(flags))
	return root
}

// withApp loads the configuration, builds the App and closes it after fn.
func withApp(cmd *cobra.Command, flags *config.Flags, fn func(ctx context.Context, app *server.App) error) error {
	cfg, err := flags.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func migrateCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				return app.Migrate(ctx)
			})
		},
	}
}
