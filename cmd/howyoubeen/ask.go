package main

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/howyoubeen/internal/cli"
	"github.com/dmitrijs2005/howyoubeen/internal/server"
	"github.com/dmitrijs2005/howyoubeen/internal/server/chat"
	"github.com/dmitrijs2005/howyoubeen/internal/server/config"
	"github.com/spf13/cobra"
)

func askCmd(flags *config.Flags) *cobra.Command {
	var (
		username, token string
		tiers           []string
		question        string
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Chat with a user's assistant as a friend holding a share token, or as the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (username == "") == (token == "") {
				return errors.New("exactly one of --user or --token is required")
			}
			if token != "" && len(tiers) > 0 {
				return errors.New("--tier comes from the token and cannot be combined with --token")
			}
			viewer, err := parseViewer(tiers)
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				ask := func(ctx context.Context, q string, history []chat.Turn) (*chat.Answer, error) {
					if token != "" {
						return app.Ask(ctx, token, q, history, timeNow())
					}
					return app.AskAs(ctx, username, viewer, q, history, timeNow())
				}
				if question != "" {
					ans, err := ask(ctx, question, nil)
					if err != nil {
						return err
					}
					cli.PrintAnswer(cmd.OutOrStdout(), ans)
					return nil
				}
				return cli.Chat(ctx, ask, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "ask about this user")
	cmd.Flags().StringVarP(&token, "token", "t", "", "ask as the holder of a share token")
	cmd.Flags().StringSliceVar(&tiers, "tier", nil, "with --user, answer as a holder of these tiers (default: everything)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "ask one question and exit")
	return cmd
}

