package main

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/server"
	"github.com/dmitrijs2005/howyoubeen/internal/server/config"
	"github.com/dmitrijs2005/howyoubeen/internal/server/newsletter"
	"github.com/spf13/cobra"
)

func subscriptionsCmd(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Manage newsletter subscriptions and deliveries",
	}
	cmd.AddCommand(subscribeCmd(flags))
	cmd.AddCommand(unsubscribeCmd(flags))
	cmd.AddCommand(listSubscriptionsCmd(flags))
	cmd.AddCommand(sendCmd(flags))
	return cmd
}

func subscribeCmd(flags *config.Flags) *cobra.Command {
	var token, email, name, frequency string

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe an address to a user's newsletter with a share token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newsletter.ParseFrequency(frequency); err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				sub, err := app.Delivery.Subscribe(ctx, token, email, name, frequency)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "subscribed %s to the %s %s newsletter\nunsubscribe code: %s\n",
					sub.SubscriberEmail, sub.Frequency, sub.Tier, sub.Code)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "share token issued by the user")
	cmd.Flags().StringVarP(&email, "email", "e", "", "subscriber address")
	cmd.Flags().StringVar(&name, "name", "", "subscriber name")
	cmd.Flags().StringVarP(&frequency, "frequency", "f", "weekly", "daily, weekly or monthly")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func unsubscribeCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe CODE",
		Short: "Stop deliveries for an unsubscribe code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				sub, err := app.Delivery.Unsubscribe(ctx, args[0], timeNow())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unsubscribed %s\n", sub.SubscriberEmail)
				return nil
			})
		},
	}
}

func listSubscriptionsCmd(flags *config.Flags) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the subscriptions to a user's newsletters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				subs, err := app.Subscriptions(ctx, username)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(subs) == 0 {
					fmt.Fprintln(out, "No subscriptions.")
				}
				for _, s := range subs {
					last := "never"
					if s.LastSent != nil {
						last = s.LastSent.Format(dateLayout)
					}
					fmt.Fprintf(out, "%s  %-8s %-12s %-12s last sent %s\n", s.SubscriberEmail, s.Frequency, s.Tier, s.Status, last)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func sendCmd(flags *config.Flags) *cobra.Command {
	var frequency string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Generate and deliver the newsletters that are due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := newsletter.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				rep, err := app.Delivery.SendDue(ctx, freq, timeNow())
				if rep != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d due, %d sent, %d failed\n", freq, rep.Total, rep.Sent, rep.Failed)
					for _, e := range rep.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&frequency, "frequency", "f", "weekly", "daily, weekly or monthly")
	return cmd
}
