package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/server"
	"github.com/dmitrijs2005/howyoubeen/internal/server/config"
	"github.com/dmitrijs2005/howyoubeen/internal/server/newsletter"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

const dateLayout = "2006-01-02"

func newsletterCmd(flags *config.Flags) *cobra.Command {
	var (
		configPath string
		name       string
		username   string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "newsletter",
		Short: "Render a newsletter for a user or for the holder of a share token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (username == "") == (token == "") {
				return errors.New("exactly one of --user or --token is required")
			}
			nl, err := loadNewsletter(configPath, name)
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				var res *newsletter.Result
				if token != "" {
					res, err = app.SharedNewsletter(ctx, token, nl, timeNow())
				} else {
					res, err = ownerNewsletter(ctx, app, username, nl)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Content)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "newsletters", "n", "", "YAML file with newsletter configurations")
	cmd.Flags().StringVar(&name, "name", "", "newsletter name in the YAML file (default: first)")
	cmd.Flags().StringVarP(&username, "user", "u", "", "render as the owner sees it")
	cmd.Flags().StringVarP(&token, "token", "t", "", "render for the holder of a share token")
	return cmd
}

func ownerNewsletter(ctx context.Context, app *server.App, username string, nl newsletter.Config) (*newsletter.Result, error) {
	u, err := app.UserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	res := app.Newsletters.Generate(ctx, u.ID, nl, timeNow())
	if !res.Success {
		return nil, errors.New(res.Error)
	}
	return res, nil
}

// loadNewsletter picks a configuration by name from path, or returns the
// default one when no path is given.
func loadNewsletter(path, name string) (newsletter.Config, error) {
	if path == "" {
		return newsletter.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return newsletter.Config{}, err
	}
	defer f.Close()

	cfgs, err := newsletter.LoadConfigs(f)
	if err != nil {
		return newsletter.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(cfgs) == 0 {
		return newsletter.Config{}, fmt.Errorf("%s: no newsletters configured", path)
	}
	if name == "" {
		return cfgs[0], nil
	}
	for _, c := range cfgs {
		if c.Name == name {
			return c, nil
		}
	}
	return newsletter.Config{}, fmt.Errorf("%s: newsletter %q not found", path, name)
}

func shareCmd(flags *config.Flags) *cobra.Command {
	var username, tier string

	cmd := &cobra.Command{
		Use:   "share",
		Short: "Issue a share token for a visibility tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := visibility.ParseTier(tier)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				tok, err := app.ShareToken(ctx, username, t)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	cmd.Flags().StringVar(&tier, "tier", string(visibility.GoodFriends), "tier the token grants")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
