package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/server"
	"github.com/dmitrijs2005/howyoubeen/internal/server/config"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/spf13/cobra"
)

func timelineCmd(flags *config.Flags) *cobra.Command {
	var (
		username string
		from, to string
		tiers    []string
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "List life events of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dateRange(from, to, timeNow())
			if err != nil {
				return err
			}
			viewer, err := parseViewer(tiers)
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				events, err := app.Timeline(ctx, username, start, end, viewer)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintln(out, "No life events found in this time period.")
				}
				for _, e := range events {
					fmt.Fprintf(out, "%s  [%s]  %s\n", e.StartDate.Format(dateLayout), e.Visibility.Key(), e.Summary)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (default: 30 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default: today)")
	cmd.Flags().StringSliceVar(&tiers, "tier", nil, "view as a holder of these tiers (default: everything)")
	_ = cmd.MarkFlagRequired("user")

	cmd.AddCommand(addEventCmd(flags))
	cmd.AddCommand(addFactCmd(flags))
	cmd.AddCommand(factsCmd(flags))
	return cmd
}

func addEventCmd(flags *config.Flags) *cobra.Command {
	var (
		username, summary string
		date, endDate     string
		vis               string
		also              []string
	)

	cmd := &cobra.Command{
		Use:   "add-event",
		Short: "Record a life event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(vis, also)
			if err != nil {
				return err
			}
			e := &models.LifeEvent{Summary: summary, Visibility: cat, StartDate: timeNow()}
			if date != "" {
				if e.StartDate, err = time.Parse(dateLayout, date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			if endDate != "" {
				end, err := time.Parse(dateLayout, endDate)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				e.EndDate = &end
			}

			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				if err := app.AddLifeEvent(ctx, username, e); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added event %s [%s]\n", e.ID, e.Visibility.Key())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	cmd.Flags().StringVar(&summary, "summary", "", "what happened")
	cmd.Flags().StringVar(&date, "date", "", "day it started, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&endDate, "end", "", "day it ended, YYYY-MM-DD")
	cmd.Flags().StringVar(&vis, "visibility", string(visibility.GoodFriends), "tier, or custom:NAME")
	cmd.Flags().StringSliceVar(&also, "also-visible", nil, "extra categories that may see it")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func addFactCmd(flags *config.Flags) *cobra.Command {
	var (
		username, summary string
		category, vis     string
		also              []string
	)

	cmd := &cobra.Command{
		Use:   "add-fact",
		Short: "Record a fact about a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(vis, also)
			if err != nil {
				return err
			}
			f := &models.LifeFact{Summary: summary, Category: category, Visibility: cat, Date: timeNow()}

			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				if err := app.AddLifeFact(ctx, username, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added fact %s [%s]\n", f.ID, f.Visibility.Key())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	cmd.Flags().StringVar(&summary, "summary", "", "the fact")
	cmd.Flags().StringVar(&category, "category", "", "grouping such as career or hobbies")
	cmd.Flags().StringVar(&vis, "visibility", string(visibility.GoodFriends), "tier, or custom:NAME")
	cmd.Flags().StringSliceVar(&also, "also-visible", nil, "extra categories that may see it")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func factsCmd(flags *config.Flags) *cobra.Command {
	var (
		username, category string
		tiers              []string
	)

	cmd := &cobra.Command{
		Use:   "facts",
		Short: "List facts about a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := parseViewer(tiers)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, app *server.App) error {
				facts, err := app.Facts(ctx, username, category, viewer)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(facts) == 0 {
					fmt.Fprintln(out, "No facts found.")
				}
				for _, f := range facts {
					fmt.Fprintf(out, "%s  [%s]  %s", f.Date.Format(dateLayout), f.Visibility.Key(), f.Summary)
					if f.Category != "" {
						fmt.Fprintf(out, " (%s)", f.Category)
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	cmd.Flags().StringVar(&category, "category", "", "only facts of this category")
	cmd.Flags().StringSliceVar(&tiers, "tier", nil, "view as a holder of these tiers (default: everything)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// dateRange parses inclusive day bounds; end covers the whole last day.
func dateRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != "" {
		d, err := time.Parse(dateLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		end = d.Add(24*time.Hour - time.Nanosecond)
	}
	start := end.AddDate(0, 0, -30)
	if from != "" {
		d, err := time.Parse(dateLayout, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		start = d
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("--from is after --to")
	}
	return start, end, nil
}

func parseViewer(raw []string) ([]visibility.Tier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]visibility.Tier, 0, len(raw))
	for _, r := range raw {
		t, err := visibility.ParseTier(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseCategory builds a category from a tier name or "custom:NAME", plus
// extra categories in the same notation.
func parseCategory(raw string, also []string) (visibility.Category, error) {
	var extra []visibility.Category
	for _, a := range also {
		c, err := parseCategory(a, nil)
		if err != nil {
			return visibility.Category{}, err
		}
		extra = append(extra, c)
	}

	tierName, name, _ := strings.Cut(strings.TrimSpace(raw), ":")
	tier, err := visibility.ParseTier(tierName)
	if err != nil {
		return visibility.Category{}, err
	}
	if tier != visibility.Custom && name != "" {
		return visibility.Category{}, fmt.Errorf("%w: only custom categories take a name", common.ErrInvalidVisibility)
	}
	return visibility.New(tier, strings.TrimSpace(name), extra...)
}
