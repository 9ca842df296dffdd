package extraction

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

const (
	fallbackEventLanguages = 3
	fallbackFactLanguages  = 5
)

// fallbackEvents derives at most two events from numeric signals in raw.
// It never calls the model and depends only on its arguments.
func fallbackEvents(raw collectors.RawData, cat visibility.Category) []models.LifeEvent {
	d, ok := raw.(*collectors.GitHubData)
	if !ok {
		return nil
	}

	var out []models.LifeEvent
	if n := d.Activity.CommitsLast30Days; n > 0 {
		out = append(out, models.LifeEvent{
			Visibility: cat,
			StartDate:  d.CollectedAt.AddDate(0, 0, -15),
			Summary:    fmt.Sprintf("Been actively coding lately with %d commits in the past month. Working on some interesting projects!", n),
		})
	}
	if langs := collectors.TopLanguages(d.Activity.LanguagesUsed, fallbackEventLanguages); len(langs) > 0 {
		out = append(out, models.LifeEvent{
			Visibility: cat,
			StartDate:  d.CollectedAt.AddDate(0, 0, -30),
			Summary:    fmt.Sprintf("Expanding my skills in %s through various coding projects.", strings.Join(langs, ", ")),
		})
	}
	return out
}

// fallbackFacts derives at most three facts from raw.
func fallbackFacts(raw collectors.RawData, cat visibility.Category) []models.LifeFact {
	fact := func(summary, category string) models.LifeFact {
		return models.LifeFact{Visibility: cat, Date: raw.Collected(), Summary: summary, Category: category}
	}

	var out []models.LifeFact
	switch d := raw.(type) {
	case *collectors.GitHubData:
		if langs := collectors.TopLanguages(d.Activity.LanguagesUsed, fallbackFactLanguages); len(langs) > 0 {
			out = append(out, fact("Experienced in programming languages including "+strings.Join(langs, ", "), "skills"))
		}
		if n := d.Summary.TotalRepositories; n > 0 {
			out = append(out, fact(fmt.Sprintf("Maintains %d public repositories on GitHub", n), "professional"))
		}
		if loc := strings.TrimSpace(d.Profile.Location); loc != "" {
			out = append(out, fact("Based in "+loc, "background"))
		}
	case *collectors.WebsiteData:
		if d.Title != "" {
			out = append(out, fact(fmt.Sprintf("Maintains a personal website, %q, at %s", d.Title, d.URL), "professional"))
		}
		if d.Description != "" {
			out = append(out, fact("Describes themselves online as: "+d.Description, "background"))
		}
		if d.TotalPages > 1 {
			out = append(out, fact(fmt.Sprintf("Has published %d pages on their personal website", d.TotalPages), "interests"))
		}
	case *collectors.DocumentData:
		if desc := strings.TrimSpace(d.Description); desc != "" {
			out = append(out, fact(fmt.Sprintf("Shared a document (%s): %s", d.Filename, desc), "background"))
		}
	}
	return out
}
