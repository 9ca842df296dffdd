package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
)

const (
	maxContentRunes = 3000
	maxRepositories = 5
	maxCommitLines  = 3
	maxLanguages    = 8
	maxSitePages    = 5
)

const eventsSystemPrompt = `You extract dated life events from a person's online data.

Rules:
- Only return items with an explicit date in the data.
- If no dated items exist, return an empty array: []
- Never invent a date or an event.
- Write each summary in first person, one or two sentences.

Return ONLY a JSON array:
[{"summary": "what happened", "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD or null"}]`

const factsSystemPrompt = `You summarize timeless facts about a person from their online data.

Rules:
- Return 2 to 4 facts about skills, background and interests.
- Facts are timeless; do not tie them to dates.
- Write in third person, one or two sentences each.
- Only state what the data supports.

Return ONLY a JSON array:
[{"summary": "the fact", "category": "skills|professional|interests|background"}]`

// render turns raw data into the bounded context sent to the model.
func render(raw collectors.RawData) string {
	switch d := raw.(type) {
	case *collectors.GitHubData:
		return renderGitHub(d)
	case *collectors.WebsiteData:
		return renderWebsite(d)
	case *collectors.DocumentData:
		return renderDocument(d)
	default:
		return ""
	}
}

func renderGitHub(d *collectors.GitHubData) string {
	var sb strings.Builder
	p := d.Profile
	fmt.Fprintf(&sb, "GitHub profile: %s (@%s)\n", orDefault(p.Name, p.Login), orDefault(p.Login, d.Username))
	fmt.Fprintf(&sb, "Bio: %s\n", orDefault(p.Bio, "No bio provided"))
	fmt.Fprintf(&sb, "Location: %s\n", orDefault(p.Location, "Not specified"))
	fmt.Fprintf(&sb, "Company: %s\n", orDefault(p.Company, "Not specified"))
	fmt.Fprintf(&sb, "Public repositories: %d, followers: %d\n", p.PublicRepos, p.Followers)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "Account created: %s\n", p.CreatedAt.Format(time.DateOnly))
	}

	type repoLine struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Language    string `json:"language,omitempty"`
		Updated     string `json:"updated"`
	}
	repos := make([]repoLine, 0, maxRepositories)
	for i, r := range d.Repositories {
		if i >= maxRepositories {
			break
		}
		repos = append(repos, repoLine{Name: r.Name, Description: r.Description, Language: r.Language, Updated: r.UpdatedAt.Format(time.DateOnly)})
	}
	b, _ := json.MarshalIndent(repos, "", "  ")
	fmt.Fprintf(&sb, "\nRecently updated repositories:\n%s\n", b)

	fmt.Fprintf(&sb, "\nCommits in the 30 days before %s: %d\n", d.CollectedAt.Format(time.DateOnly), d.Activity.CommitsLast30Days)
	msgs := d.Activity.RecentCommitMessages
	if len(msgs) > maxCommitLines {
		msgs = msgs[:maxCommitLines]
	}
	if len(msgs) > 0 {
		sb.WriteString("Recent commit messages:\n")
		for _, m := range msgs {
			fmt.Fprintf(&sb, "- %s\n", firstLine(m))
		}
	}

	langs := collectors.TopLanguages(d.Activity.LanguagesUsed, maxLanguages)
	if len(langs) > 0 {
		fmt.Fprintf(&sb, "Programming languages: %s\n", strings.Join(langs, ", "))
	}
	fmt.Fprintf(&sb, "Activity level: %s, total stars: %d\n", d.Summary.ActivityLevel, d.Summary.TotalStars)
	return sb.String()
}

func renderWebsite(d *collectors.WebsiteData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Website: %s\n", d.URL)
	if d.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", d.Title)
	}
	if d.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", d.Description)
	}
	if len(d.Pages) > 1 {
		fmt.Fprintf(&sb, "Pages crawled: %d\n", d.TotalPages)
		for _, p := range d.Pages[:min(len(d.Pages), maxSitePages)] {
			fmt.Fprintf(&sb, "- %s %s\n", p.URL, p.Title)
		}
	}
	fmt.Fprintf(&sb, "\nWebsite content:\n%s\n", truncateRunes(websiteText(d), maxContentRunes))
	return sb.String()
}

// websiteText is the start page followed by the other crawled pages; the
// caller truncates it.
func websiteText(d *collectors.WebsiteData) string {
	if len(d.Pages) <= 1 {
		return d.MainContent
	}
	parts := []string{d.MainContent}
	for _, p := range d.Pages[1:] {
		parts = append(parts, fmt.Sprintf("## %s\n%s", orDefault(p.Title, p.URL), p.Content))
	}
	return strings.Join(parts, "\n\n")
}

func renderDocument(d *collectors.DocumentData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document: %s\n", d.Filename)
	if d.Description != "" {
		fmt.Fprintf(&sb, "Description from the owner: %s\n", d.Description)
	}
	fmt.Fprintf(&sb, "\nDocument content:\n%s\n", truncateRunes(d.Text, maxContentRunes))
	return sb.String()
}

func userPrompt(raw collectors.RawData, events bool) string {
	what := "facts"
	if events {
		what = "dated events"
	}
	return fmt.Sprintf("%s\nExtract %s from the %s data above.", render(raw), what, raw.Platform())
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
