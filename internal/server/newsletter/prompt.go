package newsletter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

const (
	rangeLayout = "January 02, 2006"
	eventLayout = "2006-01-02"

	defaultInstructions = "Create a friendly, engaging newsletter highlighting key life events."
	noEvents            = "No life events found in this time period."
)

const systemPrompt = `You are an AI assistant that creates personalized newsletters.
You will be given a user's life events and specific instructions for how to format and present them.

Your goal is to create an engaging, personalized newsletter in markdown format that follows the user's instructions.

Key guidelines:
- Use markdown formatting (headers, bold, italic, lists, etc.)
- Be personal and engaging in tone
- Write in the first person; the newsletter is from the user to their friends
- Follow the user's specific instructions carefully
- If no events are provided, write a brief, friendly message acknowledging the quiet period and do not invent any activity
- Keep the newsletter focused and readable
- Include the date range being covered`

func dateRange(start, end time.Time) string {
	return start.Format(rangeLayout) + " to " + end.Format(rangeLayout)
}

func eventLines(events []*models.LifeEvent) string {
	if len(events) == 0 {
		return noEvents
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = fmt.Sprintf("- %s: %s", e.StartDate.Format(eventLayout), e.Summary)
	}
	return strings.Join(lines, "\n")
}

func userPrompt(u *models.User, cfg Config, events []*models.LifeEvent, period string) string {
	name := u.DisplayName()
	if name == "" {
		name = "the user"
	}
	bio := u.Bio
	if bio == "" {
		bio = "No bio available"
	}
	instructions := cfg.Instructions
	if instructions == "" {
		instructions = defaultInstructions
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Please create a newsletter for %s covering the period from %s.\n\n", name, period)
	fmt.Fprintf(&b, "User Instructions: %s\n\n", instructions)
	fmt.Fprintf(&b, "Life Events in this period:\n%s\n\n", eventLines(events))
	b.WriteString("User Context:\n")
	fmt.Fprintf(&b, "- Name: %s\n", name)
	fmt.Fprintf(&b, "- Bio: %s\n", bio)
	fmt.Fprintf(&b, "- Newsletter Name: %s\n\n", cfg.Name)
	b.WriteString("Please generate a well-formatted markdown newsletter following the user's instructions. " +
		"If there are no life events, write a brief, friendly message acknowledging the quiet period. " +
		"Write in the first person from the user's perspective, addressed to their friends.")
	return b.String()
}

// renderFallback cannot fail; missing names resolve to fixed defaults.
func renderFallback(u *models.User, cfg Config, events []*models.LifeEvent, period string) string {
	name := u.DisplayName()
	if name == "" {
		name = "Friend"
	}
	title := cfg.Name
	if title == "" {
		title = "Life Update"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "## Update from %s\n", name)
	fmt.Fprintf(&b, "*Period: %s*\n\n", period)

	if len(events) > 0 {
		b.WriteString("## Recent Happenings\n\n")
		for _, e := range events {
			fmt.Fprintf(&b, "**%s**: %s\n\n", e.StartDate.Format(eventLayout), e.Summary)
		}
	} else {
		b.WriteString("## A Quiet Period\n\n")
		fmt.Fprintf(&b, "No major events to report during this period, but %s is still here and doing well!\n\n", name)
	}

	b.WriteString("---\n\n")
	b.WriteString("*This newsletter was generated automatically. If you have any questions, please reach out!*\n")
	return b.String()
}
