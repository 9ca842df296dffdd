package chat

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

const dateLayout = "2006-01-02"

func systemPrompt(u *models.User, events []*models.LifeEvent, facts []*models.LifeFact) string {
	var b strings.Builder
	b.WriteString(`You are an AI assistant representing this user in conversations with their friends and family. Answer questions about the user based on the provided context.

Keep responses natural, friendly, and personal. If you don't have specific information about something, say so politely rather than making things up.

User Context:
`)
	fmt.Fprintf(&b, "User: %s\n", u.DisplayName())
	if u.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", u.Bio)
	}
	if len(events) > 0 {
		b.WriteString("\nRecent Life Events:\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- %s (%s)\n", e.Summary, e.StartDate.Format(dateLayout))
		}
	}
	if len(facts) > 0 {
		b.WriteString("\nLife Facts & Background:\n")
		for _, f := range facts {
			if f.Category != "" {
				fmt.Fprintf(&b, "- %s (Category: %s)\n", f.Summary, f.Category)
			} else {
				fmt.Fprintf(&b, "- %s\n", f.Summary)
			}
		}
	}
	b.WriteString(`
Instructions:
- Answer as if you're speaking on behalf of the user
- Be conversational and natural
- Use the life events and facts to provide detailed, personal responses
- If asked about something not in the context, politely say you don't have that information
- Keep responses concise but informative`)
	return b.String()
}

// userPrompt flattens the conversation; the completion boundary takes a
// single user message.
func userPrompt(history []Turn, question string) string {
	history = trimHistory(history)
	if len(history) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range history {
		role := "Friend"
		if t.Role == "assistant" {
			role = "You"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(t.Content))
	}
	fmt.Fprintf(&b, "\nFriend's new question: %s", question)
	return b.String()
}
