package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
)

const (
	summaryMaxFacts  = 20
	summaryMaxTokens = 500
)

var errEmptyReply = errors.New("empty reply")

const summarySystemPrompt = `You write short profile summaries for a personal timeline app.
Write one paragraph of at most five sentences, in the third person, about the person described.
Use only the information provided. Do not invent jobs, places, relationships or events.
Reply with the paragraph only, without headings or quotes.`

// profileSummary asks the model for a one-paragraph summary and falls back
// to a fixed template. It never fails.
func (o *Orchestrator) profileSummary(ctx context.Context, s *Session) string {
	if o.llm != nil && llm.Enabled(o.llm) {
		text, err := o.llm.Complete(ctx, llm.Request{
			System:      summarySystemPrompt,
			User:        summaryPrompt(s),
			Model:       o.opts.SummaryModel,
			Temperature: 0.7,
			MaxTokens:   summaryMaxTokens,
		})
		text = strings.TrimSpace(text)
		if err == nil && text == "" {
			err = errEmptyReply
		}
		if err == nil {
			return text
		}
		o.log.Warn(ctx, "profile summary llm failed, using template", "session_id", s.ID, "error", err)
	}
	return fallbackSummary(s)
}

func summaryPrompt(s *Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", s.BasicInfo.FullName)
	if s.BasicInfo.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", s.BasicInfo.Bio)
	}
	if p := platforms(s); len(p) > 0 {
		fmt.Fprintf(&b, "Connected platforms: %s\n", strings.Join(p, ", "))
	}
	if len(s.Documents) > 0 {
		fmt.Fprintf(&b, "Documents shared: %d\n", len(s.Documents))
	}

	n := 0
	for _, src := range s.Sources {
		for _, f := range src.Facts {
			if n == summaryMaxFacts {
				break
			}
			if n == 0 {
				b.WriteString("Known facts:\n")
			}
			fmt.Fprintf(&b, "- %s\n", f.Summary)
			n++
		}
	}
	return b.String()
}

func platforms(s *Session) []string {
	seen := make(map[string]bool, len(s.Sources))
	var out []string
	for _, src := range s.Sources {
		if !seen[src.Platform] {
			seen[src.Platform] = true
			out = append(out, src.Platform)
		}
	}
	return out
}

func fallbackSummary(s *Session) string {
	name := s.BasicInfo.FullName
	if name == "" {
		name = "User"
	}

	parts := []string{"Meet " + name}
	if s.BasicInfo.Bio != "" {
		parts = append(parts, "who describes themselves as: "+s.BasicInfo.Bio)
	}
	if p := platforms(s); len(p) > 0 {
		parts = append(parts, "They're active on "+strings.Join(p, ", "))
	}
	if len(s.Documents) > 0 {
		parts = append(parts, fmt.Sprintf("and has shared %d documents providing insights into their life", len(s.Documents)))
	}
	parts = append(parts, "Their AI is ready to chat with friends and share appropriate updates based on their configured privacy preferences")
	return strings.Join(parts, ". ") + "."
}
