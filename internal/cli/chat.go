package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/howyoubeen/internal/server/chat"
)

// AskFunc answers one question given the conversation so far.
type AskFunc func(ctx context.Context, question string, history []chat.Turn) (*chat.Answer, error)

// Chat reads questions from in until EOF or an empty line and prints each
// answer to out. The conversation is carried between questions.
func Chat(ctx context.Context, ask AskFunc, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	var history []chat.Turn
	for {
		q, err := GetSimpleText(reader, "\nAsk a question (empty line to quit)", out)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if q == "" {
			return nil
		}

		ans, err := ask(ctx, q, history)
		if err != nil {
			return err
		}
		PrintAnswer(out, ans)
		history = append(history, chat.Turn{Role: "user", Content: q}, chat.Turn{Role: "assistant", Content: ans.Response})
	}
}

func PrintAnswer(out io.Writer, ans *chat.Answer) {
	fmt.Fprintf(out, "\n%s\n", ans.Response)
	if len(ans.SuggestedQuestions) > 0 {
		fmt.Fprintln(out, "\nYou could also ask:")
		for _, s := range ans.SuggestedQuestions {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
}
