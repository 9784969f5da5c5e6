package copilot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/parleylabs/parley/pkg/infer"
	"github.com/parleylabs/parley/pkg/jsontime"
)

// maxOpeningQuestions caps the opening suggestion batch.
const maxOpeningQuestions = 3

var listNumbering = regexp.MustCompile(`^\d+[.)]\s*`)

// openingQuestions seeds a new session with up to three opening
// question suggestions derived from the role label alone.
func openingQuestions(ctx context.Context, client infer.Client, roleLabel string, now jsontime.Millis) ([]Suggestion, error) {
	text, err := client.Complete(ctx, infer.Request{
		System: "You are an expert in hiring and behavioral interviewing.",
		User: fmt.Sprintf(`Suggest 3 strong opening questions for a conversation about: %s

The questions must be:
- Open-ended (requiring detailed answers)
- Revealing of real experience
- Grounded in the Topgrading methodology

Return one question per line.`, roleLabel),
	})
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, line := range strings.Split(text, "\n") {
		q := strings.TrimSpace(listNumbering.ReplaceAllString(strings.TrimSpace(line), ""))
		if len(q) <= 10 {
			continue
		}
		out = append(out, Suggestion{Kind: SuggestionQuestion, Text: q, Timestamp: now})
		if len(out) == maxOpeningQuestions {
			break
		}
	}
	return out, nil
}
