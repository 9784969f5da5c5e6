package copilot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleylabs/parley/pkg/infer"
)

// sessionSummary synthesizes the closing summary from the full
// transcript and red flag log.
func sessionSummary(
	ctx context.Context,
	client infer.Client,
	roleLabel, counterpartName string,
	elapsed time.Duration,
	transcript []TranscriptEntry,
	flags []RedFlag,
) (string, error) {
	var flagLines strings.Builder
	for _, f := range flags {
		fmt.Fprintf(&flagLines, "- [%s] %s\n", f.Severity, f.Description)
	}

	return client.Complete(ctx, infer.Request{
		System: "You are an expert at evaluating conversations.",
		User: fmt.Sprintf(`Write a comprehensive summary of the following session.

Role/topic: %s
Counterpart: %s
Duration: %d minutes

Full transcript:
%s

Red flags detected:
%s
Cover:
1. Key strengths
2. Weaknesses and concerns
3. A final recommendation`,
			roleLabel, counterpartName,
			int(elapsed.Round(time.Minute)/time.Minute),
			formatTranscript(transcript, "\n\n"), flagLines.String()),
	})
}
