package copilot

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleylabs/parley/pkg/infer"
	"github.com/parleylabs/parley/pkg/jsontime"
)

// analysisContextEntries is how many trailing transcript entries are
// sent as context with each response analysis.
const analysisContextEntries = 5

// domainGuidance is the static analysis guidance included with every
// response analysis call. It replaces a retrieval step with curated
// text: the heuristics are stable and small enough to inline.
const domainGuidance = `Evaluate answers for: concrete evidence over generalities (STAR-shaped
stories, named outcomes, numbers); ownership language ("I" vs "we");
consistency with what was said earlier in the conversation; evasion,
topic changes, or vague qualifiers ("kind of", "mostly", "I think");
and signs of rehearsed or borrowed answers. Strong answers invite
drill-down follow-ups; weak or evasive answers warrant a flag.`

type analysisFlag struct {
	Flag     string `json:"flag"`
	Severity string `json:"severity"`
}

type responseAnalysis struct {
	FollowUpQuestions []string       `json:"followUpQuestions"`
	RedFlags          []analysisFlag `json:"redFlags"`
	Insights          []string       `json:"insights"`
}

var responseAnalysisSchema = func() *infer.Schema {
	s := infer.MustSchemaFor[responseAnalysis]()
	s.Properties["redFlags"].Items.Properties["severity"].Enum = []any{"low", "medium", "high"}
	return s
}()

func speakerLabel(r SpeakerRole) string {
	if r == SpeakerCounterpart {
		return "Counterpart"
	}
	return "Initiator"
}

func formatTranscript(entries []TranscriptEntry, sep string) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(speakerLabel(e.Speaker))
		sb.WriteString(": ")
		sb.WriteString(e.Text)
	}
	return sb.String()
}

// analyzeResponse issues one structured inference call for a completed
// counterpart utterance and maps the result into suggestion and red
// flag records. Questions and insights become suggestions of their
// kind; medium and high severity flags additionally surface as concern
// suggestions; every returned flag becomes a RedFlag regardless of
// severity.
func analyzeResponse(
	ctx context.Context,
	client infer.Client,
	roleLabel, counterpartName string,
	recent []TranscriptEntry,
	responseText string,
	now jsontime.Millis,
) ([]Suggestion, []RedFlag, error) {
	var res responseAnalysis
	err := client.Invoke(ctx, infer.Call{
		Name:        "response_analysis",
		Description: "Real-time analysis of a counterpart's response.",
		System:      "You are an expert conversation analyst. Return JSON only.",
		User: fmt.Sprintf(`Analyze the counterpart's latest response.

Context:
Role/topic: %s
Counterpart: %s

Recent discussion:
%s

Current response:
%s

Relevant guidance:
%s

Provide:
1. Suggested follow-up questions (2-3)
2. Red flags if any (contradictions, vague answers, evasion)
3. Insights about the quality of the response`,
			roleLabel, counterpartName,
			formatTranscript(recent, "\n"), responseText, domainGuidance),
		Schema: responseAnalysisSchema,
	}, &res)
	if err != nil {
		return nil, nil, err
	}

	var suggestions []Suggestion
	for _, q := range res.FollowUpQuestions {
		suggestions = append(suggestions, Suggestion{Kind: SuggestionQuestion, Text: q, Timestamp: now})
	}
	for _, i := range res.Insights {
		suggestions = append(suggestions, Suggestion{Kind: SuggestionInsight, Text: i, Timestamp: now})
	}

	var flags []RedFlag
	for _, rf := range res.RedFlags {
		sev := Severity(rf.Severity)
		if sev == SeverityHigh || sev == SeverityMedium {
			suggestions = append(suggestions, Suggestion{Kind: SuggestionConcern, Text: rf.Flag, Timestamp: now})
		}
		flags = append(flags, RedFlag{Description: rf.Flag, Severity: sev, Timestamp: now})
	}
	return suggestions, flags, nil
}
