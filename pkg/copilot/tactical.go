package copilot

import (
	"context"
	"fmt"
	"sort"

	"github.com/parleylabs/parley/pkg/infer"
	"github.com/parleylabs/parley/pkg/telemetry"
)

const (
	// tacticalCadence is the cadence gate: every Nth telemetry sample
	// since session start triggers one generation cycle.
	tacticalCadence = 50

	// tacticalWindowSamples is how many trailing samples are averaged
	// per cycle (about 30 seconds at 5 Hz).
	tacticalWindowSamples = 6

	// tacticalExcerptMin is the minimum recent-transcript length that
	// justifies an extra inference-backed suggestion.
	tacticalExcerptMin = 50

	// tacticalExcerptLimit bounds the excerpt sent to the model.
	tacticalExcerptLimit = 200
)

// ruleSuggestions applies the deterministic genre-specific threshold
// rules to the windowed telemetry means. Timestamps are left zero;
// the caller stamps the whole batch.
func ruleSuggestions(genre Genre, m telemetry.Means) []TacticalSuggestion {
	var out []TacticalSuggestion

	switch genre {
	case GenreNegotiation:
		if m.Positive > 70 && m.Engagement > 70 {
			out = append(out, TacticalSuggestion{
				Kind:      TacticalOpportunity,
				Priority:  PriorityCritical,
				Message:   "Golden opportunity: the other side is showing strong enthusiasm",
				Rationale: fmt.Sprintf("positive affect %.0f%%, engagement %.0f%%", m.Positive, m.Engagement),
				Action:    "Good moment to raise the ask or push for better terms",
			})
		}
		if m.Stress > 60 && m.Confidence < 50 {
			out = append(out, TacticalSuggestion{
				Kind:      TacticalWarning,
				Priority:  PriorityHigh,
				Message:   "Hesitation detected: the other side is not fully convinced",
				Rationale: fmt.Sprintf("stress %.0f%%, confidence %.0f%%", m.Stress, m.Confidence),
				Action:    "Restate the added value more clearly or offer extra guarantees",
			})
		}
		if m.Attention < 50 {
			out = append(out, TacticalSuggestion{
				Kind:      TacticalWarning,
				Priority:  PriorityMedium,
				Message:   "Low attention: the material may be dull or too dense",
				Rationale: fmt.Sprintf("attention %.0f%%", m.Attention),
				Action:    "Move to a more engaging point or ask an interactive question",
			})
		}

	case GenreInterview:
		if m.Stress > 60 && m.Confidence > 60 {
			out = append(out, TacticalSuggestion{
				Kind:      TacticalTactic,
				Priority:  PriorityMedium,
				Message:   "Candidate is nervous but confident in their answer",
				Rationale: fmt.Sprintf("stress %.0f%% but confidence %.0f%%", m.Stress, m.Confidence),
				Action:    "Try deeper technical questions; the candidate looks capable",
			})
		}
		if m.Confidence < 40 && m.Stress > 70 {
			out = append(out, TacticalSuggestion{
				Kind:      TacticalWarning,
				Priority:  PriorityHigh,
				Message:   "Red flag: candidate is unconfident and under pressure",
				Rationale: fmt.Sprintf("confidence %.0f%%, stress %.0f%%", m.Confidence, m.Stress),
				Action:    "May not fit the role, or the question is too hard",
			})
		}

	case GenrePresentation:
		if m.Engagement > 70 && m.Attention > 70 {
			out = append(out, TacticalSuggestion{
				Kind:      TacticalOpportunity,
				Priority:  PriorityHigh,
				Message:   "Audience is highly engaged - keep going",
				Rationale: fmt.Sprintf("engagement %.0f%%, attention %.0f%%", m.Engagement, m.Attention),
				Action:    "Good moment for the call to action",
			})
		}
		if m.Attention < 40 || m.Engagement < 40 {
			out = append(out, TacticalSuggestion{
				Kind:      TacticalWarning,
				Priority:  PriorityCritical,
				Message:   "Audience is losing interest",
				Rationale: fmt.Sprintf("attention %.0f%%, engagement %.0f%%", m.Attention, m.Engagement),
				Action:    "Change topic, add a story, or ask a question",
			})
		}
	}

	return out
}

type tacticalResult struct {
	Kind      string `json:"kind"`
	Priority  string `json:"priority"`
	Message   string `json:"message"`
	Rationale string `json:"rationale"`
	Action    string `json:"action,omitempty"`
}

var tacticalSchema = func() *infer.Schema {
	s := infer.MustSchemaFor[tacticalResult]()
	s.Properties["kind"].Enum = []any{"opportunity", "warning", "tactic", "question"}
	s.Properties["priority"].Enum = []any{"critical", "high", "medium", "low"}
	return s
}()

// aiSuggestion asks the model for at most one extra tactical
// suggestion grounded in the same telemetry means and transcript
// excerpt. A failure here never suppresses the deterministic rules.
func aiSuggestion(ctx context.Context, client infer.Client, genre Genre, m telemetry.Means, excerpt string) (*TacticalSuggestion, error) {
	if len(excerpt) > tacticalExcerptLimit {
		excerpt = excerpt[:tacticalExcerptLimit]
	}

	var res tacticalResult
	err := client.Invoke(ctx, infer.Call{
		Name:        "tactical_suggestion",
		Description: "One tactical suggestion for an ongoing conversation.",
		System:      "You are an expert meeting advisor. Return JSON only.",
		User: fmt.Sprintf(`Analyze the situation and provide one tactical suggestion (the most important one only).

Conversation genre: %s
Current signals:
- positive affect: %.0f%%
- engagement: %.0f%%
- stress: %.0f%%
- confidence: %.0f%%
- attention: %.0f%%

Last thing said: %q`,
			genre, m.Positive, m.Engagement, m.Stress, m.Confidence, m.Attention, excerpt),
		Schema: tacticalSchema,
	}, &res)
	if err != nil {
		return nil, err
	}

	ts := &TacticalSuggestion{
		Kind:      TacticalKind(res.Kind),
		Priority:  Priority(res.Priority),
		Message:   res.Message,
		Rationale: res.Rationale,
		Action:    res.Action,
	}
	return ts, nil
}

// sortByPriority stable-sorts a batch critical first, low last, so a
// whole cycle's candidates emit as one ordered event.
func sortByPriority(s []TacticalSuggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Priority.rank() < s[j].Priority.rank()
	})
}
