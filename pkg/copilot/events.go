package copilot

import (
	"github.com/parleylabs/parley/pkg/jsontime"
	"github.com/parleylabs/parley/pkg/telemetry"
)

// Event is an outbound record pushed to session subscribers. Events
// for one session are delivered in emission order.
type Event interface {
	// EventType returns the wire event name.
	EventType() string
}

// TranscriptionEvent carries one new transcript entry.
type TranscriptionEvent struct {
	Speaker   SpeakerRole     `json:"speakerRole"`
	Text      string          `json:"text"`
	Timestamp jsontime.Millis `json:"timestamp"`
}

func (TranscriptionEvent) EventType() string { return "transcription" }

// SuggestionsEvent carries a batch of per-utterance suggestions.
type SuggestionsEvent struct {
	Suggestions []Suggestion `json:"suggestions"`
}

func (SuggestionsEvent) EventType() string { return "suggestions" }

// RedFlagsEvent carries a batch of red flags.
type RedFlagsEvent struct {
	RedFlags []RedFlag `json:"redFlags"`
}

func (RedFlagsEvent) EventType() string { return "red-flags" }

// TacticalSuggestionsEvent carries one priority-sorted tactical batch.
// Batches are never split; a whole generation cycle emits exactly one
// event.
type TacticalSuggestionsEvent struct {
	Suggestions []TacticalSuggestion `json:"suggestions"`
}

func (TacticalSuggestionsEvent) EventType() string { return "tactical-suggestions" }

// EmotionUpdateEvent echoes an ingested telemetry sample back to
// subscribers for client-side charting.
type EmotionUpdateEvent struct {
	Emotion telemetry.Sample `json:"emotion"`
}

func (EmotionUpdateEvent) EventType() string { return "emotion-update" }

// SessionEndedEvent is the final event of a session.
type SessionEndedEvent struct {
	SessionID string              `json:"sessionId"`
	Summary   string              `json:"summary"`
	Duration  jsontime.DurationMS `json:"duration"`
}

func (SessionEndedEvent) EventType() string { return "session-ended" }

// ErrorEvent reports a non-fatal failure. The session remains usable.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return "error" }
