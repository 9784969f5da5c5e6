// Package copilot implements the live session engine: per-session
// state, the orchestrating registry, and the analysis components that
// turn streaming audio and telemetry into transcript entries,
// follow-up suggestions, red flags, and tactical guidance.
package copilot

import (
	"time"

	"github.com/parleylabs/parley/pkg/jsontime"
	"github.com/parleylabs/parley/pkg/telemetry"
)

// SpeakerRole identifies which side of the conversation an audio chunk
// belongs to.
type SpeakerRole string

const (
	// SpeakerInitiator is the session owner's side.
	SpeakerInitiator SpeakerRole = "initiator"
	// SpeakerCounterpart is the other party.
	SpeakerCounterpart SpeakerRole = "counterpart"
)

// Valid reports whether the role is one of the two known values.
func (r SpeakerRole) Valid() bool {
	return r == SpeakerInitiator || r == SpeakerCounterpart
}

// TranscriptEntry is one transcribed utterance. Entries are appended
// in the order transcription calls resolve and never mutated.
type TranscriptEntry struct {
	Speaker   SpeakerRole     `json:"speaker" msgpack:"speaker"`
	Text      string          `json:"text" msgpack:"text"`
	Timestamp jsontime.Millis `json:"timestamp" msgpack:"timestamp"`
}

// SuggestionKind classifies a per-utterance suggestion.
type SuggestionKind string

const (
	SuggestionQuestion SuggestionKind = "question"
	SuggestionConcern  SuggestionKind = "concern"
	SuggestionInsight  SuggestionKind = "insight"
)

// Suggestion is one piece of per-utterance guidance.
type Suggestion struct {
	Kind      SuggestionKind  `json:"kind" msgpack:"kind"`
	Text      string          `json:"text" msgpack:"text"`
	Timestamp jsontime.Millis `json:"timestamp" msgpack:"timestamp"`
}

// Severity grades a red flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RedFlag is a concern raised by response analysis. Severity never
// changes after creation.
type RedFlag struct {
	Description string          `json:"description" msgpack:"description"`
	Severity    Severity        `json:"severity" msgpack:"severity"`
	Timestamp   jsontime.Millis `json:"timestamp" msgpack:"timestamp"`
}

// TacticalKind classifies a tactical suggestion.
type TacticalKind string

const (
	TacticalOpportunity TacticalKind = "opportunity"
	TacticalWarning     TacticalKind = "warning"
	TacticalTactic      TacticalKind = "tactic"
	TacticalQuestion    TacticalKind = "question"
)

// Priority orders tactical suggestions within a batch.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// rank returns the sort rank of the priority; lower sorts first.
// Unknown priorities sort last.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// TacticalSuggestion is one prioritized, rationale-bearing piece of
// in-the-moment guidance.
type TacticalSuggestion struct {
	Kind      TacticalKind    `json:"kind" msgpack:"kind"`
	Priority  Priority        `json:"priority" msgpack:"priority"`
	Message   string          `json:"message" msgpack:"message"`
	Rationale string          `json:"rationale" msgpack:"rationale"`
	Action    string          `json:"action,omitempty" msgpack:"action,omitempty"`
	Timestamp jsontime.Millis `json:"timestamp" msgpack:"timestamp"`
}

// Genre is the classified conversational category, used to select the
// tactical rule set.
type Genre string

const (
	GenreNegotiation  Genre = "negotiation"
	GenreInterview    Genre = "interview"
	GenrePresentation Genre = "presentation"
	GenreGeneral      Genre = "general"
)

// Valid reports whether the genre is a known category.
func (g Genre) Valid() bool {
	switch g {
	case GenreNegotiation, GenreInterview, GenrePresentation, GenreGeneral:
		return true
	}
	return false
}

// MeetingContext is the classified conversational context, computed at
// most once per session.
type MeetingContext struct {
	Genre        Genre    `json:"genre"`
	Participants []string `json:"participants"`
	Topic        string   `json:"topic,omitempty"`
}

// session is the live state of one conversation. It is owned
// exclusively by the Registry; all fields are guarded by the
// Registry's mutex.
type session struct {
	id              string
	ownerID         int64
	counterpartName string
	roleLabel       string
	startedAt       time.Time

	context     *MeetingContext
	classifying bool

	transcript  []TranscriptEntry
	suggestions []Suggestion
	redFlags    []RedFlag
	tactical    []TacticalSuggestion
	window      *telemetry.Window

	subs map[int64]chan Event
}

// recentTranscript returns the last n transcript entries.
func (s *session) recentTranscript(n int) []TranscriptEntry {
	if len(s.transcript) <= n {
		return s.transcript
	}
	return s.transcript[len(s.transcript)-n:]
}
