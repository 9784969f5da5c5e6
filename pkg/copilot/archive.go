package copilot

import (
	"context"

	"github.com/parleylabs/parley/pkg/jsontime"
)

// Record is the flattened archival form of one ended session, handed
// to the persistence collaborator exactly once at session end.
type Record struct {
	SessionID       string `msgpack:"session_id"`
	OwnerID         int64  `msgpack:"owner_id"`
	CounterpartName string `msgpack:"counterpart_name"`
	RoleLabel       string `msgpack:"role_label"`
	Status          string `msgpack:"status"`
	Summary         string `msgpack:"summary"`

	StartedAt jsontime.Millis     `msgpack:"started_at"`
	EndedAt   jsontime.Millis     `msgpack:"ended_at"`
	Duration  jsontime.DurationMS `msgpack:"duration"`

	Transcript  []TranscriptEntry    `msgpack:"transcript"`
	Suggestions []Suggestion         `msgpack:"suggestions"`
	RedFlags    []RedFlag            `msgpack:"red_flags"`
	Tactical    []TacticalSuggestion `msgpack:"tactical"`
}

// Archiver persists archival records. A failed save is logged but must
// never block session termination or the final event to the client.
type Archiver interface {
	Save(ctx context.Context, rec *Record) error
}

// ArchiverFunc is an adapter to allow the use of ordinary functions as
// Archivers.
type ArchiverFunc func(ctx context.Context, rec *Record) error

// Save calls the underlying function.
func (f ArchiverFunc) Save(ctx context.Context, rec *Record) error {
	return f(ctx, rec)
}
