package copilot

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrRecordNotFound is returned by BadgerArchiver.Load for unknown
// session ids.
var ErrRecordNotFound = errors.New("copilot: archive record not found")

const archiveKeyPrefix = "interview/"

// BadgerArchiver persists archival records in BadgerDB, msgpack
// encoded, keyed by session id.
type BadgerArchiver struct {
	db *badger.DB
}

// BadgerArchiverOptions configures OpenBadgerArchiver.
type BadgerArchiverOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk
	// persistence). Useful for testing with a real badger engine.
	InMemory bool

	// Logger sets the badger logger. If nil, badger's default logger
	// is used.
	Logger badger.Logger
}

// OpenBadgerArchiver opens (or creates) a badger-backed archive.
func OpenBadgerArchiver(opts BadgerArchiverOptions) (*BadgerArchiver, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("copilot: BadgerArchiverOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("copilot: open archive: %w", err)
	}
	return &BadgerArchiver{db: db}, nil
}

func archiveKey(sessionID string) []byte {
	return []byte(archiveKeyPrefix + sessionID)
}

// Save implements Archiver.
func (a *BadgerArchiver) Save(_ context.Context, rec *Record) error {
	val, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("copilot: encode record %s: %w", rec.SessionID, err)
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(archiveKey(rec.SessionID), val)
	})
	if err != nil {
		return fmt.Errorf("copilot: save record %s: %w", rec.SessionID, err)
	}
	return nil
}

// Load reads back an archived record by session id.
func (a *BadgerArchiver) Load(_ context.Context, sessionID string) (*Record, error) {
	var val []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(archiveKey(sessionID))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("copilot: load record %s: %w", sessionID, err)
	}
	var rec Record
	if err := msgpack.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("copilot: decode record %s: %w", sessionID, err)
	}
	return &rec, nil
}

// Close closes the underlying database.
func (a *BadgerArchiver) Close() error {
	return a.db.Close()
}

// Compile-time interface check.
var _ Archiver = (*BadgerArchiver)(nil)
