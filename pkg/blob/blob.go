// Package blob defines the Store interface for writing opaque blobs.
//
// The live engine uploads each ingested audio chunk before
// transcription so recordings survive the session. Stores are
// put-oriented: a single call writes the blob and returns a durable
// URL. Keys are forward-slash separated and relative to the store
// root. Implementations must be safe for concurrent use.
package blob

import "context"

// Store is a minimal interface for blob-oriented storage.
type Store interface {
	// Put writes data under the given key with the given content type
	// and returns a durable URL for the stored blob. An existing blob
	// under the same key is overwritten.
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
}
