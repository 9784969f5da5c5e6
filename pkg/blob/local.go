package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore implements Store on the local filesystem, for development
// and single-node deployments.
type LocalStore struct {
	root string

	// baseURL, when set, prefixes returned URLs; otherwise file:// URLs
	// pointing into root are returned.
	baseURL string
}

// NewLocal creates a Store rooted at dir. baseURL may be "" for
// file:// URLs.
func NewLocal(dir, baseURL string) *LocalStore {
	return &LocalStore{root: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Put writes the blob under root, creating parent directories.
// The content type is not recorded; local URLs carry no metadata.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	clean := path.Clean("/" + key)
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", key, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", key, err)
	}
	if s.baseURL != "" {
		return s.baseURL + clean, nil
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("blob: put %s: %w", key, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Compile-time interface check.
var _ Store = (*LocalStore)(nil)
