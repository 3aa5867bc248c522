package pollstate

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/SteelMorgan/condorlog/internal/snapshot"
)

// Store keeps the last aggregate snapshot of every watched directory so the
// next poll, possibly in another process, can diff against it.
type Store interface {
	// Get returns the stored snapshot, or nil if there is none
	Get(ctx context.Context, key string) (snapshot.Snapshot, error)

	// Put replaces the stored snapshot
	Put(ctx context.Context, key string, s snapshot.Snapshot) error

	// Delete forgets the stored snapshot
	Delete(ctx context.Context, key string) error

	// List returns all stored keys
	List(ctx context.Context) ([]string, error)

	// Close closes the store
	Close() error
}

// Key identifies one aggregate: kind, directory and file filter
func Key(kind snapshot.Kind, dir, prefix, suffix string) string {
	return fmt.Sprintf("%s:%s*%s", kind, filepath.Join(filepath.Clean(dir), prefix), suffix)
}
