package logcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCacheWrite marks a cache file that could not be written at all.
// Callers treat it as best effort: the in-memory result stays valid and only
// the next call loses the cache. A failed rename is reported without this
// sentinel because it means the atomic swap itself is broken.
var ErrCacheWrite = errors.New("cache file not written")

const cacheFileMode = 0644

// writeAtomic replaces path with data so that readers see either the old or
// the new content, never a partial file. The temp file lives next to path
// and carries the pid so concurrent writers do not collide.
func writeAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, fmt.Sprintf("%s.tmp_%d_*", base, os.Getpid()))
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrCacheWrite, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %w", ErrCacheWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %w", ErrCacheWrite, err)
	}
	if err := os.Chmod(tmpName, cacheFileMode); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: chmod temp file: %w", ErrCacheWrite, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		// some platforms refuse to rename over an existing file
		if rmErr := os.Remove(path); rmErr == nil || errors.Is(rmErr, os.ErrNotExist) {
			err = os.Rename(tmpName, path)
		}
		if err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("failed to move cache file into place: %w", err)
		}
	}
	return nil
}
