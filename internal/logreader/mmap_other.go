//go:build !unix

package logreader

import (
	"io"
	"os"
)

// mapFile reads the first size bytes of f; used where mmap is unavailable
func mapFile(f *os.File, size int) ([]byte, func() error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
