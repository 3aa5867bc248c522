package logreader

import (
	"github.com/SteelMorgan/condorlog/internal/domain"
)

// StatusScanner extracts the last status of every job from one submit log
type StatusScanner interface {
	// Scan reads the log at path.
	// A trailing incomplete record must be ignored, not reported as an error.
	Scan(path string) (domain.JobStatusMap, error)
}

// ScannerFunc adapts a plain function to StatusScanner
type ScannerFunc func(path string) (domain.JobStatusMap, error)

// Scan calls f(path)
func (f ScannerFunc) Scan(path string) (domain.JobStatusMap, error) {
	return f(path)
}

// DefaultScanner is the memory-mapped scanner
var DefaultScanner StatusScanner = ScannerFunc(ScanFile)
