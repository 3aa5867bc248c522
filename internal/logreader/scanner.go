package logreader

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ListLogFiles returns the names of the entries in dir that start with prefix and end with suffix.
// Only the top level of dir is considered; subdirectories are skipped.
// Names are returned sorted.
func ListLogFiles(dir, prefix, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// a name shorter than prefix+suffix cannot carry both
		if len(name) < len(prefix)+len(suffix) {
			continue
		}
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	log.Debug().
		Str("dir", dir).
		Str("prefix", prefix).
		Str("suffix", suffix).
		Int("files", len(names)).
		Msg("Listed submit logs")

	return names, nil
}
