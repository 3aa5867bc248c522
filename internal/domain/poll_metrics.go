package domain

import "time"

// PollMetrics represents the outcome of one poll of a watched directory
type PollMetrics struct {
	PollID     string
	Timestamp  time.Time
	Target     string // watch target name
	Dir        string
	Kind       string // "summary", "completed" or "counts"
	ActiveOnly bool

	FilesScanned      uint32 // files whose cache was consulted
	FilesReparsed     uint32 // files parsed from the log instead of the cache
	FilesNewlyRetired uint32 // files added to the inactive list by this poll
	FilesInactive     uint32 // size of the inactive list after the poll

	Counts map[Category]int // aggregate job count per category
	Deltas map[Category]int // signed change since the previous poll

	StartTime  time.Time
	EndTime    time.Time
	DurationMs uint64
	ErrorCount uint32
}

// Total returns the number of jobs over all categories
func (m *PollMetrics) Total() int {
	total := 0
	for _, n := range m.Counts {
		total += n
	}
	return total
}
