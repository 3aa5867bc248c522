package domain

import (
	"fmt"
	"strconv"
)

// RawStatus is the numeric event code written at the start of each submit log record
type RawStatus int

// InvalidRawStatus is used for status fields that are not three decimal digits
const InvalidRawStatus RawStatus = -1

// Category is the coarse job state derived from a RawStatus
type Category string

const (
	CategoryWait      Category = "Wait"
	CategoryIdle      Category = "Idle"
	CategoryRunning   Category = "Running"
	CategoryHeld      Category = "Held"
	CategoryCompleted Category = "Completed"
	CategoryRemoved   Category = "Removed"
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryWait,
	CategoryIdle,
	CategoryRunning,
	CategoryHeld,
	CategoryCompleted,
	CategoryRemoved,
}

// statusTable maps event codes to categories.
// Codes missing from the table classify as Idle. Cached snapshots depend on
// this mapping, so entries must never change.
var statusTable = map[RawStatus]Category{
	0:  CategoryWait,
	1:  CategoryRunning,
	3:  CategoryRunning,
	5:  CategoryCompleted,
	6:  CategoryRunning,
	9:  CategoryRemoved,
	10: CategoryRunning,
	11: CategoryRunning,
	12: CategoryHeld,
	20: CategoryWait,
	22: CategoryRunning,
	23: CategoryRunning,
	26: CategoryWait,
}

// statusDescriptions holds the scheduler's meaning of each event code
var statusDescriptions = [...]string{
	"Job submitted",
	"Job executing",
	"Error in executable",
	"Job was checkpointed",
	"Job was evicted",
	"Job terminated",
	"Image size of job updated",
	"Shadow exception",
	"Not used",
	"Job was aborted",
	"Job was suspended",
	"Job was unsuspended",
	"Job was held",
	"Job was released",
	"Parallel node executed",
	"Parallel node terminated",
	"POST script terminated",
	"Job submitted to Globus",
	"Globus submission failed",
	"Globus resource back up",
	"Detected down Globus resource",
	"Remote error",
	"Remote system call socket lost",
	"Remote system call socket reestablished",
	"Remote system call reconnect failure",
	"Grid resource back up",
	"Detected down grid resource",
	"Job submitted to grid resource",
}

// Classify reduces an event code to one of the six categories
func Classify(status RawStatus) Category {
	if c, ok := statusTable[status]; ok {
		return c
	}
	return CategoryIdle
}

// Category returns the category of the status
func (s RawStatus) Category() Category {
	return Classify(s)
}

// Description returns the scheduler's name for the event code
func (s RawStatus) Description() string {
	if s < 0 || int(s) >= len(statusDescriptions) {
		return "Unknown event"
	}
	return statusDescriptions[s]
}

// String renders the status the way it appears in the log (zero-padded to 3 digits)
func (s RawStatus) String() string {
	if s < 0 {
		return "???"
	}
	return fmt.Sprintf("%03d", int(s))
}

// ParseRawStatus parses the 3-digit status field of a record
func ParseRawStatus(field string) (RawStatus, error) {
	if len(field) != 3 {
		return InvalidRawStatus, fmt.Errorf("invalid status field %q: want 3 digits", field)
	}
	for i := 0; i < len(field); i++ {
		if field[i] < '0' || field[i] > '9' {
			return InvalidRawStatus, fmt.Errorf("invalid status field %q: want 3 digits", field)
		}
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return InvalidRawStatus, fmt.Errorf("invalid status field %q: %w", field, err)
	}
	return RawStatus(v), nil
}

// Terminal reports whether jobs in this category can no longer change
func (c Category) Terminal() bool {
	return c == CategoryCompleted || c == CategoryRemoved
}

// ParseCategory returns the category with the given name
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", name)
}
