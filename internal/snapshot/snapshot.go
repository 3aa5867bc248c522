// Package snapshot holds the per-file and aggregated job summaries built from
// submit logs, in three shapes of decreasing detail:
//
//   - Summary:   job ids grouped by category
//   - Completed: per-category counts plus the ids of completed jobs
//   - Counts:    per-category counts only
//
// All three support Merge (disjoint union of per-file data) and Diff
// (entered/exited between two polls).
package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SteelMorgan/condorlog/internal/domain"
)

var (
	// ErrKindMismatch is returned when merging or diffing snapshots of different kinds
	ErrKindMismatch = errors.New("snapshot kinds differ")
)

// Kind selects one of the snapshot shapes
type Kind int

const (
	KindSummary Kind = iota + 1
	KindCompleted
	KindCounts
)

// Kinds lists every snapshot kind
var Kinds = []Kind{KindSummary, KindCompleted, KindCounts}

// ParseKind parses "summary", "completed" or "counts"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "summary":
		return KindSummary, nil
	case "completed":
		return KindCompleted, nil
	case "counts":
		return KindCounts, nil
	default:
		return 0, fmt.Errorf("unknown snapshot kind %q (use summary, completed or counts)", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindSummary:
		return "summary"
	case KindCompleted:
		return "completed"
	case KindCounts:
		return "counts"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Valid reports whether k names a known kind
func (k Kind) Valid() bool {
	return k >= KindSummary && k <= KindCounts
}

// CacheExt is appended to a log path to name its per-file cache
func (k Kind) CacheExt() string {
	switch k {
	case KindSummary:
		return ".cstpk"
	case KindCompleted:
		return ".clspk"
	case KindCounts:
		return ".clcpk"
	default:
		return ".unknownpk"
	}
}

// New returns an empty snapshot of this kind
func (k Kind) New() Snapshot {
	switch k {
	case KindSummary:
		return &Summary{Jobs: make(map[domain.Category][]string)}
	case KindCompleted:
		return &Completed{JobCounts: make(map[domain.Category]int), CompletedJobs: []string{}}
	case KindCounts:
		return &Counts{JobCounts: make(map[domain.Category]int)}
	default:
		panic(fmt.Sprintf("snapshot: invalid kind %d", int(k)))
	}
}

// Build turns a parsed log into a snapshot of this kind
func (k Kind) Build(jobs domain.JobStatusMap) Snapshot {
	switch k {
	case KindSummary:
		return NewSummary(jobs)
	case KindCompleted:
		return NewCompleted(jobs)
	case KindCounts:
		return NewCounts(jobs)
	default:
		panic(fmt.Sprintf("snapshot: invalid kind %d", int(k)))
	}
}

// Snapshot is the common behaviour of the three shapes
type Snapshot interface {
	// Kind returns the shape of the snapshot
	Kind() Kind

	// IsActive reports whether any job is in a non-terminal category
	IsActive() bool

	// Counts returns the number of jobs in each of the six categories
	Counts() map[domain.Category]int

	// Merge adds the receiver into acc and returns acc.
	// A nil acc starts a new accumulator holding a copy of the receiver.
	// The receiver is never modified.
	Merge(acc Snapshot) (Snapshot, error)

	// Diff reports what changed from prev to the receiver.
	// A nil prev is treated as an empty snapshot.
	Diff(prev Snapshot) (*Diff, error)

	// Clone returns a deep copy
	Clone() Snapshot
}

// Delta lists the jobs that entered and left a category
type Delta struct {
	Entered []string `json:"entered" yaml:"entered"`
	Exited  []string `json:"exited" yaml:"exited"`
}

// Empty reports whether no job moved
func (d Delta) Empty() bool {
	return len(d.Entered) == 0 && len(d.Exited) == 0
}

// Diff is the change between two snapshots of the same kind.
// Summary fills Lists; Counts fills Counts; Completed fills Counts and
// Lists[Completed].
type Diff struct {
	Kind   Kind                      `json:"kind" yaml:"kind"`
	Lists  map[domain.Category]Delta `json:"lists,omitempty" yaml:"lists,omitempty"`
	Counts map[domain.Category]int   `json:"counts,omitempty" yaml:"counts,omitempty"`
}

// Empty reports whether nothing changed
func (d *Diff) Empty() bool {
	for _, delta := range d.Lists {
		if !delta.Empty() {
			return false
		}
	}
	for _, n := range d.Counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// CountDeltas returns the signed change of each category.
// For Summary diffs it is derived from the entered/exited lists.
func (d *Diff) CountDeltas() map[domain.Category]int {
	out := make(map[domain.Category]int, len(domain.Categories))
	if d.Counts != nil {
		for c, n := range d.Counts {
			out[c] = n
		}
		return out
	}
	for c, delta := range d.Lists {
		out[c] = len(delta.Entered) - len(delta.Exited)
	}
	return out
}

// allCategories returns the six categories with zero counts
func allCategories() map[domain.Category]int {
	out := make(map[domain.Category]int, len(domain.Categories))
	for _, c := range domain.Categories {
		out[c] = 0
	}
	return out
}

func countsActive(counts map[domain.Category]int) bool {
	for c, n := range counts {
		if !c.Terminal() && n > 0 {
			return true
		}
	}
	return false
}

func copyCounts(counts map[domain.Category]int) map[domain.Category]int {
	out := make(map[domain.Category]int, len(counts))
	for c, n := range counts {
		out[c] = n
	}
	return out
}

// addCounts sums src into dst
func addCounts(dst, src map[domain.Category]int) {
	for c, n := range src {
		dst[c] += n
	}
}

// diffCounts returns cur-prev over the union of categories
func diffCounts(cur, prev map[domain.Category]int) map[domain.Category]int {
	out := make(map[domain.Category]int, len(cur)+len(prev))
	for c, n := range cur {
		out[c] += n
	}
	for c, n := range prev {
		out[c] -= n
	}
	return out
}

// diffLists returns the sorted set differences a\b and b\a
func diffLists(a, b []string) Delta {
	inA := make(map[string]struct{}, len(a))
	for _, id := range a {
		inA[id] = struct{}{}
	}
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}

	delta := Delta{Entered: []string{}, Exited: []string{}}
	for id := range inA {
		if _, ok := inB[id]; !ok {
			delta.Entered = append(delta.Entered, id)
		}
	}
	for id := range inB {
		if _, ok := inA[id]; !ok {
			delta.Exited = append(delta.Exited, id)
		}
	}
	sort.Strings(delta.Entered)
	sort.Strings(delta.Exited)
	return delta
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

// cloneList copies ids, keeping nil as nil
func cloneList(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func kindMismatch(want Kind, got Snapshot) error {
	return fmt.Errorf("%w: want %s, got %s", ErrKindMismatch, want, got.Kind())
}
