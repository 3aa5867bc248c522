package snapshot

import (
	"github.com/SteelMorgan/condorlog/internal/domain"
)

// Counts keeps only the number of jobs per category
type Counts struct {
	JobCounts map[domain.Category]int `cbor:"counts" json:"counts" yaml:"counts"`
}

// NewCounts counts the jobs of a parsed log per category
func NewCounts(jobs domain.JobStatusMap) *Counts {
	return &Counts{JobCounts: jobs.CountByCategory()}
}

func (s *Counts) Kind() Kind { return KindCounts }

func (s *Counts) IsActive() bool {
	return countsActive(s.JobCounts)
}

func (s *Counts) Counts() map[domain.Category]int {
	counts := allCategories()
	addCounts(counts, s.JobCounts)
	return counts
}

func (s *Counts) Merge(acc Snapshot) (Snapshot, error) {
	a, ok := acc.(*Counts)
	if acc != nil && !ok {
		return nil, kindMismatch(KindCounts, acc)
	}
	if a == nil {
		return s.Clone(), nil
	}
	if a.JobCounts == nil {
		a.JobCounts = make(map[domain.Category]int, len(s.JobCounts))
	}
	addCounts(a.JobCounts, s.JobCounts)
	return a, nil
}

// Diff returns signed count deltas; Counts snapshots carry no job ids
func (s *Counts) Diff(prev Snapshot) (*Diff, error) {
	p, ok := prev.(*Counts)
	if prev != nil && !ok {
		return nil, kindMismatch(KindCounts, prev)
	}
	if p == nil {
		p = &Counts{}
	}
	return &Diff{Kind: KindCounts, Counts: diffCounts(s.JobCounts, p.JobCounts)}, nil
}

func (s *Counts) Clone() Snapshot {
	return &Counts{JobCounts: copyCounts(s.JobCounts)}
}
