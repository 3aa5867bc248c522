package snapshot

import (
	"github.com/SteelMorgan/condorlog/internal/domain"
)

// Completed keeps per-category counts and the ids of completed jobs
type Completed struct {
	JobCounts     map[domain.Category]int `cbor:"counts" json:"counts" yaml:"counts"`
	CompletedJobs []string                `cbor:"completed_jobs" json:"completed_jobs" yaml:"completed_jobs"`
}

// NewCompleted counts the jobs of a parsed log and lists the completed ones
func NewCompleted(jobs domain.JobStatusMap) *Completed {
	groups := jobs.GroupByCategory()
	counts := make(map[domain.Category]int, len(groups))
	for c, ids := range groups {
		counts[c] = len(ids)
	}
	completed := sortedCopy(groups[domain.CategoryCompleted])
	return &Completed{JobCounts: counts, CompletedJobs: completed}
}

func (s *Completed) Kind() Kind { return KindCompleted }

func (s *Completed) IsActive() bool {
	return countsActive(s.JobCounts)
}

func (s *Completed) Counts() map[domain.Category]int {
	counts := allCategories()
	addCounts(counts, s.JobCounts)
	return counts
}

func (s *Completed) Merge(acc Snapshot) (Snapshot, error) {
	a, ok := acc.(*Completed)
	if acc != nil && !ok {
		return nil, kindMismatch(KindCompleted, acc)
	}
	if a == nil {
		return s.Clone(), nil
	}
	if a.JobCounts == nil {
		a.JobCounts = make(map[domain.Category]int, len(s.JobCounts))
	}
	addCounts(a.JobCounts, s.JobCounts)
	a.CompletedJobs = append(a.CompletedJobs, s.CompletedJobs...)
	return a, nil
}

func (s *Completed) Diff(prev Snapshot) (*Diff, error) {
	p, ok := prev.(*Completed)
	if prev != nil && !ok {
		return nil, kindMismatch(KindCompleted, prev)
	}
	if p == nil {
		p = &Completed{}
	}

	return &Diff{
		Kind:   KindCompleted,
		Counts: diffCounts(s.JobCounts, p.JobCounts),
		Lists: map[domain.Category]Delta{
			domain.CategoryCompleted: diffLists(s.CompletedJobs, p.CompletedJobs),
		},
	}, nil
}

func (s *Completed) Clone() Snapshot {
	return &Completed{JobCounts: copyCounts(s.JobCounts), CompletedJobs: cloneList(s.CompletedJobs)}
}
