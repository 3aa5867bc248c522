package snapshot

import (
	"github.com/SteelMorgan/condorlog/internal/domain"
)

// Summary keeps the job ids of every category
type Summary struct {
	Jobs map[domain.Category][]string `cbor:"jobs" json:"jobs" yaml:"jobs"`
}

// NewSummary groups the jobs of a parsed log by category
func NewSummary(jobs domain.JobStatusMap) *Summary {
	groups := jobs.GroupByCategory()
	for c, ids := range groups {
		groups[c] = sortedCopy(ids)
	}
	return &Summary{Jobs: groups}
}

func (s *Summary) Kind() Kind { return KindSummary }

func (s *Summary) IsActive() bool {
	for c, ids := range s.Jobs {
		if !c.Terminal() && len(ids) > 0 {
			return true
		}
	}
	return false
}

func (s *Summary) Counts() map[domain.Category]int {
	counts := allCategories()
	for c, ids := range s.Jobs {
		counts[c] += len(ids)
	}
	return counts
}

func (s *Summary) Merge(acc Snapshot) (Snapshot, error) {
	a, ok := acc.(*Summary)
	if acc != nil && !ok {
		return nil, kindMismatch(KindSummary, acc)
	}
	if a == nil {
		return s.Clone(), nil
	}
	if a.Jobs == nil {
		a.Jobs = make(map[domain.Category][]string, len(s.Jobs))
	}
	for c, ids := range s.Jobs {
		a.Jobs[c] = append(a.Jobs[c], ids...)
	}
	return a, nil
}

func (s *Summary) Diff(prev Snapshot) (*Diff, error) {
	p, ok := prev.(*Summary)
	if prev != nil && !ok {
		return nil, kindMismatch(KindSummary, prev)
	}
	if p == nil {
		p = &Summary{}
	}

	d := &Diff{Kind: KindSummary, Lists: make(map[domain.Category]Delta)}
	for c, ids := range s.Jobs {
		d.Lists[c] = diffLists(ids, p.Jobs[c])
	}
	for c, ids := range p.Jobs {
		if _, seen := d.Lists[c]; !seen {
			d.Lists[c] = diffLists(nil, ids)
		}
	}
	return d, nil
}

func (s *Summary) Clone() Snapshot {
	jobs := make(map[domain.Category][]string, len(s.Jobs))
	for c, ids := range s.Jobs {
		jobs[c] = cloneList(ids)
	}
	return &Summary{Jobs: jobs}
}
