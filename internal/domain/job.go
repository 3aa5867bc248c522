package domain

import (
	"strconv"
	"strings"
)

// JobID identifies a job within one scheduler run
type JobID struct {
	Cluster int
	Proc    int
}

// InvalidJobID is returned for job id strings that cannot be parsed
var InvalidJobID = JobID{Cluster: -1, Proc: -1}

// ParseJobID converts "cluster.proc" or "cluster.proc.sub" into a JobID.
// Anything unparseable yields InvalidJobID.
func ParseJobID(s string) JobID {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return InvalidJobID
	}
	cluster, err := strconv.Atoi(parts[0])
	if err != nil {
		return InvalidJobID
	}
	proc, err := strconv.Atoi(parts[1])
	if err != nil {
		return InvalidJobID
	}
	return JobID{Cluster: cluster, Proc: proc}
}

// Valid reports whether the id is not the invalid sentinel
func (id JobID) Valid() bool {
	return id != InvalidJobID
}

func (id JobID) String() string {
	return strconv.Itoa(id.Cluster) + "." + strconv.Itoa(id.Proc)
}

// JobStatusMap holds the last status seen for each job of one log file,
// keyed by the job id as written in the log ("cluster.proc").
type JobStatusMap map[string]RawStatus

// CountRaw counts jobs per raw status
func (m JobStatusMap) CountRaw() map[RawStatus]int {
	counts := make(map[RawStatus]int)
	for _, s := range m {
		counts[s]++
	}
	return counts
}

// GroupByCategory lists the job ids of each category.
// Categories without jobs are absent from the result.
func (m JobStatusMap) GroupByCategory() map[Category][]string {
	out := make(map[Category][]string)
	for id, s := range m {
		c := Classify(s)
		out[c] = append(out[c], id)
	}
	return out
}

// CountByCategory counts jobs per category.
// Categories without jobs are absent from the result.
func (m JobStatusMap) CountByCategory() map[Category]int {
	out := make(map[Category]int)
	for s, n := range m.CountRaw() {
		out[Classify(s)] += n
	}
	return out
}
