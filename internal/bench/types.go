package bench

import (
	"math"
	"sort"
)

// #region constants
// UnmeasuredRuntimeCost is the runtime cost assigned to a candidate with no
// measured throughput. Any realistic budget excludes it.
const UnmeasuredRuntimeCost = 199999.0

// #endregion constants

// #region candidate
// Candidate is one (target, candidate) pairing observed by the overlap provider.
type Candidate struct {
	Name         string  `json:"name"`
	Throughput   float64 `json:"throughput"`
	Measured     bool    `json:"measured"`
	RuntimeCost  float64 `json:"runtime_cost"`
	OverlapScore float64 `json:"overlap_score"` // 0-100
}

// NewCandidate builds a measured candidate whose runtime cost is the
// reciprocal of its throughput. A throughput that is not a positive finite
// number is treated as unmeasured.
func NewCandidate(name string, throughput, score float64) Candidate {
	if !(throughput > 0) || math.IsInf(throughput, 1) {
		return Unmeasured(name, score)
	}
	return Candidate{
		Name:         name,
		Throughput:   throughput,
		Measured:     true,
		RuntimeCost:  1 / throughput,
		OverlapScore: score,
	}
}

// Unmeasured builds a candidate carrying the sentinel runtime cost.
func Unmeasured(name string, score float64) Candidate {
	return Candidate{
		Name:         name,
		RuntimeCost:  UnmeasuredRuntimeCost,
		OverlapScore: score,
	}
}

// #endregion candidate

// #region target-pool
// TargetPool maps a target benchmark name to the candidates scored against it.
type TargetPool map[string][]Candidate

// Targets returns the target names in sorted order.
func (p TargetPool) Targets() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CandidateNames returns every distinct candidate name across all targets, sorted.
func (p TargetPool) CandidateNames() []string {
	seen := make(map[string]struct{})
	for _, cands := range p {
		for _, c := range cands {
			seen[c.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the first record seen for a candidate name, scanning targets
// in sorted order.
func (p TargetPool) Lookup(name string) (Candidate, bool) {
	for _, t := range p.Targets() {
		for _, c := range p[t] {
			if c.Name == name {
				return c, true
			}
		}
	}
	return Candidate{}, false
}

// #endregion target-pool

// #region ranking
// SortByScore returns a copy of cands ordered by overlap score, highest first.
// Equal scores keep their input order.
func SortByScore(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverlapScore > out[j].OverlapScore
	})
	return out
}

// #endregion ranking

// #region cluster
// Cluster is a finalized batch of candidates assigned together to one target.
type Cluster []Candidate

// Runtime returns the summed runtime cost of the members.
func (c Cluster) Runtime() float64 {
	var sum float64
	for _, m := range c {
		sum += m.RuntimeCost
	}
	return sum
}

// Names returns member names in cluster order.
func (c Cluster) Names() []string {
	names := make([]string, len(c))
	for i, m := range c {
		names[i] = m.Name
	}
	return names
}

// Assignment maps a target name to the clusters produced for it.
type Assignment map[string][]Cluster

// Targets returns the target names in sorted order.
func (a Assignment) Targets() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClusterCount returns the number of clusters across all targets.
func (a Assignment) ClusterCount() int {
	n := 0
	for _, cs := range a {
		n += len(cs)
	}
	return n
}

// #endregion cluster

// #region mode
// Mode names the clustering strategy that produced an assignment.
type Mode string

const (
	// ModePack packs every target independently; names may repeat across targets.
	ModePack Mode = "pack"
	// ModeDedup runs the deduplicating engine; each name appears at most once.
	ModeDedup Mode = "dedup"
)

// #endregion mode
