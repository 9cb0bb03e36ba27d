package eval

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

// #region eval-harness
// EvalHarness validates clustering output after a run.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	if config.MinClusterSize < 1 {
		config.MinClusterSize = 2
	}
	return &EvalHarness{config: config}
}

// Run checks out against the invariants of mode and reports every metric.
// The result fails when any check fails.
func (h *EvalHarness) Run(out RunOutput, mode bench.Mode) EvalResult {
	var checks []check
	switch mode {
	case bench.ModePack:
		checks = []check{
			{"over_budget_groups", h.overBudget},
			{"partition_mismatches", h.partition},
			{"empty_clusters", emptyClusters},
		}
	default:
		checks = []check{
			{"duplicate_members", duplicates},
			{"undersized_clusters", h.undersized},
			{"over_budget_groups", h.overBudget},
			{"foreign_members", foreignMembers},
			{"unaccounted_candidates", unaccounted},
		}
	}

	var metrics []EvalMetric
	var failReasons []string
	for _, c := range checks {
		n, detail := c.fn(out)
		pass := n == 0
		metrics = append(metrics, EvalMetric{Name: c.name, Value: float64(n), Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("%s=%d (%s)", c.name, n, detail))
		}
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}
	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region checks
type check struct {
	name string
	fn   func(RunOutput) (int, string)
}

func duplicates(out RunOutput) (int, string) {
	seen := make(map[string]int)
	for _, cs := range out.Clusters {
		for _, c := range cs {
			for _, m := range c {
				seen[m.Name]++
			}
		}
	}
	var dups []string
	for name, n := range seen {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	return len(dups), firstSorted(dups)
}

func (h *EvalHarness) undersized(out RunOutput) (int, string) {
	n, where := 0, ""
	for _, t := range out.Clusters.Targets() {
		for i, c := range out.Clusters[t] {
			if len(c) < h.config.MinClusterSize {
				if n == 0 {
					where = fmt.Sprintf("%s#%d", t, i+1)
				}
				n++
			}
		}
	}
	return n, where
}

func (h *EvalHarness) overBudget(out RunOutput) (int, string) {
	n, where := 0, ""
	for _, t := range out.Clusters.Targets() {
		for i, c := range out.Clusters[t] {
			if len(c) > 1 && !(c.Runtime() <= h.config.Budget) {
				if n == 0 {
					where = fmt.Sprintf("%s#%d runtime %g", t, i+1, c.Runtime())
				}
				n++
			}
		}
	}
	return n, where
}

func emptyClusters(out RunOutput) (int, string) {
	n, where := 0, ""
	for _, t := range out.Clusters.Targets() {
		for i, c := range out.Clusters[t] {
			if len(c) == 0 {
				if n == 0 {
					where = fmt.Sprintf("%s#%d", t, i+1)
				}
				n++
			}
		}
	}
	return n, where
}

// partition counts targets whose clusters are not exactly their pool.
func (h *EvalHarness) partition(out RunOutput) (int, string) {
	var bad []string
	for _, t := range out.Pools.Targets() {
		want := make(map[string]int)
		for _, c := range out.Pools[t] {
			want[c.Name]++
		}
		for _, c := range out.Clusters[t] {
			for _, m := range c {
				want[m.Name]--
			}
		}
		for _, n := range want {
			if n != 0 {
				bad = append(bad, t)
				break
			}
		}
	}
	for _, t := range out.Clusters.Targets() {
		if _, ok := out.Pools[t]; !ok && len(out.Clusters[t]) > 0 {
			bad = append(bad, t)
		}
	}
	return len(bad), firstSorted(bad)
}

// foreignMembers counts members not scored against the target they serve.
func foreignMembers(out RunOutput) (int, string) {
	var bad []string
	for _, t := range out.Clusters.Targets() {
		pool := make(map[string]struct{}, len(out.Pools[t]))
		for _, c := range out.Pools[t] {
			pool[c.Name] = struct{}{}
		}
		for _, c := range out.Clusters[t] {
			for _, m := range c {
				if _, ok := pool[m.Name]; !ok {
					bad = append(bad, t+"/"+m.Name)
				}
			}
		}
	}
	return len(bad), firstSorted(bad)
}

// unaccounted counts pool names that are neither clustered nor remaining,
// plus names reported both ways.
func unaccounted(out RunOutput) (int, string) {
	state := make(map[string]int)
	for _, name := range out.Pools.CandidateNames() {
		state[name] = 0
	}
	for _, cs := range out.Clusters {
		for _, c := range cs {
			for _, m := range c {
				state[m.Name]++
			}
		}
	}
	for _, name := range out.Remaining {
		state[name]++
	}
	var bad []string
	for name, n := range state {
		if n == 0 {
			bad = append(bad, name)
		}
	}
	for _, name := range out.Remaining {
		if state[name] > 1 {
			bad = append(bad, name)
		}
	}
	return len(bad), firstSorted(bad)
}

func firstSorted(names []string) string {
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// #endregion checks
