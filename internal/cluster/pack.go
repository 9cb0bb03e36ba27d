package cluster

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

// #region errors
var (
	// ErrInvalidBudget is returned when the runtime budget is not positive.
	ErrInvalidBudget = errors.New("cluster: budget must be positive")
	// ErrInvalidStallLimit is returned when the watchdog limit is below one round.
	ErrInvalidStallLimit = errors.New("cluster: max stalled rounds must be at least 1")
	// ErrInvalidMinClusterSize is returned for a minimum group size that would
	// let singletons through.
	ErrInvalidMinClusterSize = errors.New("cluster: min cluster size must be 0 (default) or at least 2")
)

func checkBudget(budget float64) error {
	// !(x > 0) also rejects NaN.
	if !(budget > 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidBudget, budget)
	}
	return nil
}

// #endregion errors

// #region pack
// Pack partitions one target's candidates into runtime-budgeted groups with a
// single greedy sweep in descending overlap order. Every candidate lands in
// exactly one group; a candidate costing more than the budget on its own
// becomes a singleton group.
func Pack(cands []bench.Candidate, budget float64) ([]bench.Cluster, error) {
	if err := checkBudget(budget); err != nil {
		return nil, err
	}

	var groups []bench.Cluster
	var current bench.Cluster
	var runtime float64

	for _, c := range bench.SortByScore(cands) {
		if runtime+c.RuntimeCost <= budget {
			current = append(current, c)
			runtime += c.RuntimeCost
			continue
		}
		if len(current) > 0 {
			groups = append(groups, current)
		}
		current = bench.Cluster{c}
		runtime = c.RuntimeCost
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, nil
}

// PackAll runs Pack independently for every target. Candidates may appear
// under several targets.
func PackAll(pools bench.TargetPool, budget float64) (bench.Assignment, error) {
	if err := checkBudget(budget); err != nil {
		return nil, err
	}
	out := make(bench.Assignment, len(pools))
	for _, target := range pools.Targets() {
		groups, err := Pack(pools[target], budget)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", target, err)
		}
		if groups == nil {
			groups = []bench.Cluster{}
		}
		out[target] = groups
	}
	return out, nil
}

// #endregion pack
