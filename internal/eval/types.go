package eval

import "github.com/danielpatrickdp/benchcluster/internal/bench"

// #region eval-config
// EvalConfig holds the limits a clustering output is checked against.
type EvalConfig struct {
	Budget         float64 // max summed runtime of a multi-member cluster
	MinClusterSize int     // dedup clusters below this size fail
}

// #endregion eval-config

// #region run-output
// RunOutput is what a clustering run produced from its input pools.
type RunOutput struct {
	Pools     bench.TargetPool
	Clusters  bench.Assignment
	Remaining []string // dedup only: names never assigned
}

// #endregion run-output

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-run validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
