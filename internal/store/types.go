package store

import (
	"time"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

// #region run-record
// RunRecord is one clustering run.
type RunRecord struct {
	RunID            string
	Mode             bench.Mode
	Budget           float64
	MaxStalledRounds int
	StopReason       string
	Rounds           int
	Clusters         int
	Remaining        []string
	ConfigJSON       string
	CreatedAt        time.Time
}

// #endregion run-record

// #region run-result
// RunResult is what SaveResult persists once a run finishes.
type RunResult struct {
	Clusters   bench.Assignment
	Remaining  []string
	StopReason string
	Rounds     int
}

// #endregion run-result
