package cluster

import (
	"fmt"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/gate"
)

// #region config
// Config holds the deduplicating engine's parameters.
type Config struct {
	Budget           float64 // max summed runtime cost per cluster
	MaxStalledRounds int     // consecutive no-progress rounds before the watchdog stops the run
	MinClusterSize   int     // 0 means gate.DefaultMinClusterSize
	Parallelism      int     // per-target scan workers within a round; <= 1 runs sequentially
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if err := checkBudget(c.Budget); err != nil {
		return err
	}
	if c.MaxStalledRounds < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidStallLimit, c.MaxStalledRounds)
	}
	if c.MinClusterSize < 0 || (c.MinClusterSize > 0 && c.MinClusterSize < gate.DefaultMinClusterSize) {
		return fmt.Errorf("%w: got %d", ErrInvalidMinClusterSize, c.MinClusterSize)
	}
	return nil
}

// #endregion config

// #region stop-reason
// StopReason says why a run ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted" // every candidate was assigned
	StopWatchdog  StopReason = "watchdog"  // no progress for MaxStalledRounds rounds
)

// #endregion stop-reason

// #region decision
// Decision is one target's outcome for one round.
type Decision struct {
	Round    int
	Target   string
	Eligible int // candidates left in the target's pool this round
	Group    bench.Cluster
	Gate     gate.GateDecision
}

// RoundOutcome is what one Step proposes. Accepted groups are disjoint from
// each other and from the ledger the step was given.
type RoundOutcome struct {
	Round     int
	Decisions []Decision
	Accepted  map[string]bench.Cluster
	Remaining int // remaining count once Accepted is applied
}

// #endregion decision

// #region result
// Result is the outcome of a full engine run.
type Result struct {
	Clusters   bench.Assignment
	Remaining  []bench.Candidate // never assigned, sorted by name
	Assigned   []string          // ledger contents, sorted
	Rounds     int
	StopReason StopReason
	// Trail holds every decision except those from stalled rounds, which
	// repeat the previous round exactly.
	Trail []Decision
}

// RemainingNames returns the names of unassigned candidates.
func (r Result) RemainingNames() []string {
	out := make([]string, len(r.Remaining))
	for i, c := range r.Remaining {
		out[i] = c.Name
	}
	return out
}

// #endregion result

// #region observer
// Observer receives engine progress. Calls happen on the driver goroutine.
type Observer interface {
	RoundStarted(round, remaining, stalled int)
	GroupDecided(d Decision)
	Finished(res Result)
}

// #endregion observer
