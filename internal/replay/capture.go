package replay

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/config"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

// #region capture
// FromRun rebuilds a fixture from a stored dedup run: its input pool, engine
// parameters and persisted output. Packed groups are not stored, so
// Expected.Packed stays nil.
func FromRun(st *store.Store, runID string) (*Fixture, error) {
	run, err := st.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Mode != bench.ModeDedup {
		return nil, fmt.Errorf("run %s: mode %q has no replayable ledger", runID, run.Mode)
	}

	cfg := FixtureConfig{Budget: run.Budget, MaxStalledRounds: run.MaxStalledRounds}
	if run.ConfigJSON != "" {
		var cc config.ClusteringConfig
		if err := json.Unmarshal([]byte(run.ConfigJSON), &cc); err != nil {
			return nil, fmt.Errorf("run %s: parse config: %w", runID, err)
		}
		cfg.MinClusterSize = cc.MinClusterSize
		cfg.Parallelism = cc.Parallelism
	}

	pool, err := st.LoadPool(runID)
	if err != nil {
		return nil, err
	}
	clusters, err := st.LoadClusters(runID)
	if err != nil {
		return nil, err
	}

	f := &Fixture{
		Description: fmt.Sprintf("run %s (%s)", runID, run.CreatedAt.Format("2006-01-02T15:04:05Z")),
		Config:      cfg,
		Pools:       fixturePools(pool),
		Expected: FixtureExpected{
			Clusters:   assignmentNames(clusters),
			Remaining:  run.Remaining,
			StopReason: run.StopReason,
			Rounds:     run.Rounds,
		},
	}
	return f, nil
}

// #endregion capture
