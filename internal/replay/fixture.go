package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/cluster"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: input pools,
// engine parameters and the output they are expected to produce.
type Fixture struct {
	Description string                        `json:"description"`
	Config      FixtureConfig                 `json:"config"`
	Pools       map[string][]FixtureCandidate `json:"pools"`
	Expected    FixtureExpected               `json:"expected"`
}

// FixtureConfig mirrors cluster.Config with JSON tags.
type FixtureConfig struct {
	Budget           float64 `json:"budget"`
	MaxStalledRounds int     `json:"max_stalled_rounds"`
	MinClusterSize   int     `json:"min_cluster_size,omitempty"`
	Parallelism      int     `json:"parallelism,omitempty"`
}

// FixtureCandidate is one scored candidate. A zero throughput is unmeasured.
type FixtureCandidate struct {
	Name       string  `json:"name"`
	Throughput float64 `json:"throughput,omitempty"`
	Overlap    float64 `json:"overlap"`
}

// FixtureExpected holds the asserted output. Targets without clusters may be
// left out; Rounds of 0 and a nil Packed are not checked.
type FixtureExpected struct {
	Clusters   map[string][][]string `json:"clusters"`
	Remaining  []string              `json:"remaining"`
	StopReason string                `json:"stop_reason,omitempty"`
	Rounds     int                   `json:"rounds,omitempty"`
	Packed     map[string][][]string `json:"packed,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToPools converts the fixture pools to domain candidates.
func (f *Fixture) ToPools() bench.TargetPool {
	pools := make(bench.TargetPool, len(f.Pools))
	for target, cands := range f.Pools {
		list := make([]bench.Candidate, len(cands))
		for i, c := range cands {
			list[i] = bench.NewCandidate(c.Name, c.Throughput, c.Overlap)
		}
		pools[target] = list
	}
	return pools
}

// ToEngineConfig converts a FixtureConfig to engine parameters.
func (fc FixtureConfig) ToEngineConfig() cluster.Config {
	return cluster.Config{
		Budget:           fc.Budget,
		MaxStalledRounds: fc.MaxStalledRounds,
		MinClusterSize:   fc.MinClusterSize,
		Parallelism:      fc.Parallelism,
	}
}

// #endregion fixture-loader

// #region fixture-builder

// NewFixture captures a run as a fixture whose expectations are the run's
// own output. packed may be nil.
func NewFixture(description string, cfg cluster.Config, pools bench.TargetPool, res cluster.Result, packed bench.Assignment) *Fixture {
	f := &Fixture{
		Description: description,
		Config: FixtureConfig{
			Budget:           cfg.Budget,
			MaxStalledRounds: cfg.MaxStalledRounds,
			MinClusterSize:   cfg.MinClusterSize,
			Parallelism:      cfg.Parallelism,
		},
		Pools: fixturePools(pools),
		Expected: FixtureExpected{
			Clusters:   assignmentNames(res.Clusters),
			Remaining:  res.RemainingNames(),
			StopReason: string(res.StopReason),
			Rounds:     res.Rounds,
		},
	}
	if packed != nil {
		f.Expected.Packed = assignmentNames(packed)
	}
	return f
}

func fixturePools(pools bench.TargetPool) map[string][]FixtureCandidate {
	out := make(map[string][]FixtureCandidate, len(pools))
	for target, cands := range pools {
		list := make([]FixtureCandidate, len(cands))
		for i, c := range cands {
			list[i] = FixtureCandidate{Name: c.Name, Overlap: c.OverlapScore}
			if c.Measured {
				list[i].Throughput = c.Throughput
			}
		}
		out[target] = list
	}
	return out
}

// assignmentNames keeps member names only and drops targets without clusters.
func assignmentNames(a bench.Assignment) map[string][][]string {
	out := make(map[string][][]string, len(a))
	for target, cs := range a {
		if len(cs) == 0 {
			continue
		}
		groups := make([][]string, len(cs))
		for i, c := range cs {
			groups[i] = c.Names()
		}
		out[target] = groups
	}
	return out
}

// #endregion fixture-builder
