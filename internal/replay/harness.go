package replay

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/cluster"
	"github.com/danielpatrickdp/benchcluster/internal/eval"
)

// #region types
// Mismatch is one expectation the replay did not meet.
type Mismatch struct {
	Field string
	Diff  string
}

// ReplayResult captures the outcome of replaying one fixture.
type ReplayResult struct {
	Description string
	Result      cluster.Result
	Packed      bench.Assignment
	DedupEval   eval.EvalResult
	PackEval    eval.EvalResult
	Mismatches  []Mismatch
}

// Passed reports whether every expectation and invariant held.
func (r ReplayResult) Passed() bool {
	return len(r.Mismatches) == 0 && r.DedupEval.Passed && r.PackEval.Passed
}

// ReplaySummary provides aggregate stats over replayed fixtures.
type ReplaySummary struct {
	Fixtures   int
	Passed     int
	Failed     int
	Mismatches int
	Clusters   int
	Remaining  int
}

// #endregion types

// #region replay
// Replay runs the deduplicating engine and the packer over the fixture's
// pools, validates both outputs and compares them with the expectations.
func Replay(ctx context.Context, f *Fixture) (ReplayResult, error) {
	pools := f.ToPools()
	cfg := f.Config.ToEngineConfig()

	eng, err := cluster.NewEngine(cfg)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %q: %w", f.Description, err)
	}
	res, err := eng.Run(ctx, pools)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %q: %w", f.Description, err)
	}
	packed, err := cluster.PackAll(pools, cfg.Budget)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %q: %w", f.Description, err)
	}

	h := eval.NewEvalHarness(eval.EvalConfig{Budget: cfg.Budget, MinClusterSize: eng.Config().MinClusterSize})
	out := ReplayResult{
		Description: f.Description,
		Result:      res,
		Packed:      packed,
		DedupEval:   h.Run(eval.RunOutput{Pools: pools, Clusters: res.Clusters, Remaining: res.RemainingNames()}, bench.ModeDedup),
		PackEval:    h.Run(eval.RunOutput{Pools: pools, Clusters: packed}, bench.ModePack),
	}

	exp := f.Expected
	out.compare("clusters", exp.Clusters, assignmentNames(res.Clusters))
	out.compare("remaining", exp.Remaining, res.RemainingNames())
	if exp.StopReason != "" {
		out.compare("stop_reason", exp.StopReason, string(res.StopReason))
	}
	if exp.Rounds > 0 {
		out.compare("rounds", exp.Rounds, res.Rounds)
	}
	if exp.Packed != nil {
		out.compare("packed", exp.Packed, assignmentNames(packed))
	}
	return out, nil
}

func (r *ReplayResult) compare(field string, want, got any) {
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		r.Mismatches = append(r.Mismatches, Mismatch{Field: field, Diff: diff})
	}
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{Fixtures: len(results)}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
		s.Mismatches += len(r.Mismatches)
		s.Clusters += r.Result.Clusters.ClusterCount()
		s.Remaining += len(r.Result.Remaining)
	}
	return s
}

// #endregion replay
