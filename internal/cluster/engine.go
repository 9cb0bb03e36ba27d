package cluster

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
	"github.com/danielpatrickdp/benchcluster/internal/gate"
)

// #region engine
// Engine packs candidates into clusters so that no candidate is used by more
// than one target. Each round gives every target one attempt at its best
// remaining group.
type Engine struct {
	cfg       Config
	gate      *gate.Gate
	observers []Observer
}

// NewEngine validates cfg and builds an engine.
func NewEngine(cfg Config, observers ...Observer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinClusterSize == 0 {
		cfg.MinClusterSize = gate.DefaultMinClusterSize
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Engine{
		cfg:       cfg,
		gate:      gate.NewGate(gate.GateConfig{Budget: cfg.Budget, MinClusterSize: cfg.MinClusterSize}),
		observers: observers,
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// #endregion engine

// #region run
// Run drives rounds until every candidate is assigned or the watchdog trips.
// Run is the only writer of the ledger.
func (e *Engine) Run(ctx context.Context, pools bench.TargetPool) (Result, error) {
	logger := ctxlog.FromContext(ctx)
	targets := pools.Targets()
	records := firstRecords(pools, targets)
	total := len(records)
	ledger := bench.NewLedger()

	res := Result{Clusters: make(bench.Assignment, len(targets))}
	for _, t := range targets {
		res.Clusters[t] = []bench.Cluster{}
	}

	prev, stalled := -1, 0
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("cluster run: %w", err)
		}

		remaining := total - ledger.Len()
		if remaining == 0 {
			res.StopReason = StopExhausted
			break
		}
		if remaining == prev {
			stalled++
		} else {
			stalled = 0
		}
		prev = remaining
		if stalled >= e.cfg.MaxStalledRounds {
			res.StopReason = StopWatchdog
			break
		}

		res.Rounds++
		for _, o := range e.observers {
			o.RoundStarted(res.Rounds, remaining, stalled)
		}

		out, err := e.Step(ctx, res.Rounds, pools, targets, ledger)
		if err != nil {
			return Result{}, err
		}

		for _, d := range out.Decisions {
			for _, o := range e.observers {
				o.GroupDecided(d)
			}
			if stalled == 0 {
				res.Trail = append(res.Trail, d)
			}
		}
		for _, t := range targets {
			c, ok := out.Accepted[t]
			if !ok {
				continue
			}
			if err := ledger.Add(c); err != nil {
				return Result{}, fmt.Errorf("round %d target %s: %w", res.Rounds, t, err)
			}
			res.Clusters[t] = append(res.Clusters[t], c)
		}

		logger.Debug("round complete",
			"round", res.Rounds,
			"accepted", len(out.Accepted),
			"remaining", out.Remaining,
			"stalled", stalled)
	}

	res.Assigned = ledger.Names()
	for _, name := range sortedKeys(records) {
		if !ledger.Has(name) {
			res.Remaining = append(res.Remaining, records[name])
		}
	}

	logger.Info("clustering finished",
		"stop_reason", string(res.StopReason),
		"rounds", res.Rounds,
		"clusters", res.Clusters.ClusterCount(),
		"assigned", len(res.Assigned),
		"remaining", len(res.Remaining))

	for _, o := range e.observers {
		o.Finished(res)
	}
	return res, nil
}

// #endregion run

// #region step
// Step computes one round against ledger without modifying it. Targets are
// scanned in parallel on the same ledger state; a target whose pool contains
// a name claimed earlier in the round (in target order) is rescanned, so the
// outcome matches a sequential pass over targets.
func (e *Engine) Step(ctx context.Context, round int, pools bench.TargetPool, targets []string, ledger *bench.Ledger) (RoundOutcome, error) {
	decisions := make([]*Decision, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decisions[i] = e.decide(round, t, pools[t], ledger.Has)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RoundOutcome{}, fmt.Errorf("round %d: %w", round, err)
	}

	claimed := make(map[string]struct{})
	consumed := func(name string) bool {
		if ledger.Has(name) {
			return true
		}
		_, ok := claimed[name]
		return ok
	}

	out := RoundOutcome{Round: round, Accepted: make(map[string]bench.Cluster)}
	for i, t := range targets {
		d := decisions[i]
		if touches(pools[t], claimed) {
			d = e.decide(round, t, pools[t], consumed)
		}
		if d == nil {
			continue
		}
		out.Decisions = append(out.Decisions, *d)
		if d.Gate.Accepted() {
			out.Accepted[t] = d.Group
			for _, c := range d.Group {
				claimed[c.Name] = struct{}{}
			}
		}
	}

	out.Remaining = len(firstRecords(pools, targets)) - ledger.Len() - len(claimed)
	return out, nil
}

// decide builds the target's single group for this round: candidates in
// descending overlap order until the next one would overflow the budget or
// the pool runs out. Returns nil when the target has nothing eligible.
func (e *Engine) decide(round int, target string, pool []bench.Candidate, consumed func(string) bool) *Decision {
	eligible := make([]bench.Candidate, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, c := range pool {
		if consumed(c.Name) || !(c.RuntimeCost <= e.cfg.Budget) {
			continue
		}
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil
	}

	var group bench.Cluster
	var runtime float64
	for _, c := range bench.SortByScore(eligible) {
		if !(runtime+c.RuntimeCost <= e.cfg.Budget) {
			// One group per target per round, accepted or not.
			break
		}
		group = append(group, c)
		runtime += c.RuntimeCost
	}

	return &Decision{
		Round:    round,
		Target:   target,
		Eligible: len(eligible),
		Group:    group,
		Gate:     e.gate.Evaluate(group),
	}
}

// #endregion step

// #region helpers
func touches(pool []bench.Candidate, claimed map[string]struct{}) bool {
	if len(claimed) == 0 {
		return false
	}
	for _, c := range pool {
		if _, ok := claimed[c.Name]; ok {
			return true
		}
	}
	return false
}

// firstRecords maps each distinct candidate name to the record seen first
// when walking targets in order.
func firstRecords(pools bench.TargetPool, targets []string) map[string]bench.Candidate {
	out := make(map[string]bench.Candidate)
	for _, t := range targets {
		for _, c := range pools[t] {
			if _, ok := out[c.Name]; !ok {
				out[c.Name] = c
			}
		}
	}
	return out
}

func sortedKeys(m map[string]bench.Candidate) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RemainingPools restricts pools to the candidates res left unassigned.
func RemainingPools(pools bench.TargetPool, res Result) bench.TargetPool {
	left := make(map[string]struct{}, len(res.Remaining))
	for _, c := range res.Remaining {
		left[c.Name] = struct{}{}
	}
	out := make(bench.TargetPool, len(pools))
	for t, cands := range pools {
		var kept []bench.Candidate
		for _, c := range cands {
			if _, ok := left[c.Name]; ok {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			out[t] = kept
		}
	}
	return out
}

// #endregion helpers
