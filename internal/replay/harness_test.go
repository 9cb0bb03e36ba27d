package replay

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/cluster"
	"github.com/danielpatrickdp/benchcluster/internal/config"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

func load(t *testing.T, name string) *Fixture {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return f
}

// 1. Every checked-in fixture replays cleanly.
func TestReplay_Fixtures(t *testing.T) {
	for _, name := range []string{"fairness.json", "watchdog.json"} {
		t.Run(name, func(t *testing.T) {
			r, err := Replay(context.Background(), load(t, name))
			if err != nil {
				t.Fatalf("Replay: %v", err)
			}
			for _, m := range r.Mismatches {
				t.Errorf("%s mismatch (-want +got):\n%s", m.Field, m.Diff)
			}
			if !r.DedupEval.Passed {
				t.Errorf("dedup eval: %s", r.DedupEval.Reason)
			}
			if !r.PackEval.Passed {
				t.Errorf("pack eval: %s", r.PackEval.Reason)
			}
		})
	}
}

// 2. A wrong expectation is reported, not hidden.
func TestReplay_ReportsMismatch(t *testing.T) {
	f := load(t, "fairness.json")
	f.Expected.Clusters["T1"] = [][]string{{"A", "B"}, {"C", "D"}}
	f.Expected.Rounds = 2

	r, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if r.Passed() {
		t.Fatal("expected mismatches")
	}
	if len(r.Mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %+v", r.Mismatches)
	}
	if r.Mismatches[0].Field != "clusters" || r.Mismatches[1].Field != "rounds" {
		t.Errorf("fields = %s, %s", r.Mismatches[0].Field, r.Mismatches[1].Field)
	}
}

// 3. Invalid parameters surface as errors.
func TestReplay_InvalidConfig(t *testing.T) {
	f := load(t, "fairness.json")
	f.Config.Budget = 0
	if _, err := Replay(context.Background(), f); err == nil {
		t.Fatal("expected error for zero budget")
	}
}

// 4. A fixture captured from a run replays to the same output.
func TestNewFixture_RoundTrip(t *testing.T) {
	pools := bench.TargetPool{
		"T1": {bench.NewCandidate("a", 1e6, 50), bench.NewCandidate("b", 2e6, 40), bench.Unmeasured("u", 30)},
		"T2": {bench.NewCandidate("b", 2e6, 90), bench.NewCandidate("c", 1e6, 10)},
	}
	cfg := cluster.Config{Budget: 3e-6, MaxStalledRounds: 2}
	eng, err := cluster.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.Run(context.Background(), pools)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	packed, _ := cluster.PackAll(pools, cfg.Budget)

	path := filepath.Join(t.TempDir(), "captured.json")
	if err := WriteFixture(path, NewFixture("captured", cfg, pools, res, packed)); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if got := f.ToPools()["T1"][2]; got.Measured || got.RuntimeCost != bench.UnmeasuredRuntimeCost {
		t.Errorf("unmeasured candidate lost: %+v", got)
	}

	r, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !r.Passed() {
		t.Fatalf("captured fixture did not replay: %+v", r.Mismatches)
	}
}

// 5. Summaries count passes and failures.
func TestSummarize(t *testing.T) {
	ok, err := Replay(context.Background(), load(t, "watchdog.json"))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	bad := ok
	bad.Mismatches = []Mismatch{{Field: "rounds", Diff: "x"}}

	s := Summarize([]ReplayResult{ok, bad})
	if s.Fixtures != 2 || s.Passed != 1 || s.Failed != 1 || s.Mismatches != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.Clusters != 2 || s.Remaining != 4 {
		t.Errorf("clusters=%d remaining=%d", s.Clusters, s.Remaining)
	}
}

func TestLoadFixture_Missing(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error")
	}
}

// 6. A stored run is rebuilt into a fixture that replays cleanly.
func TestFromRun_ReplaysStoredRun(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	pools := load(t, "fairness.json").ToPools()
	cfg := config.ClusteringConfig{Budget: 5e-6, MaxStalledRounds: 3, MinClusterSize: 2, Parallelism: 2}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	run, err := st.CreateRun(store.RunRecord{
		Mode:             bench.ModeDedup,
		Budget:           cfg.Budget,
		MaxStalledRounds: cfg.MaxStalledRounds,
		ConfigJSON:       string(cfgJSON),
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.SavePool(run.RunID, pools); err != nil {
		t.Fatalf("SavePool: %v", err)
	}
	eng, err := cluster.NewEngine(cfg.Engine())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.Run(context.Background(), pools)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := st.SaveResult(run.RunID, store.RunResult{
		Clusters:   res.Clusters,
		Remaining:  res.RemainingNames(),
		StopReason: string(res.StopReason),
		Rounds:     res.Rounds,
	}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	f, err := FromRun(st, run.RunID)
	if err != nil {
		t.Fatalf("FromRun: %v", err)
	}
	if f.Config.Parallelism != 2 || f.Config.MinClusterSize != 2 {
		t.Errorf("config not restored: %+v", f.Config)
	}
	r, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, m := range r.Mismatches {
		t.Errorf("%s mismatch (-want +got):\n%s", m.Field, m.Diff)
	}
}

func TestFromRun_UnknownRun(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()
	if _, err := FromRun(st, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
