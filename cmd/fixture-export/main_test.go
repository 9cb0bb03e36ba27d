package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/cluster"
	"github.com/danielpatrickdp/benchcluster/internal/replay"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

func TestExport_LatestRunReplays(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")

	st, err := store.NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	pools := bench.TargetPool{
		"T1": {bench.NewCandidate("a", 1e6, 90), bench.NewCandidate("b", 1e6, 80), bench.NewCandidate("c", 1e6, 70)},
		"T2": {bench.NewCandidate("c", 1e6, 60), bench.Unmeasured("u", 50)},
	}
	cfg := cluster.Config{Budget: 2e-6, MaxStalledRounds: 4}
	run, err := st.CreateRun(store.RunRecord{Mode: bench.ModeDedup, Budget: cfg.Budget, MaxStalledRounds: cfg.MaxStalledRounds})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.SavePool(run.RunID, pools); err != nil {
		t.Fatalf("SavePool: %v", err)
	}
	eng, err := cluster.NewEngine(cfg)
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
	st.Close()

	out := filepath.Join(dir, "fixture.json")
	var buf bytes.Buffer
	if err := export(&buf, dbPath, "", out, "exported"); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := replay.LoadFixture(out)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if f.Description != "exported" {
		t.Errorf("description = %q", f.Description)
	}
	r, err := replay.Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !r.Passed() {
		t.Fatalf("exported fixture did not replay: %+v", r.Mismatches)
	}
}

func TestExport_EmptyDB(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := export(&buf, filepath.Join(dir, "runs.db"), "", filepath.Join(dir, "f.json"), ""); err == nil {
		t.Fatal("expected error for empty database")
	}
}
