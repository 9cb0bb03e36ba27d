package logging

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/cluster"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

// #region helpers
func setupDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	run, err := s.CreateRun(store.RunRecord{Mode: bench.ModeDedup, Budget: 1, MaxStalledRounds: 1})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return s.DB(), run.RunID
}

// #endregion helpers

// #region log-round-tests
func TestLogRound_RoundTrip(t *testing.T) {
	db, runID := setupDB(t)
	entry := RoundEntry{
		RunID:     runID,
		Round:     2,
		Target:    "T1",
		Action:    "accept",
		Reason:    "accepted: 2 members",
		Eligible:  3,
		Members:   []string{"a", "b"},
		Runtime:   2e-6,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogRound(db, entry); err != nil {
		t.Fatalf("LogRound: %v", err)
	}

	got, err := ReadRounds(db, runID)
	if err != nil {
		t.Fatalf("ReadRounds: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].Target != "T1" || got[0].Eligible != 3 || len(got[0].Members) != 2 || got[0].Members[1] != "b" {
		t.Errorf("unexpected entry: %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at = %v", got[0].CreatedAt)
	}
}

func TestLogRound_EmptyReasonIsNull(t *testing.T) {
	db, runID := setupDB(t)
	if err := LogRound(db, RoundEntry{RunID: runID, Round: 1, Target: "T", Action: "discard"}); err != nil {
		t.Fatalf("LogRound: %v", err)
	}
	var reason sql.NullString
	var created string
	db.QueryRow("SELECT reason, created_at FROM round_log").Scan(&reason, &created)
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
	if created == "" {
		t.Error("expected created_at to default to now")
	}
}

func TestLogRound_UnknownRun(t *testing.T) {
	db, _ := setupDB(t)
	err := LogRound(db, RoundEntry{RunID: "nope", Round: 1, Target: "T", Action: "accept"})
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
}

func TestLogRound_ClosedDB(t *testing.T) {
	db, runID := setupDB(t)
	db.Close()
	if err := LogRound(db, RoundEntry{RunID: runID, Target: "T", Action: "accept"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-round-tests

// #region round-logger-tests
func TestRoundLogger_SkipsStalledRounds(t *testing.T) {
	db, runID := setupDB(t)
	pools := bench.TargetPool{
		"T1": {
			bench.NewCandidate("a", 1e6, 90),
			bench.NewCandidate("b", 1e6, 80),
			bench.NewCandidate("c", 1e6, 70),
		},
		"T2": {bench.NewCandidate("c", 1e6, 60)},
	}
	rl := NewRoundLogger(db, runID)
	eng, err := cluster.NewEngine(cluster.Config{Budget: 2.5e-6, MaxStalledRounds: 2}, rl)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.Run(context.Background(), pools)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rl.Err() != nil {
		t.Fatalf("logger error: %v", rl.Err())
	}
	if res.Rounds != 3 || res.StopReason != cluster.StopWatchdog {
		t.Fatalf("rounds=%d stop=%s", res.Rounds, res.StopReason)
	}

	rows, err := ReadRounds(db, runID)
	if err != nil {
		t.Fatalf("ReadRounds: %v", err)
	}
	if len(rows) != len(res.Trail) || len(rows) != 4 {
		t.Fatalf("expected 4 rows matching the trail, got %d (trail %d)", len(rows), len(res.Trail))
	}
	if rows[0].Target != "T1" || rows[0].Action != "accept" || rows[0].Members[0] != "a" {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[3].Round != 2 || rows[3].Action != "discard" {
		t.Errorf("last row = %+v", rows[3])
	}
}

// #endregion round-logger-tests
