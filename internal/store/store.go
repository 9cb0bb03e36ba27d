package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// timeFormat has a fixed width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id             TEXT PRIMARY KEY,
	mode               TEXT NOT NULL,
	budget             REAL NOT NULL,
	max_stalled_rounds INTEGER NOT NULL,
	stop_reason        TEXT,
	rounds             INTEGER NOT NULL DEFAULT 0,
	remaining_json     TEXT,
	config_json        TEXT,
	created_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_candidates (
	run_id        TEXT NOT NULL,
	target        TEXT NOT NULL,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	throughput    REAL NOT NULL,
	measured      INTEGER NOT NULL,
	runtime_cost  REAL NOT NULL,
	overlap_score REAL NOT NULL,
	PRIMARY KEY (run_id, target, position),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS clusters (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   TEXT NOT NULL,
	target   TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	runtime  REAL NOT NULL,
	UNIQUE (run_id, target, seq),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS cluster_members (
	cluster_id    INTEGER NOT NULL,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	throughput    REAL NOT NULL,
	measured      INTEGER NOT NULL,
	runtime_cost  REAL NOT NULL,
	overlap_score REAL NOT NULL,
	PRIMARY KEY (cluster_id, position),
	FOREIGN KEY (cluster_id) REFERENCES clusters(id)
);

CREATE TABLE IF NOT EXISTS ledger (
	run_id TEXT NOT NULL,
	name   TEXT NOT NULL,
	PRIMARY KEY (run_id, name),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS round_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	round       INTEGER NOT NULL,
	target      TEXT NOT NULL,
	action      TEXT NOT NULL,
	reason      TEXT,
	eligible    INTEGER NOT NULL,
	members     TEXT,
	runtime     REAL NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store persists clustering runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region create-run
// CreateRun inserts rec with a fresh ID and timestamp and returns the stored record.
func (s *Store) CreateRun(rec RunRecord) (RunRecord, error) {
	rec.RunID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, mode, budget, max_stalled_rounds, config_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, string(rec.Mode), rec.Budget, rec.MaxStalledRounds,
		nullIfEmpty(rec.ConfigJSON), rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// #endregion create-run

// #region save-pool
// SavePool stores the input pool of a run.
func (s *Store) SavePool(runID string, pool bench.TargetPool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO run_candidates (run_id, target, position, name, throughput, measured, runtime_cost, overlap_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare candidate insert: %w", err)
	}
	defer stmt.Close()

	for _, target := range pool.Targets() {
		for i, c := range pool[target] {
			if _, err := stmt.Exec(runID, target, i, c.Name, c.Throughput, c.Measured, c.RuntimeCost, c.OverlapScore); err != nil {
				return fmt.Errorf("insert candidate %s/%s: %w", target, c.Name, err)
			}
		}
	}
	return tx.Commit()
}

// #endregion save-pool

// #region save-result
// SaveResult stores the clusters of a finished run and completes its run row.
// Dedup runs also fill the ledger, whose primary key rejects a name used twice.
func (s *Store) SaveResult(runID string, res RunResult) error {
	run, err := s.GetRun(runID)
	if err != nil {
		return err
	}
	remainingJSON, err := json.Marshal(res.Remaining)
	if err != nil {
		return fmt.Errorf("marshal remaining: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, target := range res.Clusters.Targets() {
		for seq, c := range res.Clusters[target] {
			r, err := tx.Exec(
				`INSERT INTO clusters (run_id, target, seq, runtime) VALUES (?, ?, ?, ?)`,
				runID, target, seq, c.Runtime(),
			)
			if err != nil {
				return fmt.Errorf("insert cluster %s/%d: %w", target, seq, err)
			}
			clusterID, err := r.LastInsertId()
			if err != nil {
				return fmt.Errorf("cluster id: %w", err)
			}
			for pos, m := range c {
				_, err := tx.Exec(
					`INSERT INTO cluster_members (cluster_id, position, name, throughput, measured, runtime_cost, overlap_score)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					clusterID, pos, m.Name, m.Throughput, m.Measured, m.RuntimeCost, m.OverlapScore,
				)
				if err != nil {
					return fmt.Errorf("insert member %s: %w", m.Name, err)
				}
				if run.Mode != bench.ModeDedup {
					continue
				}
				if _, err := tx.Exec(`INSERT INTO ledger (run_id, name) VALUES (?, ?)`, runID, m.Name); err != nil {
					return fmt.Errorf("ledger %s: %w", m.Name, err)
				}
			}
		}
	}

	_, err = tx.Exec(
		`UPDATE runs SET stop_reason = ?, rounds = ?, remaining_json = ? WHERE run_id = ?`,
		nullIfEmpty(res.StopReason), res.Rounds, string(remainingJSON), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return tx.Commit()
}

// #endregion save-result

// #region get-run
const runColumns = `r.run_id, r.mode, r.budget, r.max_stalled_rounds, r.stop_reason, r.rounds,
	r.remaining_json, r.config_json, r.created_at,
	(SELECT COUNT(*) FROM clusters c WHERE c.run_id = r.run_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var mode, createdStr string
	var stop, remaining, cfg sql.NullString
	err := row.Scan(&rec.RunID, &mode, &rec.Budget, &rec.MaxStalledRounds, &stop, &rec.Rounds,
		&remaining, &cfg, &createdStr, &rec.Clusters)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Mode = bench.Mode(mode)
	rec.StopReason = stop.String
	rec.ConfigJSON = cfg.String
	if remaining.Valid {
		if err := json.Unmarshal([]byte(remaining.String), &rec.Remaining); err != nil {
			return RunRecord{}, fmt.Errorf("unmarshal remaining: %w", err)
		}
	}
	rec.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	return rec, nil
}

// GetRun retrieves one run.
func (s *Store) GetRun(id string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs r ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion get-run

// #region load
// LoadPool rebuilds the input pool of a run.
func (s *Store) LoadPool(runID string) (bench.TargetPool, error) {
	rows, err := s.db.Query(
		`SELECT target, name, throughput, measured, runtime_cost, overlap_score
		 FROM run_candidates WHERE run_id = ? ORDER BY target, position`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	defer rows.Close()

	pool := make(bench.TargetPool)
	for rows.Next() {
		var target string
		var c bench.Candidate
		if err := rows.Scan(&target, &c.Name, &c.Throughput, &c.Measured, &c.RuntimeCost, &c.OverlapScore); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		pool[target] = append(pool[target], c)
	}
	return pool, rows.Err()
}

// LoadClusters rebuilds the clusters of a run.
func (s *Store) LoadClusters(runID string) (bench.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT c.target, c.seq, m.name, m.throughput, m.measured, m.runtime_cost, m.overlap_score
		 FROM clusters c JOIN cluster_members m ON m.cluster_id = c.id
		 WHERE c.run_id = ? ORDER BY c.target, c.seq, m.position`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load clusters: %w", err)
	}
	defer rows.Close()

	out := make(bench.Assignment)
	for rows.Next() {
		var target string
		var seq int
		var c bench.Candidate
		if err := rows.Scan(&target, &seq, &c.Name, &c.Throughput, &c.Measured, &c.RuntimeCost, &c.OverlapScore); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		for len(out[target]) <= seq {
			out[target] = append(out[target], nil)
		}
		out[target][seq] = append(out[target][seq], c)
	}
	return out, rows.Err()
}

// LedgerNames returns the names consumed by a dedup run, sorted.
func (s *Store) LedgerNames(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM ledger WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// #endregion load

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
