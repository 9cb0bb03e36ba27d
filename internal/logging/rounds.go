package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/benchcluster/internal/cluster"
)

const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-round
// LogRound writes a decision to the round_log table.
func LogRound(db *sql.DB, entry RoundEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	members, err := json.Marshal(entry.Members)
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO round_log (run_id, round, target, action, reason, eligible, members, runtime, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Round,
		entry.Target,
		entry.Action,
		nullIfEmpty(entry.Reason),
		entry.Eligible,
		string(members),
		entry.Runtime,
		entry.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("log round: %w", err)
	}
	return nil
}

// FromDecision converts an engine decision into a log row.
func FromDecision(runID string, d cluster.Decision) RoundEntry {
	return RoundEntry{
		RunID:    runID,
		Round:    d.Round,
		Target:   d.Target,
		Action:   d.Gate.Action,
		Reason:   d.Gate.Reason,
		Eligible: d.Eligible,
		Members:  d.Group.Names(),
		Runtime:  d.Group.Runtime(),
	}
}

// #endregion log-round

// #region read-rounds
// ReadRounds returns the logged decisions of a run in insertion order.
func ReadRounds(db *sql.DB, runID string) ([]RoundEntry, error) {
	rows, err := db.Query(
		`SELECT round, target, action, reason, eligible, members, runtime, created_at
		 FROM round_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("read rounds: %w", err)
	}
	defer rows.Close()

	var out []RoundEntry
	for rows.Next() {
		e := RoundEntry{RunID: runID}
		var reason, members sql.NullString
		var created string
		if err := rows.Scan(&e.Round, &e.Target, &e.Action, &reason, &e.Eligible, &members, &e.Runtime, &created); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		e.Reason = reason.String
		if members.Valid {
			if err := json.Unmarshal([]byte(members.String), &e.Members); err != nil {
				return nil, fmt.Errorf("unmarshal members: %w", err)
			}
		}
		e.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion read-rounds

// #region round-logger
// RoundLogger is a cluster.Observer that writes decisions to round_log.
// Decisions from stalled rounds repeat the previous round and are not written.
// The first write error is kept and later writes are skipped.
type RoundLogger struct {
	db      *sql.DB
	runID   string
	stalled bool
	err     error
}

// NewRoundLogger logs decisions for runID into db.
func NewRoundLogger(db *sql.DB, runID string) *RoundLogger {
	return &RoundLogger{db: db, runID: runID}
}

func (l *RoundLogger) RoundStarted(_, _, stalled int) {
	l.stalled = stalled > 0
}

func (l *RoundLogger) GroupDecided(d cluster.Decision) {
	if l.stalled || l.err != nil {
		return
	}
	l.err = LogRound(l.db, FromDecision(l.runID, d))
}

func (l *RoundLogger) Finished(cluster.Result) {}

// Err returns the first write error.
func (l *RoundLogger) Err() error {
	return l.err
}

// #endregion round-logger

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
