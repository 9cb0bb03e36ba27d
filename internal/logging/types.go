package logging

import "time"

// #region round-entry
// RoundEntry is a single row in the round_log table: one target's decision in
// one engine round.
type RoundEntry struct {
	RunID     string
	Round     int
	Target    string
	Action    string // "accept" | "discard"
	Reason    string
	Eligible  int
	Members   []string
	Runtime   float64
	CreatedAt time.Time
}

// #endregion round-entry
