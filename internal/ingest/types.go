package ingest

import "fmt"

// #region malformed
// Malformed describes an input row that was skipped.
type Malformed struct {
	Line   int
	Text   string
	Reason string
}

func (m Malformed) String() string {
	return fmt.Sprintf("line %d: %s: %q", m.Line, m.Reason, m.Text)
}

// #endregion malformed

// #region stats
// Stats summarizes one ingestion pass.
type Stats struct {
	Targets    int
	Records    int
	Unmeasured int
	Skipped    []Malformed
}

// #endregion stats
