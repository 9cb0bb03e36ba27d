package bench

import (
	"fmt"
	"sort"
)

// #region ledger
// Ledger records candidate names already placed into some cluster.
// A name enters at most once.
type Ledger struct {
	names map[string]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{names: make(map[string]struct{})}
}

// Has reports whether name has been consumed.
func (l *Ledger) Has(name string) bool {
	_, ok := l.names[name]
	return ok
}

// Len returns the number of consumed names.
func (l *Ledger) Len() int {
	return len(l.names)
}

// Add consumes every member of c. It fails without changing the ledger if any
// member is already present or repeated within c.
func (l *Ledger) Add(c Cluster) error {
	batch := make(map[string]struct{}, len(c))
	for _, m := range c {
		if l.Has(m.Name) {
			return fmt.Errorf("ledger: %s already assigned", m.Name)
		}
		if _, dup := batch[m.Name]; dup {
			return fmt.Errorf("ledger: %s repeated in cluster", m.Name)
		}
		batch[m.Name] = struct{}{}
	}
	for name := range batch {
		l.names[name] = struct{}{}
	}
	return nil
}

// Clone returns an independent copy, used as a read-only round snapshot.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{names: make(map[string]struct{}, len(l.names))}
	for name := range l.names {
		c.names[name] = struct{}{}
	}
	return c
}

// Names returns consumed names in sorted order.
func (l *Ledger) Names() []string {
	out := make([]string, 0, len(l.names))
	for name := range l.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// #endregion ledger
