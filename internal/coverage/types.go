// Package coverage turns per-benchmark line coverage into overlap scores.
package coverage

import "fmt"

// #region data
// LineSet is a set of covered source line numbers.
type LineSet map[int]struct{}

// Data maps package name to class name to covered lines.
type Data map[string]map[string]LineSet

// Add records covered lines for pkg/class.
func (d Data) Add(pkg, class string, lines ...int) {
	classes, ok := d[pkg]
	if !ok {
		classes = make(map[string]LineSet)
		d[pkg] = classes
	}
	set, ok := classes[class]
	if !ok {
		set = make(LineSet)
		classes[class] = set
	}
	for _, n := range lines {
		set[n] = struct{}{}
	}
}

// Lines returns the total number of covered lines.
func (d Data) Lines() int {
	n := 0
	for _, classes := range d {
		for _, set := range classes {
			n += len(set)
		}
	}
	return n
}

// #endregion data

// #region basis
// Basis selects the denominator of an overlap score.
type Basis string

const (
	// BasisTarget divides common lines by the target's covered lines.
	BasisTarget Basis = "target"
	// BasisCandidate divides common lines by the candidate's covered lines.
	BasisCandidate Basis = "candidate"
)

// ParseBasis validates s.
func ParseBasis(s string) (Basis, error) {
	switch Basis(s) {
	case BasisTarget, BasisCandidate:
		return Basis(s), nil
	}
	return "", fmt.Errorf("unknown overlap basis %q", s)
}

// #endregion basis

// MalformedRecord is a coverage CSV row that could not be used.
type MalformedRecord struct {
	Line   int
	Reason string
}
