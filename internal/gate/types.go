package gate

// #region veto-type
// VetoType enumerates the reasons a closed group is discarded.
type VetoType string

const (
	VetoTooSmall   VetoType = "too_small"
	VetoOverBudget VetoType = "over_budget"
	VetoDuplicate  VetoType = "duplicate_member"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds the acceptance thresholds for a closed group.
type GateConfig struct {
	Budget         float64 // max summed runtime cost of a group
	MinClusterSize int     // groups smaller than this carry no batching benefit
}

// DefaultMinClusterSize is the smallest group worth batching.
const DefaultMinClusterSize = 2

// DefaultGateConfig returns the gate for the given budget with the standard
// minimum cluster size.
func DefaultGateConfig(budget float64) GateConfig {
	return GateConfig{
		Budget:         budget,
		MinClusterSize: DefaultMinClusterSize,
	}
}

// #endregion gate-config

// #region gate-decision
const (
	ActionAccept  = "accept"
	ActionDiscard = "discard"
)

// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "accept" | "discard"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	Size        int
	Runtime     float64
	MeanOverlap float64 // informational, for logging
}

// Accepted reports whether the group was accepted.
func (d GateDecision) Accepted() bool {
	return d.Action == ActionAccept
}

// #endregion gate-decision
