package gate

import (
	"fmt"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

// #region gate
// Gate decides whether a closed group becomes a cluster or is discarded.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	if config.MinClusterSize < 1 {
		config.MinClusterSize = DefaultMinClusterSize
	}
	return &Gate{config: config}
}

// Config returns the thresholds the gate was built with.
func (g *Gate) Config() GateConfig {
	return g.config
}

// Evaluate checks every veto and accepts the group only when none fire.
func (g *Gate) Evaluate(group []bench.Candidate) GateDecision {
	var vetoes []VetoSignal
	runtime := bench.Cluster(group).Runtime()

	// 1. Size: a singleton runs just as well on its own
	if len(group) < g.config.MinClusterSize {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoTooSmall,
			Reason: fmt.Sprintf("group of %d below minimum size %d", len(group), g.config.MinClusterSize),
		})
	}

	// 2. Budget, NaN included
	if !(runtime <= g.config.Budget) {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoOverBudget,
			Reason: fmt.Sprintf("runtime %g exceeds budget %g", runtime, g.config.Budget),
		})
	}

	// 3. Repeated members
	seen := make(map[string]struct{}, len(group))
	for _, c := range group {
		if _, dup := seen[c.Name]; dup {
			vetoes = append(vetoes, VetoSignal{
				Type:   VetoDuplicate,
				Reason: fmt.Sprintf("candidate %s appears twice", c.Name),
			})
			break
		}
		seen[c.Name] = struct{}{}
	}

	mean := meanOverlap(group)
	if len(vetoes) > 0 {
		return GateDecision{
			Action:      ActionDiscard,
			Reason:      fmt.Sprintf("veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			Size:        len(group),
			Runtime:     runtime,
			MeanOverlap: mean,
		}
	}

	return GateDecision{
		Action:      ActionAccept,
		Reason:      fmt.Sprintf("accepted %d members: runtime=%g mean_overlap=%.2f", len(group), runtime, mean),
		Size:        len(group),
		Runtime:     runtime,
		MeanOverlap: mean,
	}
}

// #endregion gate

// #region helpers
func meanOverlap(group []bench.Candidate) float64 {
	if len(group) == 0 {
		return 0
	}
	var sum float64
	for _, c := range group {
		sum += c.OverlapScore
	}
	return sum / float64(len(group))
}

// #endregion helpers
