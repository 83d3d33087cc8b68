// Package resolution reconciles conflicting evaluator verdicts through
// an ordered chain of strategies with a guaranteed-terminating fallback.
package resolution

import (
	"github.com/ethicore/arbiter/internal/types"
)

// DefaultChainThreshold is the confidence a strategy result must exceed
// for the chain to accept it.
const DefaultChainThreshold = 0.7

// Strategy is one reconciliation algorithm. Try returns ok=false when
// the strategy cannot produce a verdict for the given inputs; the chain
// then moves on to the next strategy.
type Strategy interface {
	// Name returns the method identifier recorded on results.
	Name() string

	// Try attempts to reconcile the conflicting verdicts.
	Try(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, bool)
}

// FrameworkWeights resolves a framework ID to its configured weight.
// Unknown frameworks weigh 1.
type FrameworkWeights func(frameworkID string) float64
