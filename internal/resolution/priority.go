package resolution

import (
	"fmt"

	"github.com/ethicore/arbiter/internal/types"
)

// conflictPenalty scales down the winning framework's confidence to
// reflect that other frameworks disagreed.
const conflictPenalty = 0.9

// PriorityHierarchy defers to the single evaluator with the highest
// framework_weight x confidence product.
type PriorityHierarchy struct {
	weights FrameworkWeights
}

// NewPriorityHierarchy creates the priority-hierarchy strategy.
func NewPriorityHierarchy(weights FrameworkWeights) *PriorityHierarchy {
	return &PriorityHierarchy{weights: weights}
}

// Name returns the method identifier.
func (s *PriorityHierarchy) Name() string { return "priority_hierarchy" }

// Try picks the highest-priority verdict and adopts it with a fixed
// conflict penalty on confidence.
func (s *PriorityHierarchy) Try(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, bool) {
	if len(results) == 0 {
		return types.ResolutionResult{}, false
	}

	best := results[0]
	bestScore := s.weights(best.FrameworkID) * best.Confidence
	for _, r := range results[1:] {
		score := s.weights(r.FrameworkID) * r.Confidence
		if score > bestScore {
			best, bestScore = r, score
		}
	}

	return types.ResolutionResult{
		Approved:         best.Approved,
		Confidence:       types.Clamp01(best.Confidence * conflictPenalty),
		PrimaryFramework: best.FrameworkID,
		Method:           s.Name(),
		Reasoning: fmt.Sprintf("deferred to %s (weighted confidence %.2f)",
			best.FrameworkID, bestScore),
		RemainingConflicts: conflictsExcluding(conflicts, best.FrameworkID),
	}, true
}

// conflictsExcluding filters out conflicts involving the framework the
// chain just deferred to; those are considered settled.
func conflictsExcluding(conflicts []types.Conflict, frameworkID string) []types.Conflict {
	var remaining []types.Conflict
	for _, c := range conflicts {
		if c.FrameworkA == frameworkID || c.FrameworkB == frameworkID {
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining
}
