package resolution

import (
	"fmt"
	"math"

	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/types"
)

// sharedApprovalCutoff is the score the unioned value set must exceed.
const sharedApprovalCutoff = 0.6

// SharedValues scores the proposal once against the union of every
// framework's core-value indicator set: whatever the frameworks
// disagree on, their shared values still gate the action.
type SharedValues struct {
	union func() evaluation.IndicatorSet
}

// NewSharedValues creates the strategy. The union is supplied lazily so
// the chain always sees the evaluator set as currently constructed.
func NewSharedValues(union func() evaluation.IndicatorSet) *SharedValues {
	return &SharedValues{union: union}
}

// Name returns the method identifier.
func (s *SharedValues) Name() string { return "shared_value_preservation" }

// Try approves iff the unioned value score clears the cutoff.
func (s *SharedValues) Try(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, bool) {
	set := s.union()
	if len(set.Positive) == 0 && len(set.Negative) == 0 {
		return types.ResolutionResult{}, false
	}

	score, matched := set.Score(proposal, evalCtx)
	approved := score > sharedApprovalCutoff

	span := sharedApprovalCutoff
	if approved {
		span = 1 - sharedApprovalCutoff
	}
	confidence := types.Clamp01(math.Abs(score-sharedApprovalCutoff) / span)

	return types.ResolutionResult{
		Approved:         approved,
		Confidence:       confidence,
		PrimaryFramework: "shared_values",
		Method:           s.Name(),
		Reasoning:        fmt.Sprintf("shared-value score %.2f (%d indicators fired)", score, len(matched)),
	}, true
}
