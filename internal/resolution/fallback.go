package resolution

import (
	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/types"
)

// fallbackConfidence is the fixed confidence of the terminal strategy.
const fallbackConfidence = 0.6

// Fallback is the chain's termination guarantee: it always produces a
// result. It approves iff no harm indicator matches the proposal.
type Fallback struct {
	harm evaluation.IndicatorSet
}

// NewFallback creates the fallback strategy; an empty harm set selects
// the harm-prevention framework's core values.
func NewFallback(harm evaluation.IndicatorSet) *Fallback {
	if len(harm.Negative) == 0 {
		harm = evaluation.NewHarmPreventionEvaluator().CoreValues()
	}
	return &Fallback{harm: harm}
}

// Name returns the method identifier.
func (s *Fallback) Name() string { return "conservative_fallback" }

// Try never declines. Approval is purely the absence of any harm
// indicator match, at fixed confidence.
func (s *Fallback) Try(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, bool) {
	harmful := s.harm.MatchesAnyNegative(proposal, evalCtx)
	reasoning := "no harm indicators matched; conservatively approved"
	if harmful {
		reasoning = "harm indicator matched; conservatively rejected"
	}
	return types.ResolutionResult{
		Approved:           !harmful,
		Confidence:         fallbackConfidence,
		PrimaryFramework:   "fallback",
		Method:             s.Name(),
		Reasoning:          reasoning,
		RemainingConflicts: conflicts,
	}, true
}
