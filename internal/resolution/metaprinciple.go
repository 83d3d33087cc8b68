package resolution

import (
	"fmt"
	"math"

	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/types"
)

// metaApprovalCutoff is the mean meta-principle score required for
// approval.
const metaApprovalCutoff = 0.6

// MetaPrincipleAggregation scores the proposal against a small fixed
// set of cross-cutting principles that every framework is presumed to
// share, sidestepping the individual verdicts entirely.
type MetaPrincipleAggregation struct {
	principles map[string]evaluation.IndicatorSet
}

// NewMetaPrincipleAggregation creates the strategy with the given
// principle set; nil selects DefaultMetaPrinciples.
func NewMetaPrincipleAggregation(principles map[string]evaluation.IndicatorSet) *MetaPrincipleAggregation {
	if principles == nil {
		principles = DefaultMetaPrinciples()
	}
	return &MetaPrincipleAggregation{principles: principles}
}

// Name returns the method identifier.
func (s *MetaPrincipleAggregation) Name() string { return "meta_principle_aggregation" }

// Try approves iff the mean principle score clears the cutoff.
// Confidence is the normalized distance of the mean from the cutoff.
func (s *MetaPrincipleAggregation) Try(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, bool) {
	if len(s.principles) == 0 {
		return types.ResolutionResult{}, false
	}

	total := 0.0
	bestName, bestScore := "", -1.0
	for name, set := range s.principles {
		score, _ := set.Score(proposal, evalCtx)
		total += score
		if score > bestScore {
			bestName, bestScore = name, score
		}
	}
	mean := total / float64(len(s.principles))
	approved := mean > metaApprovalCutoff

	span := metaApprovalCutoff
	if approved {
		span = 1 - metaApprovalCutoff
	}
	confidence := types.Clamp01(math.Abs(mean-metaApprovalCutoff) / span)

	return types.ResolutionResult{
		Approved:         approved,
		Confidence:       confidence,
		PrimaryFramework: bestName,
		Method:           s.Name(),
		Reasoning:        fmt.Sprintf("mean meta-principle score %.2f across %d principles", mean, len(s.principles)),
	}, true
}

// DefaultMetaPrinciples returns the standard cross-cutting principle
// set used when none is configured.
func DefaultMetaPrinciples() map[string]evaluation.IndicatorSet {
	return map[string]evaluation.IndicatorSet{
		"minimize_harm": {
			Positive: []evaluation.Indicator{
				{Pattern: "protect", Weight: 0.2},
				{Pattern: "safe", Weight: 0.15},
			},
			Negative: []evaluation.Indicator{
				{Pattern: "harm", Weight: 0.4},
				{Pattern: "damage", Weight: 0.3},
				{Pattern: "destroy", Weight: 0.4},
			},
		},
		"respect_autonomy": {
			Positive: []evaluation.Indicator{
				{Pattern: "consent", Weight: 0.25},
				{Pattern: "choice", Weight: 0.2},
			},
			Negative: []evaluation.Indicator{
				{Pattern: "force", Weight: 0.35},
				{Pattern: "coerce", Weight: 0.4},
			},
		},
		"promote_wellbeing": {
			Positive: []evaluation.Indicator{
				{Pattern: "assist", Weight: 0.2},
				{Pattern: "support", Weight: 0.2},
				{Pattern: "improve", Weight: 0.15},
			},
			Negative: []evaluation.Indicator{
				{Pattern: "distress", Weight: 0.35},
				{Pattern: "neglect", Weight: 0.3},
			},
		},
		"ensure_fairness": {
			Positive: []evaluation.Indicator{
				{Pattern: "equal", Weight: 0.2},
				{Pattern: "impartial", Weight: 0.2},
			},
			Negative: []evaluation.Indicator{
				{Pattern: "discriminate", Weight: 0.4},
				{Pattern: "bias", Weight: 0.3},
			},
		},
		"preserve_dignity": {
			Positive: []evaluation.Indicator{
				{Pattern: "respect", Weight: 0.2},
			},
			Negative: []evaluation.Indicator{
				{Pattern: "humiliate", Weight: 0.45},
				{Pattern: "degrade", Weight: 0.4},
			},
		},
	}
}
