package resolution

import (
	"fmt"

	"github.com/ethicore/arbiter/internal/types"
)

// WeightedConsensus aggregates all verdicts into a single
// confidence-and-weight weighted vote.
type WeightedConsensus struct {
	weights FrameworkWeights
}

// NewWeightedConsensus creates the weighted-consensus strategy.
func NewWeightedConsensus(weights FrameworkWeights) *WeightedConsensus {
	return &WeightedConsensus{weights: weights}
}

// Name returns the method identifier.
func (s *WeightedConsensus) Name() string { return "weighted_consensus" }

// Try computes consensus = sum(w*c*approved) / sum(w*c) and approves
// when it exceeds 0.5. Confidence is the mean verdict confidence scaled
// down by the conflict count.
func (s *WeightedConsensus) Try(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, bool) {
	if len(results) == 0 {
		return types.ResolutionResult{}, false
	}

	var num, den, confSum float64
	for _, r := range results {
		wc := s.weights(r.FrameworkID) * r.Confidence
		den += wc
		if r.Approved {
			num += wc
		}
		confSum += r.Confidence
	}
	if den == 0 {
		return types.ResolutionResult{}, false
	}

	consensus := num / den
	scale := 1 - 0.1*float64(len(conflicts))
	if scale < 0 {
		scale = 0
	}
	confidence := types.Clamp01(confSum / float64(len(results)) * scale)

	return types.ResolutionResult{
		Approved:         consensus > 0.5,
		Confidence:       confidence,
		PrimaryFramework: "consensus",
		Method:           s.Name(),
		Reasoning:        fmt.Sprintf("weighted consensus %.3f over %d verdicts, %d conflicts", consensus, len(results), len(conflicts)),
	}, true
}
