package resolution

import (
	"github.com/sirupsen/logrus"

	"github.com/ethicore/arbiter/internal/errors"
	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/types"
)

// Chain runs resolution strategies in a fixed order and accepts the
// first result confident enough to stand. The terminal fallback
// strategy always produces a result, so Resolve cannot come back
// empty-handed on any well-formed chain.
type Chain struct {
	strategies []Strategy
	fallback   Strategy
	threshold  float64
	logger     *logrus.Logger
}

// NewChain builds a chain from an ordered strategy list plus the
// mandatory fallback. A zero threshold selects DefaultChainThreshold.
func NewChain(logger *logrus.Logger, threshold float64, fallback Strategy, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = logrus.New()
	}
	if threshold == 0 {
		threshold = DefaultChainThreshold
	}
	return &Chain{
		strategies: strategies,
		fallback:   fallback,
		threshold:  threshold,
		logger:     logger,
	}
}

// NewDefaultChain wires the standard strategy order around an
// evaluator set. A zero threshold selects DefaultChainThreshold.
func NewDefaultChain(logger *logrus.Logger, set *evaluation.Set, threshold float64) *Chain {
	weights := FrameworkWeights(set.WeightOf)
	return NewChain(logger, threshold,
		NewFallback(evaluation.IndicatorSet{}),
		NewPriorityHierarchy(weights),
		NewMetaPrincipleAggregation(nil),
		NewContextRelevance(nil),
		NewWeightedConsensus(weights),
		NewSharedValues(set.SharedValues),
	)
}

// Threshold returns the acceptance threshold.
func (c *Chain) Threshold() float64 { return c.threshold }

// Resolve runs the chain. The returned error is only non-nil when the
// fallback itself declines, which indicates a defective chain and is
// surfaced as an exhaustion error for the caller to fail closed on.
func (c *Chain) Resolve(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, error) {
	for _, s := range c.strategies {
		res, ok := s.Try(conflicts, results, proposal, evalCtx)
		if !ok {
			continue
		}
		if res.Confidence > c.threshold {
			c.logger.WithFields(logrus.Fields{
				"method":     res.Method,
				"approved":   res.Approved,
				"confidence": res.Confidence,
			}).Debug("resolution strategy accepted")
			return res, nil
		}
	}

	if c.fallback == nil {
		return types.ResolutionResult{}, errors.ResolutionExhausted("chain has no fallback strategy")
	}
	res, ok := c.fallback.Try(conflicts, results, proposal, evalCtx)
	if !ok {
		return types.ResolutionResult{}, errors.ResolutionExhausted("fallback strategy declined to resolve")
	}
	return res, nil
}
