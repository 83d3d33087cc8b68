package evaluation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ethicore/arbiter/internal/types"
)

// DefaultThreshold is the approval cutoff for framework evaluators.
const DefaultThreshold = 0.6

// Evaluator encodes one independent policy perspective. Implementations
// must be pure: no shared mutable state, no I/O, and they must respect
// the caller's context deadline.
type Evaluator interface {
	// Name returns the framework identifier.
	Name() string

	// Weight returns the framework weight used by resolution strategies.
	Weight() float64

	// CoreValues returns the framework's core-value indicator set.
	CoreValues() IndicatorSet

	// Evaluate scores the proposal against this framework's perspective.
	Evaluate(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.EvaluationResult, error)
}

// FrameworkEvaluator is the standard weighted-indicator evaluator. All
// built-in frameworks are instances of this type with different
// indicator sets.
type FrameworkEvaluator struct {
	name       string
	weight     float64
	threshold  float64
	indicators IndicatorSet
}

// NewFrameworkEvaluator creates an evaluator from an indicator set. A
// zero threshold selects DefaultThreshold.
func NewFrameworkEvaluator(name string, weight, threshold float64, indicators IndicatorSet) *FrameworkEvaluator {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &FrameworkEvaluator{
		name:       name,
		weight:     weight,
		threshold:  threshold,
		indicators: indicators,
	}
}

// Name returns the framework identifier.
func (e *FrameworkEvaluator) Name() string { return e.name }

// Weight returns the framework weight.
func (e *FrameworkEvaluator) Weight() float64 { return e.weight }

// CoreValues returns the framework's indicator set.
func (e *FrameworkEvaluator) CoreValues() IndicatorSet { return e.indicators }

// Evaluate scores the proposal: matching indicators move the score from
// a neutral baseline, approval is score > threshold, and confidence is
// the normalized distance from the threshold.
func (e *FrameworkEvaluator) Evaluate(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return types.EvaluationResult{}, err
	}

	score, matched := e.indicators.Score(proposal, evalCtx)
	approved := score > e.threshold

	// Normalize distance-from-threshold so a score at either extreme
	// yields confidence 1.
	span := e.threshold
	if approved {
		span = 1 - e.threshold
	}
	confidence := 0.0
	if span > 0 {
		confidence = types.Clamp01(math.Abs(score-e.threshold) / span)
	}

	reasoning := fmt.Sprintf("%s: score %.2f vs threshold %.2f", e.name, score, e.threshold)
	if len(matched) > 0 {
		reasoning += " (" + strings.Join(matched, ", ") + ")"
	}

	return types.EvaluationResult{
		FrameworkID: e.name,
		Approved:    approved,
		Confidence:  confidence,
		Reasoning:   reasoning,
		Details: map[string]interface{}{
			"score":              score,
			"threshold":          e.threshold,
			"matched_indicators": matched,
		},
	}, nil
}
