package evaluation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethicore/arbiter/internal/errors"
	"github.com/ethicore/arbiter/internal/types"
)

// FailureReasoning is the reasoning string attached to the neutral
// result substituted for a failed evaluator.
const FailureReasoning = "evaluator_failed"

// Set is a fixed collection of evaluators assembled at construction
// time. Evaluators run concurrently; results are joined in registration
// order so downstream conflict detection is reproducible regardless of
// scheduling.
type Set struct {
	evaluators []Evaluator
	logger     *logrus.Logger
}

// NewSet creates an evaluator set. The registration order is the
// canonical result order.
func NewSet(logger *logrus.Logger, evaluators ...Evaluator) *Set {
	if logger == nil {
		logger = logrus.New()
	}
	return &Set{evaluators: evaluators, logger: logger}
}

// Evaluators returns the registered evaluators in canonical order.
func (s *Set) Evaluators() []Evaluator {
	return s.evaluators
}

// Len returns the number of registered evaluators.
func (s *Set) Len() int { return len(s.evaluators) }

// WeightOf returns the framework weight for a framework ID, defaulting
// to 1 for unknown frameworks.
func (s *Set) WeightOf(frameworkID string) float64 {
	for _, ev := range s.evaluators {
		if ev.Name() == frameworkID {
			return ev.Weight()
		}
	}
	return 1.0
}

// SharedValues returns the union of all frameworks' core-value
// indicator sets.
func (s *Set) SharedValues() IndicatorSet {
	var union IndicatorSet
	for _, ev := range s.evaluators {
		union = union.Merge(ev.CoreValues())
	}
	return union
}

// Run evaluates the proposal against every registered evaluator
// concurrently. A panicking or failing evaluator is degraded to a
// neutral rejected result and never aborts the batch. The returned
// slice is in canonical order; failed counts how many evaluators were
// degraded.
func (s *Set) Run(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}) (results []types.EvaluationResult, failed int) {
	results = make([]types.EvaluationResult, len(s.evaluators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(s.evaluators))

	for i, ev := range s.evaluators {
		i, ev := i, ev
		g.Go(func() error {
			res, err := s.safeEvaluate(gctx, ev, proposal, evalCtx)
			if err != nil {
				s.logger.WithError(errors.EvaluatorFailure(err, ev.Name())).
					WithField("framework", ev.Name()).
					Warn("evaluator failed, degrading to neutral result")
				res = neutralResult(ev.Name())
			}
			results[i] = res
			return nil
		})
	}
	g.Wait() // workers never return errors; failures are degraded in place

	for _, r := range results {
		if r.Reasoning == FailureReasoning {
			failed++
		}
	}
	return results, failed
}

// safeEvaluate isolates a single evaluator call, converting panics into
// errors.
func (s *Set) safeEvaluate(ctx context.Context, ev Evaluator, proposal types.ActionProposal, evalCtx map[string]interface{}) (res types.EvaluationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator %s panicked: %v", ev.Name(), r)
		}
	}()
	res, err = ev.Evaluate(ctx, proposal, evalCtx)
	return res, err
}

func neutralResult(frameworkID string) types.EvaluationResult {
	return types.EvaluationResult{
		FrameworkID: frameworkID,
		Approved:    false,
		Confidence:  0,
		Reasoning:   FailureReasoning,
	}
}
