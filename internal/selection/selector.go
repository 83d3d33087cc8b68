// Package selection implements the weighted gate: it runs candidate
// actions through the decision pipeline and performs weighted selection
// among the survivors.
package selection

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethicore/arbiter/internal/types"
)

// Selection policies.
const (
	PolicyWeightedRandom = "weighted_random"
	PolicyArgMax         = "argmax"
)

// decayFloor is the minimum time-decay factor; stale candidates are
// dampened, never eliminated.
const decayFloor = 0.1

// RandomSource supplies the randomness for weighted draws. Inject a
// seeded *rand.Rand for reproducible selection.
type RandomSource interface {
	Float64() float64
}

// Gate evaluates one candidate's proposal and returns its decision.
// The engine supplies its harmonized pipeline here.
type Gate func(ctx context.Context, proposal types.ActionProposal) (types.Decision, error)

// Selector runs the per-candidate pipeline concurrently and reduces
// surviving candidates to a single weighted choice.
type Selector struct {
	gate       Gate
	rng        RandomSource
	policy     string
	maxWorkers int
	logger     *logrus.Logger
}

// NewSelector creates a selector. An empty policy selects
// PolicyWeightedRandom; maxWorkers <= 0 sizes the pool to the candidate
// count.
func NewSelector(logger *logrus.Logger, gate Gate, rng RandomSource, policy string, maxWorkers int) *Selector {
	if logger == nil {
		logger = logrus.New()
	}
	if policy == "" {
		policy = PolicyWeightedRandom
	}
	return &Selector{
		gate:       gate,
		rng:        rng,
		policy:     policy,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Select gates every candidate, weights the survivors by prior
// amplitude, decision confidence, context resonance, and time decay,
// normalizes the weights to sum to one, and picks per the configured
// policy. Zero survivors yields an explicit no-valid-candidates result.
func (s *Selector) Select(ctx context.Context, candidates []types.CandidateState, ambient []float64, referenceTime time.Time, coherenceWindow time.Duration) (types.SelectionResult, error) {
	result := types.SelectionResult{Policy: s.policy}
	if len(candidates) == 0 {
		result.NoValid = true
		return result, nil
	}

	decisions := make([]types.Decision, len(candidates))
	gateErrs := make([]error, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	workers := s.maxWorkers
	if workers <= 0 || workers > len(candidates) {
		workers = len(candidates)
	}
	g.SetLimit(workers)
	for i := range candidates {
		i := i
		g.Go(func() error {
			decisions[i], gateErrs[i] = s.gate(gctx, candidates[i].Proposal)
			return nil
		})
	}
	g.Wait()

	// Single-threaded reduction over the joined results.
	var weights []types.CandidateWeight
	var total float64
	for i, cand := range candidates {
		if gateErrs[i] != nil {
			s.logger.WithFields(logrus.Fields{
				"candidate": cand.ID,
				"error":     gateErrs[i].Error(),
			}).Warn("candidate gate failed; treated as rejected")
			result.Rejected = append(result.Rejected, decisions[i])
			continue
		}
		if !decisions[i].Approved {
			result.Rejected = append(result.Rejected, decisions[i])
			continue
		}

		resonance := (cosine(cand.ContextVector, ambient) + 1) / 2
		decay := timeDecay(referenceTime.Sub(cand.CreatedAt), coherenceWindow)
		w := cand.PriorAmplitude * decisions[i].Confidence * resonance * decay
		weights = append(weights, types.CandidateWeight{
			Candidate: cand,
			Decision:  decisions[i],
			Weight:    w,
		})
		total += w
	}

	if len(weights) == 0 {
		result.NoValid = true
		return result, nil
	}

	// Normalize to unit mass; an all-zero weight vector degenerates to
	// uniform.
	if total > 0 {
		for i := range weights {
			weights[i].Weight /= total
		}
	} else {
		uniform := 1 / float64(len(weights))
		for i := range weights {
			weights[i].Weight = uniform
		}
	}
	result.Weights = weights

	chosen := s.pick(weights)
	result.Selected = &chosen.Candidate
	return result, nil
}

func (s *Selector) pick(weights []types.CandidateWeight) types.CandidateWeight {
	if s.policy == PolicyArgMax || s.rng == nil {
		best := weights[0]
		for _, w := range weights[1:] {
			if w.Weight > best.Weight {
				best = w
			}
		}
		return best
	}

	draw := s.rng.Float64()
	acc := 0.0
	for _, w := range weights {
		acc += w.Weight
		if draw < acc {
			return w
		}
	}
	return weights[len(weights)-1] // rounding residue lands on the last survivor
}

// timeDecay is exp(-age/window) with a fixed floor, capped at 1 so a
// future-dated candidate gains nothing.
func timeDecay(age, window time.Duration) float64 {
	if window <= 0 {
		return 1
	}
	d := math.Exp(-age.Seconds() / window.Seconds())
	if d > 1 {
		return 1
	}
	if d < decayFloor {
		return decayFloor
	}
	return d
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
