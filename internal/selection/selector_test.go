package selection

import (
	"context"
	"io"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicore/arbiter/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// rejectingGate approves everything except the named action types.
func rejectingGate(rejected ...string) Gate {
	blocked := make(map[string]bool, len(rejected))
	for _, r := range rejected {
		blocked[r] = true
	}
	return func(ctx context.Context, proposal types.ActionProposal) (types.Decision, error) {
		if blocked[proposal.ActionType] {
			return types.Decision{Approved: false, Confidence: 0.9, SuppressionReason: "blocked"}, nil
		}
		return types.Decision{Approved: true, Confidence: 0.8}, nil
	}
}

func candidate(id, actionType string, amplitude float64, vector []float64, age time.Duration, now time.Time) types.CandidateState {
	return types.CandidateState{
		ID:             id,
		Proposal:       types.ActionProposal{ActionType: actionType},
		PriorAmplitude: amplitude,
		ContextVector:  vector,
		CreatedAt:      now.Add(-age),
	}
}

func TestSelect(t *testing.T) {
	now := time.Now().UTC()
	ambient := []float64{1, 0, 0.5}
	window := time.Hour

	t.Run("rejected candidate is excluded and weights sum to one", func(t *testing.T) {
		s := NewSelector(testLogger(), rejectingGate("forbidden"), rand.New(rand.NewSource(1)), "", 0)
		candidates := []types.CandidateState{
			candidate("c1", "assist_user", 0.9, []float64{1, 0, 0.5}, time.Minute, now),
			candidate("c2", "forbidden", 0.9, []float64{1, 0, 0.5}, time.Minute, now),
			candidate("c3", "notify_user", 0.6, []float64{0, 1, 0}, 30*time.Minute, now),
		}
		result, err := s.Select(context.Background(), candidates, ambient, now, window)
		require.NoError(t, err)
		require.False(t, result.NoValid)
		require.Len(t, result.Weights, 2)
		require.Len(t, result.Rejected, 1)

		total := 0.0
		for _, w := range result.Weights {
			assert.NotEqual(t, "c2", w.Candidate.ID)
			total += w.Weight
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("thousand draws never select a rejected candidate", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		s := NewSelector(testLogger(), rejectingGate("forbidden"), rng, PolicyWeightedRandom, 0)
		candidates := []types.CandidateState{
			candidate("c1", "assist_user", 0.9, []float64{1, 0, 0.5}, time.Minute, now),
			candidate("c2", "forbidden", 0.9, []float64{1, 0, 0.5}, time.Minute, now),
			candidate("c3", "notify_user", 0.6, []float64{0, 1, 0}, 30*time.Minute, now),
		}
		for i := 0; i < 1000; i++ {
			result, err := s.Select(context.Background(), candidates, ambient, now, window)
			require.NoError(t, err)
			require.NotNil(t, result.Selected)
			assert.NotEqual(t, "c2", result.Selected.ID)
		}
	})

	t.Run("argmax policy is deterministic", func(t *testing.T) {
		s := NewSelector(testLogger(), rejectingGate(), nil, PolicyArgMax, 0)
		candidates := []types.CandidateState{
			candidate("low", "a", 0.2, []float64{1, 0, 0.5}, time.Minute, now),
			candidate("high", "b", 0.9, []float64{1, 0, 0.5}, time.Minute, now),
		}
		for i := 0; i < 10; i++ {
			result, err := s.Select(context.Background(), candidates, ambient, now, window)
			require.NoError(t, err)
			assert.Equal(t, "high", result.Selected.ID)
		}
	})

	t.Run("zero survivors is an explicit no-valid result", func(t *testing.T) {
		s := NewSelector(testLogger(), rejectingGate("a", "b"), nil, "", 0)
		candidates := []types.CandidateState{
			candidate("c1", "a", 0.9, nil, time.Minute, now),
			candidate("c2", "b", 0.9, nil, time.Minute, now),
		}
		result, err := s.Select(context.Background(), candidates, ambient, now, window)
		require.NoError(t, err)
		assert.True(t, result.NoValid)
		assert.Nil(t, result.Selected)
		assert.Len(t, result.Rejected, 2)
	})

	t.Run("empty candidate list is no-valid", func(t *testing.T) {
		s := NewSelector(testLogger(), rejectingGate(), nil, "", 0)
		result, err := s.Select(context.Background(), nil, ambient, now, window)
		require.NoError(t, err)
		assert.True(t, result.NoValid)
	})

	t.Run("resonance favors candidates aligned with the ambient context", func(t *testing.T) {
		s := NewSelector(testLogger(), rejectingGate(), nil, PolicyArgMax, 0)
		candidates := []types.CandidateState{
			candidate("aligned", "a", 0.5, []float64{1, 0, 0.5}, time.Minute, now),
			candidate("opposed", "b", 0.5, []float64{-1, 0, -0.5}, time.Minute, now),
		}
		result, err := s.Select(context.Background(), candidates, ambient, now, window)
		require.NoError(t, err)
		assert.Equal(t, "aligned", result.Selected.ID)
	})

	t.Run("fresher candidates outweigh stale ones", func(t *testing.T) {
		s := NewSelector(testLogger(), rejectingGate(), nil, PolicyArgMax, 0)
		candidates := []types.CandidateState{
			candidate("stale", "a", 0.5, []float64{1, 0, 0.5}, 6*time.Hour, now),
			candidate("fresh", "b", 0.5, []float64{1, 0, 0.5}, time.Minute, now),
		}
		result, err := s.Select(context.Background(), candidates, ambient, now, window)
		require.NoError(t, err)
		assert.Equal(t, "fresh", result.Selected.ID)
	})
}

func TestSelectionMassConservation(t *testing.T) {
	now := time.Now().UTC()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 1000
	properties := gopter.NewProperties(parameters)

	properties.Property("surviving weights always sum to one", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			s := NewSelector(testLogger(), rejectingGate("blocked"), rand.New(rand.NewSource(seed+1)), "", 0)

			n := 1 + rng.Intn(6)
			candidates := make([]types.CandidateState, n)
			survivors := 0
			for i := range candidates {
				actionType := "ok"
				if rng.Intn(4) == 0 {
					actionType = "blocked"
				} else {
					survivors++
				}
				candidates[i] = candidate(
					string(rune('a'+i)), actionType,
					rng.Float64(),
					[]float64{rng.NormFloat64(), rng.NormFloat64()},
					time.Duration(rng.Intn(7200))*time.Second,
					now,
				)
			}

			result, err := s.Select(context.Background(), candidates, []float64{rng.NormFloat64(), rng.NormFloat64()}, now, time.Hour)
			if err != nil {
				return false
			}
			if survivors == 0 {
				return result.NoValid
			}
			total := 0.0
			for _, w := range result.Weights {
				total += w.Weight
			}
			return len(result.Weights) == survivors && math.Abs(total-1.0) < 1e-9
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestTimeDecay(t *testing.T) {
	window := time.Hour
	assert.InDelta(t, 1.0, timeDecay(0, window), 1e-9)
	assert.InDelta(t, math.Exp(-1), timeDecay(time.Hour, window), 1e-9)
	assert.Equal(t, 0.1, timeDecay(100*time.Hour, window), "decay floors at 0.1")
	assert.Equal(t, 1.0, timeDecay(-time.Hour, window), "future-dated candidates gain nothing")
	assert.Equal(t, 1.0, timeDecay(time.Hour, 0), "zero window disables decay")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 1}), "zero vector has no direction")
	assert.Equal(t, 0.0, cosine(nil, []float64{1}), "missing vector resolves to neutral resonance")
}
