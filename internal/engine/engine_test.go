package engine

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicore/arbiter/internal/audit"
	arberrors "github.com/ethicore/arbiter/internal/errors"
	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/risk"
	"github.com/ethicore/arbiter/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *audit.MemorySink) {
	t.Helper()
	sink := audit.NewMemorySink()
	if opts.AuditSink == nil {
		opts.AuditSink = sink
	} else {
		sink = opts.AuditSink.(*audit.MemorySink)
	}
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	eng, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng, sink
}

func benignProposal() types.ActionProposal {
	return types.ActionProposal{
		ActionType: "assist_user",
		Content:    map[string]interface{}{},
		Context:    map[string]interface{}{},
	}
}

func bypassProposal() types.ActionProposal {
	return types.ActionProposal{
		ActionType: "modify_system",
		Content:    map[string]interface{}{"description": "bypass safety override"},
	}
}

func TestEvaluateHarmonizedBenign(t *testing.T) {
	eng, sink := newTestEngine(t, Options{})
	ctx := context.Background()

	d, err := eng.EvaluateHarmonized(ctx, benignProposal(), nil)
	require.NoError(t, err)

	assert.True(t, d.Approved)
	assert.Zero(t, d.RiskScore)
	assert.Empty(t, d.SuppressionReason)
	assert.NotEmpty(t, d.ID)
	assert.Len(t, d.Fingerprint, 64)
	require.NotNil(t, d.Trace)
	assert.Len(t, d.Trace.Evaluations, 5)
	assert.Empty(t, d.Trace.Conflicts, "all frameworks agree on a benign assist")
	assert.Equal(t, "unanimous_consensus", d.Trace.Resolution.Method)

	assert.Equal(t, 1, sink.Len(), "every decision lands in the ledger")
}

func TestEvaluateSimpleRiskGate(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	t.Run("benign proposal passes the gate", func(t *testing.T) {
		d, err := eng.EvaluateSimple(ctx, benignProposal(), nil)
		require.NoError(t, err)
		assert.True(t, d.Approved)
		assert.Zero(t, d.RiskScore)
	})

	t.Run("safety bypass is suppressed", func(t *testing.T) {
		d, err := eng.EvaluateSimple(ctx, bypassProposal(), nil)
		require.NoError(t, err)
		assert.False(t, d.Approved)
		assert.Greater(t, d.RiskScore, 0.7)
		assert.Equal(t, SuppressionRiskThreshold, d.SuppressionReason)
		assert.NotEmpty(t, d.Fingerprint, "rejections are fingerprinted too")
	})
}

func TestEvaluateHarmonizedRejectsBypass(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	d, err := eng.EvaluateHarmonized(context.Background(), bypassProposal(), nil)
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Greater(t, d.RiskScore, 0.7)
	assert.NotEmpty(t, d.SuppressionReason)
	require.NotNil(t, d.Trace)
	assert.NotEmpty(t, d.Trace.Conflicts, "harm prevention dissents from the other frameworks")
}

// splitEvaluator returns a fixed verdict for conflict tests.
type splitEvaluator struct {
	name       string
	approved   bool
	confidence float64
}

func (s *splitEvaluator) Name() string                        { return s.name }
func (s *splitEvaluator) Weight() float64                     { return 1.0 }
func (s *splitEvaluator) CoreValues() evaluation.IndicatorSet { return evaluation.IndicatorSet{} }
func (s *splitEvaluator) Evaluate(context.Context, types.ActionProposal, map[string]interface{}) (types.EvaluationResult, error) {
	return types.EvaluationResult{
		FrameworkID: s.name,
		Approved:    s.approved,
		Confidence:  s.confidence,
		Reasoning:   s.name,
	}, nil
}

func TestEvaluateHarmonizedResolvesConflict(t *testing.T) {
	eng, _ := newTestEngine(t, Options{
		Evaluators: []evaluation.Evaluator{
			&splitEvaluator{name: "a", approved: true, confidence: 0.9},
			&splitEvaluator{name: "b", approved: false, confidence: 0.85},
		},
	})

	d, err := eng.EvaluateHarmonized(context.Background(), benignProposal(), nil)
	require.NoError(t, err)
	require.NotNil(t, d.Trace)
	require.Len(t, d.Trace.Conflicts, 1)
	assert.InDelta(t, 0.05, d.Trace.Conflicts[0].ConflictScore, 1e-9)
	assert.True(t, d.Approved, "the higher-confidence approval wins resolution")
	assert.NotEqual(t, "unanimous_consensus", d.Trace.Resolution.Method)
}

func TestEvaluateHarmonizedChainThreshold(t *testing.T) {
	eng, _ := newTestEngine(t, Options{
		Evaluators: []evaluation.Evaluator{
			&splitEvaluator{name: "a", approved: true, confidence: 0.9},
			&splitEvaluator{name: "b", approved: false, confidence: 0.85},
		},
		ChainThreshold: 0.95,
	})
	assert.InDelta(t, 0.95, eng.chainThreshold, 1e-9)

	d, err := eng.EvaluateHarmonized(context.Background(), benignProposal(), nil)
	require.NoError(t, err)
	require.NotNil(t, d.Trace)
	require.NotNil(t, d.Trace.Resolution)
	// Priority hierarchy resolves this split at confidence 0.81, which
	// must not clear a 0.95 acceptance threshold.
	assert.NotEqual(t, "priority_hierarchy", d.Trace.Resolution.Method)
}

func TestEvaluateHarmonizedDeterminism(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	proposal := types.ActionProposal{
		ActionType: "data_access",
		Content:    map[string]interface{}{"table": "visits"},
		Context:    map[string]interface{}{"urgency": 0.4, "requester": "dr_adams"},
		Priority:   0.5,
	}

	first, err := eng.EvaluateHarmonized(context.Background(), proposal, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		d, err := eng.EvaluateHarmonized(context.Background(), proposal, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Approved, d.Approved)
		assert.Equal(t, first.Confidence, d.Confidence)
		assert.Equal(t, first.Fingerprint, d.Fingerprint,
			"identical inputs over an unchanged precedent snapshot hash identically")
	}
}

func TestDeadlineFailsClosed(t *testing.T) {
	eng, sink := newTestEngine(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := eng.EvaluateHarmonized(ctx, benignProposal(), nil)
	require.Error(t, err)
	assert.Equal(t, arberrors.TypeDeadlineExceeded, arberrors.GetType(err))
	assert.False(t, d.Approved, "an expired deadline is never an approval")
	assert.Equal(t, SuppressionDeadline, d.SuppressionReason)
	assert.Equal(t, 1, sink.Len(), "fail-closed decisions are still audited")

	d, err = eng.EvaluateSimple(ctx, benignProposal(), nil)
	require.Error(t, err)
	assert.False(t, d.Approved)
}

func TestInvalidProposal(t *testing.T) {
	eng, sink := newTestEngine(t, Options{})
	ctx := context.Background()

	t.Run("missing action type", func(t *testing.T) {
		_, err := eng.EvaluateHarmonized(ctx, types.ActionProposal{}, nil)
		require.Error(t, err)
		assert.Equal(t, arberrors.TypeInvalidProposal, arberrors.GetType(err))
	})

	t.Run("priority outside range", func(t *testing.T) {
		_, err := eng.EvaluateSimple(ctx, types.ActionProposal{ActionType: "x", Priority: 1.5}, nil)
		require.Error(t, err)
		assert.Equal(t, arberrors.TypeInvalidProposal, arberrors.GetType(err))
	})

	assert.Zero(t, sink.Len(), "invalid proposals produce no fingerprint and no ledger entry")
}

// brokenEvaluator always panics.
type brokenEvaluator struct{ name string }

func (b *brokenEvaluator) Name() string                        { return b.name }
func (b *brokenEvaluator) Weight() float64                     { return 1.0 }
func (b *brokenEvaluator) CoreValues() evaluation.IndicatorSet { return evaluation.IndicatorSet{} }
func (b *brokenEvaluator) Evaluate(context.Context, types.ActionProposal, map[string]interface{}) (types.EvaluationResult, error) {
	panic("broken")
}

func TestAllEvaluatorsFailed(t *testing.T) {
	t.Run("falls back to simple mode with principles configured", func(t *testing.T) {
		eng, _ := newTestEngine(t, Options{
			Evaluators: []evaluation.Evaluator{&brokenEvaluator{name: "x"}, &brokenEvaluator{name: "y"}},
		})
		d, err := eng.EvaluateHarmonized(context.Background(), benignProposal(), nil)
		require.NoError(t, err)
		assert.True(t, d.Approved, "benign proposal clears the risk gate")
		assert.Less(t, d.Confidence, 1.0, "degraded mode reduces confidence")
	})

	t.Run("fails closed without principles", func(t *testing.T) {
		eng, _ := newTestEngine(t, Options{
			Evaluators: []evaluation.Evaluator{&brokenEvaluator{name: "x"}},
			Principles: []risk.Principle{},
		})
		d, err := eng.EvaluateHarmonized(context.Background(), benignProposal(), nil)
		require.Error(t, err)
		assert.Equal(t, arberrors.TypeAllEvaluatorsFailed, arberrors.GetType(err))
		assert.False(t, d.Approved)
		assert.Equal(t, SuppressionAllEvalsFailed, d.SuppressionReason)
	})
}

func TestRegistrationFreezesAfterFirstDecision(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	require.NoError(t, eng.RegisterEvaluator(&splitEvaluator{name: "extra", approved: true, confidence: 0.5}))
	require.NoError(t, eng.RegisterPrinciple(risk.Principle{Name: "custom", Weight: 0.1}))

	_, err := eng.EvaluateHarmonized(context.Background(), benignProposal(), nil)
	require.NoError(t, err)

	assert.Error(t, eng.RegisterEvaluator(&splitEvaluator{name: "late"}))
	assert.Error(t, eng.RegisterPrinciple(risk.Principle{Name: "late"}))
}

func TestPrecedentInfluence(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	proposal := bypassProposal()
	outcome := types.DecisionOutcome{Approved: false, Valence: 0.9, ResolutionAction: "request_review"}
	for i := 0; i < 3; i++ {
		require.NoError(t, eng.AddPrecedent(ctx, proposal, nil, outcome))
	}
	require.Eventually(t, func() bool {
		n, err := eng.PrecedentCount(ctx)
		return err == nil && n == 3
	}, 2*time.Second, 5*time.Millisecond)

	d, err := eng.EvaluateSimple(ctx, proposal, nil)
	require.NoError(t, err)
	require.False(t, d.Approved)
	require.Len(t, d.Alternatives, 1, "strong favorable precedents suggest an alternative")
	assert.Equal(t, "request_review", d.Alternatives[0].ActionType)
}

func TestSelectCandidate(t *testing.T) {
	eng, _ := newTestEngine(t, Options{Random: rand.New(rand.NewSource(7))})
	now := time.Now().UTC()

	candidates := []types.CandidateState{
		{
			ID:             "benign",
			Proposal:       benignProposal(),
			PriorAmplitude: 0.8,
			ContextVector:  []float64{1, 0},
			CreatedAt:      now.Add(-time.Minute),
		},
		{
			ID:             "harmful",
			Proposal:       bypassProposal(),
			PriorAmplitude: 0.9,
			ContextVector:  []float64{1, 0},
			CreatedAt:      now.Add(-time.Minute),
		},
	}

	result, err := eng.SelectCandidate(context.Background(), candidates, []float64{1, 0}, now, time.Hour)
	require.NoError(t, err)
	require.False(t, result.NoValid)
	require.NotNil(t, result.Selected)
	assert.Equal(t, "benign", result.Selected.ID)
	assert.Len(t, result.Weights, 1)
	assert.Len(t, result.Rejected, 1)
	assert.InDelta(t, 1.0, result.Weights[0].Weight, 1e-9)
}
