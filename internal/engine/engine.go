// Package engine assembles the full decision arbitration pipeline
// behind a single facade. All collaborators are injected at
// construction; there is no process-wide mutable state.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethicore/arbiter/internal/audit"
	"github.com/ethicore/arbiter/internal/conflict"
	"github.com/ethicore/arbiter/internal/errors"
	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/fingerprint"
	"github.com/ethicore/arbiter/internal/precedent"
	"github.com/ethicore/arbiter/internal/resolution"
	"github.com/ethicore/arbiter/internal/risk"
	"github.com/ethicore/arbiter/internal/selection"
	"github.com/ethicore/arbiter/internal/types"
)

// Suppression reasons recorded on rejected decisions.
const (
	SuppressionRiskThreshold  = "risk_threshold_exceeded"
	SuppressionResolution     = "resolution_rejected"
	SuppressionDeadline       = "deadline_exceeded"
	SuppressionSystemError    = "system_error"
	SuppressionAllEvalsFailed = "all_evaluators_failed"
)

// precedentDegradedPenalty scales decision confidence when the
// precedent backend could not be consulted.
const precedentDegradedPenalty = 0.9

// Options configures an Engine. Zero-value fields select defaults.
type Options struct {
	Logger           *logrus.Logger
	Evaluators       []evaluation.Evaluator
	Principles       []risk.Principle
	RiskThreshold    float64
	ChainThreshold   float64
	PrecedentBackend precedent.Backend
	RelatedActions   precedent.RelatedActions
	MaxPrecedents    int
	AuditSink        audit.Sink
	Random           selection.RandomSource
	SelectionPolicy  string
	SelectionWorkers int
}

// Engine is the decision arbitration core.
type Engine struct {
	logger       *logrus.Logger
	set          *evaluation.Set
	detector     *conflict.Detector
	chain        *resolution.Chain
	scorer       *risk.Scorer
	precedents   *precedent.Store
	fingerprints *fingerprint.Generator
	sink         audit.Sink
	selector     *selection.Selector

	chainThreshold float64
	opts           Options
	started        atomic.Bool
}

// New builds an engine from options. The evaluator set, principles,
// precedent backend, and audit sink are fixed for the engine's
// lifetime once the first decision is served.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Evaluators == nil {
		opts.Evaluators = evaluation.DefaultEvaluators()
	}
	if opts.PrecedentBackend == nil {
		opts.PrecedentBackend = precedent.NewMemoryBackend()
	}

	e := &Engine{
		logger:       logger,
		detector:     conflict.NewDetector(),
		fingerprints: fingerprint.NewGenerator(),
		sink:         opts.AuditSink,
		opts:         opts,
	}
	e.rebuild()
	e.selector = selection.NewSelector(logger, e.gateCandidate, opts.Random, opts.SelectionPolicy, opts.SelectionWorkers)
	return e, nil
}

// rebuild reconstructs the pipeline stages from the current options.
// Only called before the engine starts serving.
func (e *Engine) rebuild() {
	e.set = evaluation.NewSet(e.logger, e.opts.Evaluators...)
	e.scorer = risk.NewScorer(e.logger, e.opts.RiskThreshold, e.opts.Principles)
	e.chain = resolution.NewDefaultChain(e.logger, e.set, e.opts.ChainThreshold)
	e.chainThreshold = e.chain.Threshold()
	if e.precedents == nil {
		e.precedents = precedent.NewStore(e.logger, e.opts.PrecedentBackend, e.opts.RelatedActions, e.opts.MaxPrecedents)
	}
}

// RegisterEvaluator adds an evaluator. Construction-time only: it
// fails once the engine has served a decision.
func (e *Engine) RegisterEvaluator(ev evaluation.Evaluator) error {
	if e.started.Load() {
		return errors.ConfigError("evaluators are fixed after the first decision")
	}
	e.opts.Evaluators = append(e.opts.Evaluators, ev)
	e.rebuild()
	return nil
}

// RegisterPrinciple adds a risk principle. Construction-time only.
func (e *Engine) RegisterPrinciple(p risk.Principle) error {
	if e.started.Load() {
		return errors.ConfigError("principles are fixed after the first decision")
	}
	if e.opts.Principles == nil {
		e.opts.Principles = risk.DefaultPrinciples()
	}
	e.opts.Principles = append(e.opts.Principles, p)
	e.rebuild()
	return nil
}

// Close releases the precedent store's writer.
func (e *Engine) Close() {
	e.precedents.Close()
}

// EvaluateSimple gates the proposal on the risk threshold alone; the
// evaluator and resolution pipeline is not consulted.
func (e *Engine) EvaluateSimple(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.Decision, error) {
	e.started.Store(true)
	if err := validateProposal(proposal); err != nil {
		return types.Decision{}, err
	}
	if ctx.Err() != nil {
		return e.failClosed(ctx, proposal, SuppressionDeadline), errors.DeadlineExceeded("engine")
	}

	assessment := e.scorer.Score(proposal, evalCtx)
	analysis, precErr := e.precedents.Analyze(ctx, proposal, evalCtx)

	approved := !assessment.ExceedsThreshold(e.scorer.Threshold())
	confidence := riskConfidence(assessment.Score, e.scorer.Threshold())
	if precErr != nil {
		confidence *= precedentDegradedPenalty
	}

	d := types.Decision{
		ID:         uuid.NewString(),
		Approved:   approved,
		RiskScore:  assessment.Score,
		Confidence: confidence,
		IssuedAt:   time.Now().UTC(),
	}
	if !approved {
		d.SuppressionReason = SuppressionRiskThreshold
		d.Alternatives = e.alternatives(proposal, analysis)
	}
	return e.finalize(ctx, &d, proposal, evalCtx, assessment.Score, analysis.Weight)
}

// EvaluateHarmonized runs the full pipeline: concurrent evaluation,
// conflict detection, strategy-chain resolution, risk scoring, and
// precedent analysis, with the risk threshold applied as a hard
// post-gate on harmonized approval.
func (e *Engine) EvaluateHarmonized(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.Decision, error) {
	e.started.Store(true)
	if err := validateProposal(proposal); err != nil {
		return types.Decision{}, err
	}
	if ctx.Err() != nil {
		return e.failClosed(ctx, proposal, SuppressionDeadline), errors.DeadlineExceeded("engine")
	}

	// Evaluators, risk scoring, and precedent analysis run in
	// parallel; all three are pure over their inputs.
	var (
		results    []types.EvaluationResult
		failed     int
		assessment types.RiskAssessment
		analysis   types.PrecedentAnalysis
		precErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, failed = e.set.Run(gctx, proposal, evalCtx)
		return nil
	})
	g.Go(func() error {
		assessment = e.scorer.Score(proposal, evalCtx)
		return nil
	})
	g.Go(func() error {
		analysis, precErr = e.precedents.Analyze(gctx, proposal, evalCtx)
		return nil
	})
	g.Wait()

	if ctx.Err() != nil {
		return e.failClosed(ctx, proposal, SuppressionDeadline), errors.DeadlineExceeded("engine")
	}

	if e.set.Len() > 0 && failed == e.set.Len() {
		return e.handleAllFailed(ctx, proposal, evalCtx, assessment, analysis, precErr)
	}

	conflicts := e.detector.Detect(results)
	var res types.ResolutionResult
	if len(conflicts) == 0 {
		approved, confidence := conflict.Consensus(results)
		res = types.ResolutionResult{
			Approved:         approved,
			Confidence:       confidence,
			PrimaryFramework: "consensus",
			Method:           "unanimous_consensus",
			Reasoning:        "all frameworks agree",
		}
	} else {
		var err error
		res, err = e.chain.Resolve(conflicts, results, proposal, evalCtx)
		if err != nil {
			// The chain's fallback guarantees a result; reaching this
			// branch is a defect and fails closed.
			e.logger.WithError(err).Error("resolution chain exhausted")
			return e.failClosed(ctx, proposal, SuppressionSystemError), err
		}
	}

	approved := res.Approved
	suppression := ""
	if !approved {
		suppression = SuppressionResolution
	}
	// Risk threshold is a hard post-gate on harmonized approvals.
	if approved && assessment.ExceedsThreshold(e.scorer.Threshold()) {
		approved = false
		suppression = SuppressionRiskThreshold
	}

	confidence := res.Confidence
	if precErr != nil {
		confidence *= precedentDegradedPenalty
	}

	d := types.Decision{
		ID:         uuid.NewString(),
		Approved:   approved,
		RiskScore:  assessment.Score,
		Confidence: types.Clamp01(confidence),
		IssuedAt:   time.Now().UTC(),
		Trace: &types.HarmonizationTrace{
			Evaluations:      results,
			Conflicts:        conflicts,
			Resolution:       &res,
			PrecedentWeight:  analysis.Weight,
			PrecedentMatches: len(analysis.Matches),
		},
	}
	if !approved {
		d.SuppressionReason = suppression
		d.Alternatives = e.alternatives(proposal, analysis)
	}
	return e.finalize(ctx, &d, proposal, evalCtx, assessment.Score, analysis.Weight)
}

// SelectCandidate runs the weighted gate over candidate actions.
func (e *Engine) SelectCandidate(ctx context.Context, candidates []types.CandidateState, ambient []float64, referenceTime time.Time, coherenceWindow time.Duration) (types.SelectionResult, error) {
	e.started.Store(true)
	if ctx.Err() != nil {
		return types.SelectionResult{NoValid: true}, errors.DeadlineExceeded("selection")
	}
	return e.selector.Select(ctx, candidates, ambient, referenceTime, coherenceWindow)
}

// AddPrecedent records an observed outcome for future similarity
// lookups.
func (e *Engine) AddPrecedent(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}, outcome types.DecisionOutcome) error {
	c := types.PrecedentCase{
		ActionType: proposal.ActionType,
		Context:    mergeContext(proposal.Context, evalCtx),
		Content:    proposal.Content,
		Outcome:    outcome,
		RecordedAt: time.Now().UTC(),
	}
	return e.precedents.AddCase(ctx, c)
}

// PrecedentCount reports how many cases the store holds.
func (e *Engine) PrecedentCount(ctx context.Context) (int, error) {
	return e.precedents.Len(ctx)
}

func (e *Engine) gateCandidate(ctx context.Context, proposal types.ActionProposal) (types.Decision, error) {
	return e.EvaluateHarmonized(ctx, proposal, nil)
}

// handleAllFailed falls back to Simple Mode when a principle set is
// configured, otherwise fails closed.
func (e *Engine) handleAllFailed(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}, assessment types.RiskAssessment, analysis types.PrecedentAnalysis, precErr error) (types.Decision, error) {
	if !e.scorer.HasPrinciples() {
		e.logger.Error("all evaluators failed and no principle set is configured")
		return e.failClosed(ctx, proposal, SuppressionAllEvalsFailed),
			errors.AllEvaluatorsFailed(e.set.Len())
	}

	e.logger.Warn("all evaluators failed; degrading to simple mode")
	approved := !assessment.ExceedsThreshold(e.scorer.Threshold())
	confidence := riskConfidence(assessment.Score, e.scorer.Threshold()) * precedentDegradedPenalty
	if precErr != nil {
		confidence *= precedentDegradedPenalty
	}

	d := types.Decision{
		ID:         uuid.NewString(),
		Approved:   approved,
		RiskScore:  assessment.Score,
		Confidence: types.Clamp01(confidence),
		IssuedAt:   time.Now().UTC(),
	}
	if !approved {
		d.SuppressionReason = SuppressionRiskThreshold
	}
	return e.finalize(ctx, &d, proposal, evalCtx, assessment.Score, analysis.Weight)
}

// finalize stamps the fingerprint and appends the decision to the
// audit sink. Sink failures are logged, never folded into approval.
func (e *Engine) finalize(ctx context.Context, d *types.Decision, proposal types.ActionProposal, evalCtx map[string]interface{}, riskScore, precedentWeight float64) (types.Decision, error) {
	fp, err := e.fingerprints.Generate(proposal, evalCtx, riskScore, precedentWeight)
	if err != nil {
		e.logger.WithError(err).Error("fingerprint generation failed")
		return e.failClosed(ctx, proposal, SuppressionSystemError), errors.SystemError(err, "fingerprint generation failed")
	}
	d.Fingerprint = fp

	if e.sink != nil {
		if err := e.sink.Append(ctx, *d); err != nil {
			e.logger.WithError(err).Warn("audit sink append failed")
		}
	}
	return *d, nil
}

// failClosed produces the rejected SystemError decision: no approval
// ever leaks out of a failure path.
func (e *Engine) failClosed(ctx context.Context, proposal types.ActionProposal, reason string) types.Decision {
	d := types.Decision{
		ID:                uuid.NewString(),
		Approved:          false,
		Confidence:        0,
		SuppressionReason: reason,
		IssuedAt:          time.Now().UTC(),
	}
	if e.sink != nil {
		// Best effort: the sink may share the expired context.
		if err := e.sink.Append(context.WithoutCancel(ctx), d); err != nil {
			e.logger.WithError(err).Warn("audit sink append failed for fail-closed decision")
		}
	}
	return d
}

// alternatives surfaces the precedent store's recommended action as an
// alternative proposal on rejections.
func (e *Engine) alternatives(proposal types.ActionProposal, analysis types.PrecedentAnalysis) []types.ActionProposal {
	if analysis.RecommendedAction == "" || analysis.RecommendedAction == proposal.ActionType {
		return nil
	}
	return []types.ActionProposal{{
		ActionType: analysis.RecommendedAction,
		Content:    proposal.Content,
		Context:    proposal.Context,
		Priority:   proposal.Priority,
		CreatedAt:  proposal.CreatedAt,
	}}
}

func validateProposal(p types.ActionProposal) error {
	if p.ActionType == "" {
		return errors.InvalidProposal("action_type is required")
	}
	if p.Priority < 0 || p.Priority > 1 {
		return errors.InvalidProposalf("priority %.2f outside [0,1]", p.Priority)
	}
	return nil
}

// riskConfidence converts a risk score's distance from the gate into a
// decision confidence.
func riskConfidence(score, threshold float64) float64 {
	span := threshold
	if score > threshold {
		span = 1 - threshold
	}
	if span <= 0 {
		return 1
	}
	diff := score - threshold
	if diff < 0 {
		diff = -diff
	}
	return types.Clamp01(diff / span)
}

func mergeContext(a, b map[string]interface{}) map[string]interface{} {
	if len(b) == 0 {
		return a
	}
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
