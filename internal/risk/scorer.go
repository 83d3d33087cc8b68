// Package risk computes weighted principle-violation scores for action
// proposals. Two decision modes are built on it: Simple Mode gates
// approval directly on the score, Harmonized Mode attaches the score to
// the decision for audit while approval comes from the resolution
// chain (with the risk threshold applied as a hard post-gate).
package risk

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/types"
)

// DefaultThreshold is the Simple Mode approval gate: proposals scoring
// above it are rejected.
const DefaultThreshold = 0.7

// Principle is one weighted scoring dimension. Its indicator set's
// negative indicators define what violates the principle.
type Principle struct {
	Name       string                  `yaml:"name" json:"name"`
	Weight     float64                 `yaml:"weight" json:"weight"`
	Indicators evaluation.IndicatorSet `yaml:"indicators" json:"indicators"`
}

// Scorer aggregates per-principle violation scores into a single risk
// assessment.
type Scorer struct {
	principles []Principle
	threshold  float64
	logger     *logrus.Logger
}

// NewScorer creates a scorer over the given principles. A zero
// threshold selects DefaultThreshold; nil principles select
// DefaultPrinciples.
func NewScorer(logger *logrus.Logger, threshold float64, principles []Principle) *Scorer {
	if logger == nil {
		logger = logrus.New()
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if principles == nil {
		principles = DefaultPrinciples()
	}
	return &Scorer{principles: principles, threshold: threshold, logger: logger}
}

// Threshold returns the Simple Mode gate.
func (s *Scorer) Threshold() float64 { return s.threshold }

// HasPrinciples reports whether a principle set is configured. The
// engine's all-evaluators-failed fallback requires one.
func (s *Scorer) HasPrinciples() bool { return len(s.principles) > 0 }

// Score computes the weighted violation aggregate. Each principle's
// violation is scored via indicator matching, multiplied by the
// principle weight, summed, and normalized by total weight. The
// distance is the Euclidean distance between the per-principle
// compliance vector (1 - violation) and the all-ones ideal, divided by
// sqrt(n).
func (s *Scorer) Score(proposal types.ActionProposal, evalCtx map[string]interface{}) types.RiskAssessment {
	if len(s.principles) == 0 {
		return types.RiskAssessment{}
	}

	var (
		weightedSum    float64
		totalWeight    float64
		sqDist         float64
		primary        string
		primaryContrib float64
		contributing   []string
	)

	for _, p := range s.principles {
		violation, _ := p.Indicators.ViolationScore(proposal, evalCtx)
		contrib := violation * p.Weight
		weightedSum += contrib
		totalWeight += p.Weight
		sqDist += violation * violation

		if violation > 0 {
			contributing = append(contributing, p.Name)
		}
		if contrib > primaryContrib {
			primary, primaryContrib = p.Name, contrib
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = types.Clamp01(weightedSum / totalWeight)
	}
	sort.Strings(contributing)

	assessment := types.RiskAssessment{
		Score:                  score,
		PrimaryViolation:       primary,
		ContributingPrinciples: contributing,
		Distance:               math.Sqrt(sqDist) / math.Sqrt(float64(len(s.principles))),
	}

	s.logger.WithFields(logrus.Fields{
		"score":             assessment.Score,
		"primary_violation": assessment.PrimaryViolation,
		"distance":          assessment.Distance,
	}).Debug("risk assessment computed")

	return assessment
}

// DefaultPrinciples returns the standard principle set. Harm prevention
// dominates the weighting: a single matched critical harm indicator
// must clear the Simple Mode gate on its own.
func DefaultPrinciples() []Principle {
	return []Principle{
		{
			Name:   "harm_prevention",
			Weight: 1.0,
			Indicators: evaluation.IndicatorSet{
				Negative: []evaluation.Indicator{
					{Pattern: "bypass safety override", Weight: 0.95},
					{Pattern: "disable safeguard", Weight: 0.9},
					{Pattern: "cause harm", Weight: 0.9},
					{Pattern: "destroy", Weight: 0.6},
					{Pattern: "attack", Weight: 0.6},
				},
			},
		},
		{
			Name:   "autonomy",
			Weight: 0.08,
			Indicators: evaluation.IndicatorSet{
				Negative: []evaluation.Indicator{
					{Pattern: "without consent", Weight: 0.8},
					{Pattern: "coerce", Weight: 0.7},
					{Pattern: "override user", Weight: 0.7},
				},
			},
		},
		{
			Name:   "fairness",
			Weight: 0.08,
			Indicators: evaluation.IndicatorSet{
				Negative: []evaluation.Indicator{
					{Pattern: "discriminate", Weight: 0.8},
					{Pattern: "exclude group", Weight: 0.7},
				},
			},
		},
		{
			Name:   "wellbeing",
			Weight: 0.06,
			Indicators: evaluation.IndicatorSet{
				Negative: []evaluation.Indicator{
					{Pattern: "distress", Weight: 0.6},
					{Pattern: "neglect", Weight: 0.6},
				},
			},
		},
		{
			Name:   "transparency",
			Weight: 0.06,
			Indicators: evaluation.IndicatorSet{
				Negative: []evaluation.Indicator{
					{Pattern: "deceive", Weight: 0.8},
					{Pattern: "conceal", Weight: 0.6},
				},
			},
		},
	}
}
