package resolution

import (
	"fmt"

	"github.com/ethicore/arbiter/internal/types"
)

// ContextRelevance defers to the framework whose concerns the current
// context most strongly activates, via a fixed framework-to-factor
// mapping over named context dimensions.
type ContextRelevance struct {
	factorMap map[string][]string
}

// NewContextRelevance creates the strategy; nil selects the default
// framework-to-factor mapping.
func NewContextRelevance(factorMap map[string][]string) *ContextRelevance {
	if factorMap == nil {
		factorMap = DefaultFactorMap()
	}
	return &ContextRelevance{factorMap: factorMap}
}

// Name returns the method identifier.
func (s *ContextRelevance) Name() string { return "context_relevance" }

// Try computes per-framework relevance from context factors and adopts
// the most relevant framework's verdict, confidence scaled by its
// relevance weight. Inapplicable when no mapped factor is present in
// the context.
func (s *ContextRelevance) Try(conflicts []types.Conflict, results []types.EvaluationResult, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.ResolutionResult, bool) {
	factors := collectFactors(proposal, evalCtx)
	if len(factors) == 0 || len(results) == 0 {
		return types.ResolutionResult{}, false
	}

	var best *types.EvaluationResult
	bestRelevance := 0.0
	for i := range results {
		rel := s.relevance(results[i].FrameworkID, factors)
		if rel > bestRelevance {
			best = &results[i]
			bestRelevance = rel
		}
	}
	if best == nil {
		return types.ResolutionResult{}, false
	}

	return types.ResolutionResult{
		Approved:         best.Approved,
		Confidence:       types.Clamp01(best.Confidence * bestRelevance),
		PrimaryFramework: best.FrameworkID,
		Method:           s.Name(),
		Reasoning: fmt.Sprintf("deferred to %s as most context-relevant (relevance %.2f)",
			best.FrameworkID, bestRelevance),
		RemainingConflicts: conflictsExcluding(conflicts, best.FrameworkID),
	}, true
}

// relevance is the mean value of the framework's mapped factors that
// are present in the context.
func (s *ContextRelevance) relevance(frameworkID string, factors map[string]float64) float64 {
	mapped, ok := s.factorMap[frameworkID]
	if !ok {
		return 0
	}
	total, n := 0.0, 0
	for _, f := range mapped {
		if v, present := factors[f]; present {
			total += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return types.Clamp01(total / float64(n))
}

// contextFactors are the named dimensions the mapping recognizes.
var contextFactors = []string{
	"urgency",
	"personal_impact",
	"social_impact",
	"autonomy_level",
	"care_requirements",
}

func collectFactors(proposal types.ActionProposal, evalCtx map[string]interface{}) map[string]float64 {
	out := make(map[string]float64)
	read := func(m map[string]interface{}) {
		for _, f := range contextFactors {
			if raw, ok := m[f]; ok {
				if v, ok := asFloat(raw); ok {
					out[f] = types.Clamp01(v)
				}
			}
		}
	}
	read(proposal.Context)
	read(evalCtx)
	return out
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// DefaultFactorMap maps each built-in framework to the context factors
// that make it authoritative.
func DefaultFactorMap() map[string][]string {
	return map[string][]string{
		"harm_prevention": {"urgency", "personal_impact"},
		"autonomy":        {"autonomy_level", "personal_impact"},
		"fairness":        {"social_impact"},
		"wellbeing":       {"care_requirements", "personal_impact"},
		"transparency":    {"social_impact", "urgency"},
	}
}
