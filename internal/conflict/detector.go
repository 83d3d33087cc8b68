// Package conflict detects disagreement between evaluator verdicts.
package conflict

import (
	"math"

	"github.com/ethicore/arbiter/internal/types"
)

// Detector performs pairwise comparison of evaluation results. It is
// stateless and pure; construct once and share freely.
type Detector struct{}

// NewDetector creates a conflict detector.
func NewDetector() *Detector { return &Detector{} }

// Detect emits one Conflict for every unordered pair of results whose
// approval verdicts differ. The conflict score is the absolute
// confidence gap, so it is symmetric in pair order. O(n^2) over the
// evaluator count, which is expected to stay small.
func (d *Detector) Detect(results []types.EvaluationResult) []types.Conflict {
	var conflicts []types.Conflict
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			a, b := results[i], results[j]
			if a.Approved == b.Approved {
				continue
			}
			conflicts = append(conflicts, types.Conflict{
				FrameworkA:    a.FrameworkID,
				FrameworkB:    b.FrameworkID,
				ConflictScore: types.Clamp01(math.Abs(a.Confidence - b.Confidence)),
				ReasoningA:    a.Reasoning,
				ReasoningB:    b.Reasoning,
			})
		}
	}
	return conflicts
}

// Consensus summarizes a conflict-free result set: approved when every
// verdict agrees on approval, with confidence equal to the mean result
// confidence. Callers use this to skip the resolution chain when Detect
// returns nothing.
func Consensus(results []types.EvaluationResult) (approved bool, confidence float64) {
	if len(results) == 0 {
		return false, 0
	}
	approved = true
	total := 0.0
	for _, r := range results {
		approved = approved && r.Approved
		total += r.Confidence
	}
	return approved, types.Clamp01(total / float64(len(results)))
}
