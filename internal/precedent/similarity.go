package precedent

import (
	"fmt"
	"math"

	"github.com/ethicore/arbiter/internal/types"
)

// Similarity component weights. The result is normalized by the total
// weight of the components that were applicable.
const (
	actionTypeWeight = 0.5
	contextWeight    = 0.3
	contentWeight    = 0.2

	// relatedActionCredit is the partial credit for action types in the
	// same configured related-actions group.
	relatedActionCredit = 0.5

	// numericTolerance is the fuzzy-match tolerance for numeric context
	// and content values.
	numericTolerance = 0.2
)

// RelatedActions groups action types that should earn partial
// similarity credit against each other.
type RelatedActions map[string][]string

// related reports whether a and b share a group.
func (r RelatedActions) related(a, b string) bool {
	for _, member := range r[a] {
		if member == b {
			return true
		}
	}
	for _, member := range r[b] {
		if member == a {
			return true
		}
	}
	return false
}

// similarity scores a live proposal+context against a stored case,
// returning a value in [0,1].
func similarity(proposal types.ActionProposal, evalCtx map[string]interface{}, c types.PrecedentCase, related RelatedActions) float64 {
	var score, total float64

	// Action type: exact match, or half credit within a related group.
	total += actionTypeWeight
	switch {
	case proposal.ActionType == c.ActionType:
		score += actionTypeWeight
	case related.related(proposal.ActionType, c.ActionType):
		score += actionTypeWeight * relatedActionCredit
	}

	// Context key overlap with fuzzy numeric matching. The live context
	// is the proposal context merged with the ambient evaluation
	// context.
	liveCtx := mergeMaps(proposal.Context, evalCtx)
	if len(liveCtx) > 0 || len(c.Context) > 0 {
		total += contextWeight
		score += contextWeight * overlapFraction(liveCtx, c.Context)
	}

	// Content key overlap.
	if len(proposal.Content) > 0 || len(c.Content) > 0 {
		total += contentWeight
		score += contentWeight * overlapFraction(proposal.Content, c.Content)
	}

	if total == 0 {
		return 0
	}
	return types.Clamp01(score / total)
}

// overlapFraction is the fraction of the key union on which both maps
// hold matching values. Numeric values match within numericTolerance;
// everything else compares by string form.
func overlapFraction(a, b map[string]interface{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		union[k] = struct{}{}
	}
	for k := range b {
		union[k] = struct{}{}
	}

	matches := 0
	for k := range union {
		av, aok := a[k]
		bv, bok := b[k]
		if aok && bok && valuesMatch(av, bv) {
			matches++
		}
	}
	return float64(matches) / float64(len(union))
}

func valuesMatch(a, b interface{}) bool {
	af, aok := numeric(a)
	bf, bok := numeric(b)
	if aok && bok {
		return math.Abs(af-bf) <= numericTolerance
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func numeric(v interface{}) (float64, bool) {
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

func mergeMaps(a, b map[string]interface{}) map[string]interface{} {
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
