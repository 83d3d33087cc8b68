package evaluation

import (
	"fmt"
	"strings"

	"github.com/ethicore/arbiter/internal/types"
)

// Indicator is one weighted signal matched against a proposal.
// Exactly one matching mode is used per indicator:
//   - Pattern: case-insensitive substring match over the proposal's
//     flattened string fields
//   - Field + Equals: categorical match on a named field
//   - Field + Min/Max: numeric threshold on a named field
type Indicator struct {
	Pattern string      `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Field   string      `yaml:"field,omitempty" json:"field,omitempty"`
	Equals  interface{} `yaml:"equals,omitempty" json:"equals,omitempty"`
	Min     *float64    `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64    `yaml:"max,omitempty" json:"max,omitempty"`
	Weight  float64     `yaml:"weight" json:"weight"` // bounded contribution, [0,1]
}

// IndicatorSet holds the positive and negative signals for one scoring
// perspective.
type IndicatorSet struct {
	Positive []Indicator `yaml:"positive" json:"positive"`
	Negative []Indicator `yaml:"negative" json:"negative"`
}

// Merge returns the union of two indicator sets.
func (s IndicatorSet) Merge(other IndicatorSet) IndicatorSet {
	return IndicatorSet{
		Positive: append(append([]Indicator{}, s.Positive...), other.Positive...),
		Negative: append(append([]Indicator{}, s.Negative...), other.Negative...),
	}
}

// scoreBaseline is the neutral starting score for approval scoring. It
// sits above the default approval threshold so a proposal matching no
// indicators at all is approved with modest confidence.
const scoreBaseline = 0.7

// Score runs the weighted-indicator scoring function: start from the
// neutral baseline, add each matching positive indicator's weight,
// subtract each matching negative one, clamp to [0,1]. The matched
// indicator descriptions are returned for reasoning strings.
func (s IndicatorSet) Score(proposal types.ActionProposal, context map[string]interface{}) (float64, []string) {
	flat := flatten(proposal, context)
	score := scoreBaseline
	var matched []string

	for _, ind := range s.Positive {
		if ind.matches(flat) {
			score += ind.Weight
			matched = append(matched, "+"+ind.describe())
		}
	}
	for _, ind := range s.Negative {
		if ind.matches(flat) {
			score -= ind.Weight
			matched = append(matched, "-"+ind.describe())
		}
	}
	return types.Clamp01(score), matched
}

// ViolationScore sums the weights of matching negative indicators from
// zero, clamped to [0,1]. Positive indicators are ignored: this is the
// principle-violation form of indicator matching, where an innocuous
// proposal scores 0.
func (s IndicatorSet) ViolationScore(proposal types.ActionProposal, context map[string]interface{}) (float64, []string) {
	flat := flatten(proposal, context)
	score := 0.0
	var matched []string
	for _, ind := range s.Negative {
		if ind.matches(flat) {
			score += ind.Weight
			matched = append(matched, ind.describe())
		}
	}
	return types.Clamp01(score), matched
}

// MatchesAnyNegative reports whether any negative indicator fires.
// Used by the fallback resolution strategy's harm check.
func (s IndicatorSet) MatchesAnyNegative(proposal types.ActionProposal, context map[string]interface{}) bool {
	flat := flatten(proposal, context)
	for _, ind := range s.Negative {
		if ind.matches(flat) {
			return true
		}
	}
	return false
}

func (i Indicator) matches(flat flatProposal) bool {
	switch {
	case i.Pattern != "":
		return strings.Contains(flat.text, strings.ToLower(i.Pattern))
	case i.Field != "" && i.Equals != nil:
		v, ok := flat.fields[i.Field]
		if !ok {
			return false
		}
		return fmt.Sprintf("%v", v) == fmt.Sprintf("%v", i.Equals)
	case i.Field != "" && (i.Min != nil || i.Max != nil):
		v, ok := flat.fields[i.Field]
		if !ok {
			return false
		}
		n, ok := toFloat(v)
		if !ok {
			return false
		}
		if i.Min != nil && n < *i.Min {
			return false
		}
		if i.Max != nil && n > *i.Max {
			return false
		}
		return true
	}
	return false
}

func (i Indicator) describe() string {
	if i.Pattern != "" {
		return i.Pattern
	}
	return i.Field
}

// flatProposal is a pre-computed view of a proposal used for matching:
// all string values joined and lowercased, plus a merged field map.
type flatProposal struct {
	text   string
	fields map[string]interface{}
}

func flatten(proposal types.ActionProposal, context map[string]interface{}) flatProposal {
	fields := make(map[string]interface{}, len(proposal.Content)+len(context)+1)
	var sb strings.Builder
	sb.WriteString(strings.ToLower(proposal.ActionType))

	appendMap := func(m map[string]interface{}) {
		for k, v := range m {
			fields[k] = v
			if s, ok := v.(string); ok {
				sb.WriteString(" ")
				sb.WriteString(strings.ToLower(s))
			}
		}
	}
	appendMap(proposal.Content)
	appendMap(proposal.Context)
	appendMap(context)
	fields["action_type"] = proposal.ActionType
	fields["priority"] = proposal.Priority

	return flatProposal{text: sb.String(), fields: fields}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
