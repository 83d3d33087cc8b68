package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethicore/arbiter/internal/types"
)

func TestIndicatorMatching(t *testing.T) {
	t.Run("pattern matches case-insensitively across string fields", func(t *testing.T) {
		set := IndicatorSet{
			Negative: []Indicator{{Pattern: "bypass safety override", Weight: 0.5}},
		}
		proposal := types.ActionProposal{
			ActionType: "modify_system",
			Content:    map[string]interface{}{"description": "Bypass Safety Override on unit 7"},
		}
		score, matched := set.Score(proposal, nil)
		assert.InDelta(t, 0.2, score, 1e-9, "baseline 0.7 minus weight 0.5")
		assert.Equal(t, []string{"-bypass safety override"}, matched)
	})

	t.Run("pattern matches action type", func(t *testing.T) {
		set := IndicatorSet{Positive: []Indicator{{Pattern: "assist", Weight: 0.15}}}
		proposal := types.ActionProposal{ActionType: "assist_user"}
		score, _ := set.Score(proposal, nil)
		assert.InDelta(t, 0.85, score, 1e-9)
	})

	t.Run("field equals matches categorical values", func(t *testing.T) {
		set := IndicatorSet{Negative: []Indicator{{Field: "mode", Equals: "forced", Weight: 0.3}}}
		proposal := types.ActionProposal{
			ActionType: "update",
			Content:    map[string]interface{}{"mode": "forced"},
		}
		score, _ := set.Score(proposal, nil)
		assert.InDelta(t, 0.4, score, 1e-9)

		proposal.Content["mode"] = "voluntary"
		score, _ = set.Score(proposal, nil)
		assert.InDelta(t, 0.7, score, 1e-9)
	})

	t.Run("numeric min threshold", func(t *testing.T) {
		min := 0.7
		set := IndicatorSet{Negative: []Indicator{{Field: "harm_risk", Min: &min, Weight: 0.4}}}
		proposal := types.ActionProposal{
			ActionType: "deploy",
			Context:    map[string]interface{}{"harm_risk": 0.8},
		}
		score, _ := set.Score(proposal, nil)
		assert.InDelta(t, 0.3, score, 1e-9)

		proposal.Context["harm_risk"] = 0.5
		score, _ = set.Score(proposal, nil)
		assert.InDelta(t, 0.7, score, 1e-9, "below threshold must not fire")
	})

	t.Run("evaluation context participates in matching", func(t *testing.T) {
		set := IndicatorSet{Negative: []Indicator{{Pattern: "coerce", Weight: 0.4}}}
		proposal := types.ActionProposal{ActionType: "notify"}
		score, _ := set.Score(proposal, map[string]interface{}{"note": "may coerce the user"})
		assert.InDelta(t, 0.3, score, 1e-9)
	})

	t.Run("score clamps to [0,1]", func(t *testing.T) {
		set := IndicatorSet{
			Negative: []Indicator{
				{Pattern: "destroy", Weight: 0.9},
				{Pattern: "attack", Weight: 0.9},
			},
		}
		proposal := types.ActionProposal{
			ActionType: "raid",
			Content:    map[string]interface{}{"plan": "destroy and attack"},
		}
		score, _ := set.Score(proposal, nil)
		assert.Equal(t, 0.0, score)
	})
}

func TestViolationScore(t *testing.T) {
	t.Run("starts at zero and ignores positives", func(t *testing.T) {
		set := IndicatorSet{
			Positive: []Indicator{{Pattern: "protect", Weight: 0.5}},
			Negative: []Indicator{{Pattern: "harm", Weight: 0.4}},
		}
		proposal := types.ActionProposal{
			ActionType: "guard",
			Content:    map[string]interface{}{"goal": "protect the site"},
		}
		score, matched := set.ViolationScore(proposal, nil)
		assert.Equal(t, 0.0, score)
		assert.Empty(t, matched)
	})

	t.Run("sums matching negatives", func(t *testing.T) {
		set := IndicatorSet{
			Negative: []Indicator{
				{Pattern: "deceive", Weight: 0.45},
				{Pattern: "conceal", Weight: 0.35},
			},
		}
		proposal := types.ActionProposal{
			ActionType: "report",
			Content:    map[string]interface{}{"plan": "deceive and conceal"},
		}
		score, matched := set.ViolationScore(proposal, nil)
		assert.InDelta(t, 0.8, score, 1e-9)
		assert.Len(t, matched, 2)
	})
}

func TestIndicatorSetMerge(t *testing.T) {
	a := IndicatorSet{
		Positive: []Indicator{{Pattern: "consent", Weight: 0.2}},
		Negative: []Indicator{{Pattern: "force", Weight: 0.3}},
	}
	b := IndicatorSet{
		Negative: []Indicator{{Pattern: "coerce", Weight: 0.4}},
	}
	merged := a.Merge(b)
	assert.Len(t, merged.Positive, 1)
	assert.Len(t, merged.Negative, 2)
	assert.Len(t, a.Negative, 1, "merge must not mutate the receiver")
}

func TestMatchesAnyNegative(t *testing.T) {
	set := IndicatorSet{Negative: []Indicator{{Pattern: "cause harm", Weight: 0.5}}}
	benign := types.ActionProposal{ActionType: "assist_user"}
	harmful := types.ActionProposal{
		ActionType: "act",
		Content:    map[string]interface{}{"intent": "cause harm to bystanders"},
	}
	assert.False(t, set.MatchesAnyNegative(benign, nil))
	assert.True(t, set.MatchesAnyNegative(harmful, nil))
}
