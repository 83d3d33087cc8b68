package evaluation

// Built-in framework evaluators. Each encodes one policy perspective as
// positive and negative weighted indicators; deployments extend or
// replace these through configuration.

func floatPtr(f float64) *float64 { return &f }

// NewHarmPreventionEvaluator flags proposals that describe harmful,
// destructive, or safety-defeating behavior.
func NewHarmPreventionEvaluator() *FrameworkEvaluator {
	return NewFrameworkEvaluator("harm_prevention", 1.0, 0, IndicatorSet{
		Positive: []Indicator{
			{Pattern: "protect", Weight: 0.2},
			{Pattern: "prevent harm", Weight: 0.3},
			{Pattern: "safety check", Weight: 0.2},
			{Pattern: "assist", Weight: 0.15},
		},
		Negative: []Indicator{
			{Pattern: "bypass safety override", Weight: 0.5},
			{Pattern: "disable safeguard", Weight: 0.45},
			{Pattern: "cause harm", Weight: 0.5},
			{Pattern: "destroy", Weight: 0.35},
			{Pattern: "attack", Weight: 0.35},
			{Field: "harm_risk", Min: floatPtr(0.7), Weight: 0.4},
		},
	})
}

// NewAutonomyEvaluator favors proposals that preserve user agency and
// informed consent.
func NewAutonomyEvaluator() *FrameworkEvaluator {
	return NewFrameworkEvaluator("autonomy", 0.9, 0, IndicatorSet{
		Positive: []Indicator{
			{Pattern: "consent", Weight: 0.25},
			{Pattern: "user choice", Weight: 0.25},
			{Pattern: "opt in", Weight: 0.2},
			{Pattern: "inform", Weight: 0.15},
		},
		Negative: []Indicator{
			{Pattern: "without consent", Weight: 0.45},
			{Pattern: "force", Weight: 0.3},
			{Pattern: "coerce", Weight: 0.4},
			{Pattern: "override user", Weight: 0.4},
			{Field: "autonomy_level", Max: floatPtr(0.2), Weight: 0.25},
		},
	})
}

// NewFairnessEvaluator checks for discriminatory or biased treatment.
func NewFairnessEvaluator() *FrameworkEvaluator {
	return NewFrameworkEvaluator("fairness", 0.85, 0, IndicatorSet{
		Positive: []Indicator{
			{Pattern: "equal treatment", Weight: 0.25},
			{Pattern: "impartial", Weight: 0.2},
			{Pattern: "transparent criteria", Weight: 0.2},
		},
		Negative: []Indicator{
			{Pattern: "discriminate", Weight: 0.45},
			{Pattern: "exclude group", Weight: 0.4},
			{Pattern: "preferential access", Weight: 0.3},
			{Field: "bias_risk", Min: floatPtr(0.6), Weight: 0.35},
		},
	})
}

// NewWellbeingEvaluator scores proposals on expected benefit to the
// people affected.
func NewWellbeingEvaluator() *FrameworkEvaluator {
	return NewFrameworkEvaluator("wellbeing", 0.8, 0, IndicatorSet{
		Positive: []Indicator{
			{Pattern: "support", Weight: 0.2},
			{Pattern: "improve", Weight: 0.2},
			{Pattern: "care", Weight: 0.2},
			{Pattern: "assist", Weight: 0.15},
			{Field: "personal_impact", Min: floatPtr(0.6), Weight: 0.15},
		},
		Negative: []Indicator{
			{Pattern: "distress", Weight: 0.35},
			{Pattern: "neglect", Weight: 0.35},
			{Pattern: "deprive", Weight: 0.4},
		},
	})
}

// NewTransparencyEvaluator penalizes concealment and deception.
func NewTransparencyEvaluator() *FrameworkEvaluator {
	return NewFrameworkEvaluator("transparency", 0.75, 0, IndicatorSet{
		Positive: []Indicator{
			{Pattern: "disclose", Weight: 0.25},
			{Pattern: "explain", Weight: 0.2},
			{Pattern: "audit", Weight: 0.15},
		},
		Negative: []Indicator{
			{Pattern: "deceive", Weight: 0.45},
			{Pattern: "conceal", Weight: 0.35},
			{Pattern: "mislead", Weight: 0.4},
			{Pattern: "secret", Weight: 0.2},
		},
	})
}

// DefaultEvaluators returns the standard framework set in canonical
// order.
func DefaultEvaluators() []Evaluator {
	return []Evaluator{
		NewHarmPreventionEvaluator(),
		NewAutonomyEvaluator(),
		NewFairnessEvaluator(),
		NewWellbeingEvaluator(),
		NewTransparencyEvaluator(),
	}
}
