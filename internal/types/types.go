package types

import (
	"time"
)

// ActionProposal is a candidate action submitted for policy evaluation.
// Immutable once created; the core never mutates Content or Context.
type ActionProposal struct {
	ActionType string                 `json:"action_type"`
	Content    map[string]interface{} `json:"content"`
	Context    map[string]interface{} `json:"context"`
	Priority   float64                `json:"priority"` // [0,1]
	CreatedAt  time.Time              `json:"created_at"`
}

// EvaluationResult is one evaluator's verdict on a proposal.
// Never mutated after creation.
type EvaluationResult struct {
	FrameworkID string                 `json:"framework_id"`
	Approved    bool                   `json:"approved"`
	Confidence  float64                `json:"confidence"` // [0,1]
	Reasoning   string                 `json:"reasoning"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Conflict records a disagreement between two evaluators' verdicts.
// Symmetric: the score is independent of pair ordering.
type Conflict struct {
	FrameworkA    string  `json:"framework_a"`
	FrameworkB    string  `json:"framework_b"`
	ConflictScore float64 `json:"conflict_score"` // [0,1]
	ReasoningA    string  `json:"reasoning_a"`
	ReasoningB    string  `json:"reasoning_b"`
}

// ResolutionResult is the outcome of the resolution strategy chain.
type ResolutionResult struct {
	Approved           bool       `json:"approved"`
	Confidence         float64    `json:"confidence"` // [0,1]
	PrimaryFramework   string     `json:"primary_framework"`
	Method             string     `json:"method"`
	Reasoning          string     `json:"reasoning"`
	RemainingConflicts []Conflict `json:"remaining_conflicts,omitempty"`
}

// RiskAssessment is the weighted violation aggregate for a proposal.
type RiskAssessment struct {
	Score                  float64  `json:"score"`             // [0,1]
	PrimaryViolation       string   `json:"primary_violation"` // principle with largest weighted contribution
	ContributingPrinciples []string `json:"contributing_principles,omitempty"`
	Distance               float64  `json:"distance"` // >= 0, normalized Euclidean distance from the ideal vector
}

// ExceedsThreshold reports whether the risk score crosses the given gate.
func (r RiskAssessment) ExceedsThreshold(t float64) bool {
	return r.Score > t
}

// DecisionOutcome captures how a recorded case turned out.
type DecisionOutcome struct {
	Approved         bool    `json:"approved"`
	Valence          float64 `json:"valence"` // [0,1], how well the outcome went
	ResolutionAction string  `json:"resolution_action,omitempty"`
}

// PrecedentCase is one historical decision stored for similarity lookup.
// Append-only: cases are never mutated, only appended and optionally
// evicted by the retention policy.
type PrecedentCase struct {
	ActionType string                 `json:"action_type"`
	Context    map[string]interface{} `json:"context"`
	Content    map[string]interface{} `json:"content"`
	Outcome    DecisionOutcome        `json:"decision_outcome"`
	RecordedAt time.Time              `json:"recorded_at"`
}

// PrecedentAnalysis summarizes how similar historical cases bear on a
// live proposal.
type PrecedentAnalysis struct {
	Weight            float64         `json:"weight"`     // [0,1], 0.5 = neutral prior
	Confidence        float64         `json:"confidence"` // [0,1]
	Matches           []PrecedentCase `json:"matches,omitempty"`
	RecommendedAction string          `json:"recommended_action,omitempty"`
}

// HarmonizationTrace preserves the intermediate pipeline state that led
// to a harmonized decision, for audit.
type HarmonizationTrace struct {
	Evaluations      []EvaluationResult `json:"evaluations"`
	Conflicts        []Conflict         `json:"conflicts,omitempty"`
	Resolution       *ResolutionResult  `json:"resolution,omitempty"`
	PrecedentWeight  float64            `json:"precedent_weight"`
	PrecedentMatches int                `json:"precedent_matches"`
}

// Decision is the single auditable output of one evaluation call.
// Immutable; appended to the decision ledger by the caller.
type Decision struct {
	ID                string              `json:"id"`
	Approved          bool                `json:"approved"`
	RiskScore         float64             `json:"risk_score"`
	Fingerprint       string              `json:"fingerprint"`
	Confidence        float64             `json:"confidence"`
	SuppressionReason string              `json:"suppression_reason,omitempty"`
	Alternatives      []ActionProposal    `json:"alternatives,omitempty"`
	Trace             *HarmonizationTrace `json:"trace,omitempty"`
	IssuedAt          time.Time           `json:"issued_at"`
}

// CandidateState is a caller-owned candidate submitted to the weighted
// gate. The core only reads it and attaches a computed weight.
type CandidateState struct {
	ID             string         `json:"id"`
	Proposal       ActionProposal `json:"proposal"`
	PriorAmplitude float64        `json:"prior_amplitude"` // [0,1]
	ContextVector  []float64      `json:"context_vector"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CandidateWeight pairs a surviving candidate with its normalized
// selection weight and the decision that admitted it.
type CandidateWeight struct {
	Candidate CandidateState `json:"candidate"`
	Decision  Decision       `json:"decision"`
	Weight    float64        `json:"weight"` // normalized across survivors
}

// SelectionResult is the outcome of a weighted-gate run.
type SelectionResult struct {
	Selected *CandidateState   `json:"selected,omitempty"`
	Weights  []CandidateWeight `json:"weights,omitempty"`
	Rejected []Decision        `json:"rejected,omitempty"`
	NoValid  bool              `json:"no_valid_candidates"`
	Policy   string            `json:"policy"`
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
