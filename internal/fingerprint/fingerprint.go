// Package fingerprint derives the deterministic audit hash of a
// decision. The hash covers decision inputs and outputs only; issuance
// time is deliberately excluded so identical evaluations produce
// identical fingerprints.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/ethicore/arbiter/internal/types"
)

// payload is the canonicalized structure the fingerprint hashes.
type payload struct {
	ActionType       string  `json:"action_type"`
	ContentDigest    string  `json:"content_digest"`
	ContextDigest    string  `json:"context_digest"`
	RiskScore        float64 `json:"risk_score"`
	PrecedentWeight  float64 `json:"precedent_weight"`
	EthicalSignature string  `json:"ethical_signature"`
}

// Generator produces decision fingerprints. It is stateless; the zero
// value is ready to use.
type Generator struct{}

// NewGenerator creates a fingerprint generator.
func NewGenerator() *Generator { return &Generator{} }

// Generate hashes the decision inputs into an opaque hex fingerprint.
// Scores are rounded to four decimals before hashing so jitter below
// audit precision cannot split otherwise identical decisions.
func (g *Generator) Generate(proposal types.ActionProposal, evalCtx map[string]interface{}, riskScore, precedentWeight float64) (string, error) {
	contentDigest, err := digestMap(proposal.Content)
	if err != nil {
		return "", fmt.Errorf("digest content: %w", err)
	}
	contextDigest, err := digestMap(mergedContext(proposal, evalCtx))
	if err != nil {
		return "", fmt.Errorf("digest context: %w", err)
	}

	p := payload{
		ActionType:       proposal.ActionType,
		ContentDigest:    contentDigest,
		ContextDigest:    contextDigest,
		RiskScore:        round4(riskScore),
		PrecedentWeight:  round4(precedentWeight),
		EthicalSignature: Signature(proposal, evalCtx),
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Signature builds the deterministic ethical signature string: sorted
// context dimension:value pairs, then priority and action type.
func Signature(proposal types.ActionProposal, evalCtx map[string]interface{}) string {
	merged := mergedContext(proposal, evalCtx)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", k, merged[k]))
	}
	parts = append(parts, fmt.Sprintf("priority:%.4f", proposal.Priority))
	parts = append(parts, "action:"+proposal.ActionType)
	return strings.Join(parts, "|")
}

func digestMap(m map[string]interface{}) (string, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func mergedContext(proposal types.ActionProposal, evalCtx map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(proposal.Context)+len(evalCtx))
	for k, v := range proposal.Context {
		merged[k] = v
	}
	for k, v := range evalCtx {
		merged[k] = v
	}
	return merged
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
