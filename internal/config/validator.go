package config

import (
	"fmt"
	"strings"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	return sb.String()
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	vr := &ValidationResult{Valid: true}

	if c.Evaluation.ApprovalThreshold < 0 || c.Evaluation.ApprovalThreshold > 1 {
		vr.AddError("evaluation.approval_threshold must be in [0,1], got %.2f", c.Evaluation.ApprovalThreshold)
	}
	if c.Resolution.ConfidenceThreshold < 0 || c.Resolution.ConfidenceThreshold > 1 {
		vr.AddError("resolution.confidence_threshold must be in [0,1], got %.2f", c.Resolution.ConfidenceThreshold)
	}
	if c.Risk.Threshold < 0 || c.Risk.Threshold > 1 {
		vr.AddError("risk.threshold must be in [0,1], got %.2f", c.Risk.Threshold)
	}
	for name, w := range c.Risk.PrincipleWeights {
		if w < 0 {
			vr.AddError("risk.principle_weights[%s] must be non-negative, got %.2f", name, w)
		}
	}
	for name, w := range c.Evaluation.FrameworkWeights {
		if w < 0 {
			vr.AddError("evaluation.framework_weights[%s] must be non-negative, got %.2f", name, w)
		}
	}

	switch c.Precedent.Backend {
	case "memory", "bolt":
	default:
		vr.AddError("precedent.backend must be \"memory\" or \"bolt\", got %q", c.Precedent.Backend)
	}
	if c.Precedent.Backend == "bolt" && c.Precedent.BoltPath == "" {
		vr.AddError("precedent.bolt_path is required when precedent.backend is \"bolt\"")
	}
	if c.Precedent.MaxCases < 0 {
		vr.AddError("precedent.max_cases must be non-negative, got %d", c.Precedent.MaxCases)
	}

	switch c.Ledger.Type {
	case "memory", "jsonl", "sqlite", "postgres":
	default:
		vr.AddError("ledger.type must be \"memory\", \"jsonl\", \"sqlite\" or \"postgres\", got %q", c.Ledger.Type)
	}
	if c.Ledger.Type == "jsonl" && c.Ledger.JSONLPath == "" {
		vr.AddError("ledger.jsonl_path is required when ledger.type is \"jsonl\"")
	}
	if c.Ledger.Type == "sqlite" && c.Ledger.SQLitePath == "" {
		vr.AddError("ledger.sqlite_path is required when ledger.type is \"sqlite\"")
	}
	if c.Ledger.Type == "postgres" && c.Ledger.PostgresDSN == "" {
		vr.AddError("ledger.postgres_dsn is required when ledger.type is \"postgres\"")
	}
	if c.Ledger.RateLimit < 0 {
		vr.AddError("ledger.rate_limit must be non-negative, got %.2f", c.Ledger.RateLimit)
	}

	switch c.Selection.Policy {
	case "weighted_random", "argmax":
	default:
		vr.AddError("selection.policy must be \"weighted_random\" or \"argmax\", got %q", c.Selection.Policy)
	}
	if c.Selection.ResonanceWindow <= 0 {
		vr.AddWarning("selection.resonance_window is not positive, decay disabled")
	}

	if vr.HasErrors() {
		return vr.asError()
	}
	return nil
}

func (vr *ValidationResult) asError() error {
	return fmt.Errorf("%s", strings.TrimRight(vr.Error(), "\n"))
}
