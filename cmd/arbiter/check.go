package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethicore/arbiter/internal/errors"
	"github.com/ethicore/arbiter/internal/types"
)

// checkCmd evaluates a single action proposal and prints the decision.
var checkCmd = &cobra.Command{
	Use:   "check [proposal.json]",
	Short: "Evaluate an action proposal",
	Long: `Evaluates an action proposal read from a JSON file (or stdin when
no file is given) and prints the resulting decision.

Harmonized mode runs the full pipeline: framework evaluation, conflict
resolution, risk scoring and precedent analysis. Simple mode applies
only the risk gate.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("simple", false, "Risk gate only, skip framework harmonization")
	checkCmd.Flags().Bool("json", false, "Output machine-readable JSON")
	checkCmd.Flags().Duration("timeout", 10*time.Second, "Evaluation deadline")
}

func runCheck(cmd *cobra.Command, args []string) error {
	proposal, evalCtx, err := readProposal(args)
	if err != nil {
		return err
	}

	eng, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	simple, _ := cmd.Flags().GetBool("simple")
	var decision types.Decision
	if simple {
		decision, err = eng.EvaluateSimple(ctx, proposal, evalCtx)
	} else {
		decision, err = eng.EvaluateHarmonized(ctx, proposal, evalCtx)
	}
	if err != nil && !errors.IsRejection(err) {
		// Degraded evaluations still produce a usable decision.
		logger.WithError(err).Warn("Evaluation degraded")
		err = nil
	}

	// Fail-closed rejections still carry a decision worth printing; the
	// error propagates so the exit code reflects the failure.
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		if encErr := json.NewEncoder(os.Stdout).Encode(decision); encErr != nil {
			return encErr
		}
		return err
	}
	printDecision(decision)
	return err
}

// proposalInput is the on-disk shape accepted by check: the proposal
// plus an optional evaluation context.
type proposalInput struct {
	types.ActionProposal
	EvalContext map[string]interface{} `json:"eval_context,omitempty"`
}

func readProposal(args []string) (types.ActionProposal, map[string]interface{}, error) {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = readStdin()
	}
	if err != nil {
		return types.ActionProposal{}, nil, fmt.Errorf("failed to read proposal: %w", err)
	}

	var in proposalInput
	if err := json.Unmarshal(data, &in); err != nil {
		return types.ActionProposal{}, nil, fmt.Errorf("invalid proposal JSON: %w", err)
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	return in.ActionProposal, in.EvalContext, nil
}

func readStdin() ([]byte, error) {
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
		return nil, fmt.Errorf("no proposal file given and stdin is a terminal")
	}
	return io.ReadAll(os.Stdin)
}

func printDecision(d types.Decision) {
	verdict := "REJECTED"
	if d.Approved {
		verdict = "APPROVED"
	}
	fmt.Printf("%s  (confidence %.2f, risk %.2f)\n", verdict, d.Confidence, d.RiskScore)
	fmt.Printf("  id:          %s\n", d.ID)
	fmt.Printf("  fingerprint: %s\n", d.Fingerprint)
	if d.SuppressionReason != "" {
		fmt.Printf("  suppressed:  %s\n", d.SuppressionReason)
	}
	for _, alt := range d.Alternatives {
		fmt.Printf("  alternative: %s\n", alt.ActionType)
	}
	if d.Trace != nil && d.Trace.Resolution != nil {
		fmt.Printf("  resolution:  %s (%s)\n", d.Trace.Resolution.Method, d.Trace.Resolution.Reasoning)
	}
}
