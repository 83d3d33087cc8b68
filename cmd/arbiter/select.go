package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethicore/arbiter/internal/types"
)

// selectCmd arbitrates between competing candidate actions.
var selectCmd = &cobra.Command{
	Use:   "select [candidates.json]",
	Short: "Select one action from competing candidates",
	Long: `Reads a set of candidate states from a JSON file (or stdin), gates
each candidate through evaluation, weights the survivors by amplitude,
confidence, context resonance and age decay, and picks one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSelect,
}

func init() {
	selectCmd.Flags().Bool("json", false, "Output machine-readable JSON")
	selectCmd.Flags().Duration("timeout", 10*time.Second, "Selection deadline")
	selectCmd.Flags().Duration("window", time.Hour, "Coherence window for age decay")
}

// selectionInput is the on-disk shape accepted by select.
type selectionInput struct {
	Candidates    []types.CandidateState `json:"candidates"`
	AmbientVector []float64              `json:"ambient_vector,omitempty"`
}

func runSelect(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read candidates: %w", err)
	}

	var in selectionInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("invalid candidates JSON: %w", err)
	}
	if len(in.Candidates) == 0 {
		return fmt.Errorf("no candidates given")
	}

	eng, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	window, _ := cmd.Flags().GetDuration("window")
	if !cmd.Flags().Changed("window") && cfg.Selection.ResonanceWindow > 0 {
		window = time.Duration(cfg.Selection.ResonanceWindow * float64(time.Second))
	}
	result, err := eng.SelectCandidate(ctx, in.Candidates, in.AmbientVector, time.Now().UTC(), window)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	printSelection(result)
	return nil
}

func printSelection(r types.SelectionResult) {
	if r.NoValid {
		fmt.Printf("NO VALID CANDIDATES  (%d rejected, policy %s)\n", len(r.Rejected), r.Policy)
		for _, d := range r.Rejected {
			fmt.Printf("  rejected: %s (%s)\n", d.ID, d.SuppressionReason)
		}
		return
	}
	fmt.Printf("SELECTED %s  (policy %s)\n", r.Selected.ID, r.Policy)
	for _, w := range r.Weights {
		marker := " "
		if w.Candidate.ID == r.Selected.ID {
			marker = "*"
		}
		fmt.Printf("  %s %-20s weight %.4f\n", marker, w.Candidate.ID, w.Weight)
	}
	if len(r.Rejected) > 0 {
		fmt.Printf("  %d candidate(s) rejected at the gate\n", len(r.Rejected))
	}
}
