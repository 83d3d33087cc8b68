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

var precedentCmd = &cobra.Command{
	Use:   "precedent",
	Short: "Manage the precedent store",
}

// precedentAddCmd records a decided case with its observed outcome.
var precedentAddCmd = &cobra.Command{
	Use:   "add [case.json]",
	Short: "Record a decided case and its outcome",
	Long: `Reads a precedent case from a JSON file (or stdin): the original
proposal, its evaluation context and the observed outcome. Future
evaluations of similar proposals will weigh this case.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrecedentAdd,
}

// precedentStatsCmd summarizes the stored precedent corpus.
var precedentStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show precedent store statistics",
	RunE:  runPrecedentStats,
}

func init() {
	precedentCmd.AddCommand(precedentAddCmd)
	precedentCmd.AddCommand(precedentStatsCmd)
}

// caseInput is the on-disk shape accepted by precedent add.
type caseInput struct {
	types.ActionProposal
	EvalContext map[string]interface{} `json:"eval_context,omitempty"`
	Outcome     types.DecisionOutcome  `json:"outcome"`
}

func runPrecedentAdd(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read case: %w", err)
	}

	var in caseInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("invalid case JSON: %w", err)
	}

	eng, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := eng.AddPrecedent(ctx, in.ActionProposal, in.EvalContext, in.Outcome); err != nil {
		return err
	}
	fmt.Println("precedent recorded")
	return nil
}

func runPrecedentStats(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := eng.PrecedentCount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("backend: %s\n", cfg.Precedent.Backend)
	fmt.Printf("cases:   %d\n", n)
	if cfg.Precedent.MaxCases > 0 {
		fmt.Printf("limit:   %d\n", cfg.Precedent.MaxCases)
	}
	return nil
}
