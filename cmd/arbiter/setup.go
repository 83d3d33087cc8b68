package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethicore/arbiter/internal/audit"
	"github.com/ethicore/arbiter/internal/config"
	"github.com/ethicore/arbiter/internal/engine"
	"github.com/ethicore/arbiter/internal/evaluation"
	"github.com/ethicore/arbiter/internal/precedent"
	"github.com/ethicore/arbiter/internal/risk"
	"github.com/ethicore/arbiter/internal/storage"
)

// buildEngine assembles an engine from configuration. The returned
// cleanup function closes the engine and any storage it opened.
func buildEngine(cfg *config.Config, logger *logrus.Logger) (*engine.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	backend, err := buildPrecedentBackend(cfg, logger, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	sink, err := buildAuditSink(cfg, logger, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	principles, err := principlesFromConfig(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	eng, err := engine.New(engine.Options{
		Logger:           logger,
		Evaluators:       evaluatorsFromConfig(cfg),
		Principles:       principles,
		RiskThreshold:    cfg.Risk.Threshold,
		ChainThreshold:   cfg.Resolution.ConfidenceThreshold,
		PrecedentBackend: backend,
		RelatedActions:   precedent.RelatedActions(cfg.Precedent.RelatedActions),
		MaxPrecedents:    cfg.Precedent.MaxCases,
		AuditSink:        sink,
		SelectionPolicy:  cfg.Selection.Policy,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, eng.Close)

	return eng, cleanup, nil
}

func buildPrecedentBackend(cfg *config.Config, logger *logrus.Logger, closers *[]func()) (precedent.Backend, error) {
	switch cfg.Precedent.Backend {
	case "", "memory":
		return precedent.NewMemoryBackend(), nil
	case "bolt":
		backend, err := storage.NewBoltBackend(cfg.Precedent.BoltPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open precedent store: %w", err)
		}
		*closers = append(*closers, func() { backend.Close() })
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown precedent backend %q", cfg.Precedent.Backend)
	}
}

func buildAuditSink(cfg *config.Config, logger *logrus.Logger, closers *[]func()) (audit.Sink, error) {
	var sink audit.Sink
	switch cfg.Ledger.Type {
	case "", "memory":
		sink = audit.NewMemorySink()
	case "jsonl":
		ledger, err := audit.NewJSONLSink(cfg.Ledger.JSONLPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open decision ledger: %w", err)
		}
		*closers = append(*closers, func() { ledger.Close() })
		sink = ledger
	case "sqlite":
		ledger, err := storage.NewSQLiteLedger(cfg.Ledger.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open decision ledger: %w", err)
		}
		*closers = append(*closers, func() { ledger.Close() })
		sink = ledger
	case "postgres":
		ledger, err := storage.NewPostgresLedger(cfg.Ledger.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open decision ledger: %w", err)
		}
		*closers = append(*closers, func() { ledger.Close() })
		sink = ledger
	default:
		return nil, fmt.Errorf("unknown ledger type %q", cfg.Ledger.Type)
	}

	if cfg.Ledger.RateLimit > 0 {
		sink = audit.NewRateLimitedSink(sink, cfg.Ledger.RateLimit, cfg.Ledger.RateBurst)
	}
	return sink, nil
}

// principlesFromConfig returns the configured principle set: a custom
// file when given, otherwise the defaults, with any weight overrides
// applied on top.
func principlesFromConfig(cfg *config.Config) ([]risk.Principle, error) {
	var principles []risk.Principle
	if cfg.Risk.PrinciplesFile != "" {
		loaded, err := config.LoadPrinciples(cfg.Risk.PrinciplesFile)
		if err != nil {
			return nil, err
		}
		principles = loaded
	} else {
		principles = risk.DefaultPrinciples()
	}
	for i := range principles {
		if w, ok := cfg.Risk.PrincipleWeights[principles[i].Name]; ok {
			principles[i].Weight = w
		}
	}
	return principles, nil
}

// evaluatorsFromConfig rebuilds the default evaluators with the
// configured approval threshold and any framework weight overrides.
func evaluatorsFromConfig(cfg *config.Config) []evaluation.Evaluator {
	defaults := evaluation.DefaultEvaluators()
	if cfg.Evaluation.ApprovalThreshold == 0 && len(cfg.Evaluation.FrameworkWeights) == 0 {
		return defaults
	}
	out := make([]evaluation.Evaluator, len(defaults))
	for i, ev := range defaults {
		weight := ev.Weight()
		if w, ok := cfg.Evaluation.FrameworkWeights[ev.Name()]; ok {
			weight = w
		}
		out[i] = evaluation.NewFrameworkEvaluator(ev.Name(), weight, cfg.Evaluation.ApprovalThreshold, ev.CoreValues())
	}
	return out
}
