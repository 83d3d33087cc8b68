package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`

	// Evaluation settings
	Evaluation EvaluationConfig `yaml:"evaluation"`

	// Resolution chain settings
	Resolution ResolutionConfig `yaml:"resolution"`

	// Risk scoring settings
	Risk RiskConfig `yaml:"risk"`

	// Precedent store settings
	Precedent PrecedentConfig `yaml:"precedent"`

	// Decision ledger settings
	Ledger LedgerConfig `yaml:"ledger"`

	// Candidate selection settings
	Selection SelectionConfig `yaml:"selection"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text", "json"
	File   string `yaml:"file"`   // Optional log file path
}

type EvaluationConfig struct {
	// ApprovalThreshold is the score above which an evaluator approves.
	ApprovalThreshold float64 `yaml:"approval_threshold"`

	// FrameworkWeights overrides the default per-evaluator weights.
	FrameworkWeights map[string]float64 `yaml:"framework_weights"`
}

type ResolutionConfig struct {
	// ConfidenceThreshold is the minimum confidence for a strategy's
	// result to be accepted by the chain.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

type RiskConfig struct {
	// Threshold is the dissonance score above which approved
	// proposals are suppressed.
	Threshold float64 `yaml:"threshold"`

	// PrincipleWeights overrides the default per-principle weights.
	PrincipleWeights map[string]float64 `yaml:"principle_weights"`

	// PrinciplesFile optionally replaces the built-in principle set
	// with one loaded from a YAML file.
	PrinciplesFile string `yaml:"principles_file"`
}

type PrecedentConfig struct {
	Backend  string `yaml:"backend"` // "memory", "bolt"
	BoltPath string `yaml:"bolt_path"`

	// MaxCases caps retained precedents; zero means unlimited.
	MaxCases int `yaml:"max_cases"`

	// RelatedActions groups action types that earn partial
	// similarity credit against each other.
	RelatedActions map[string][]string `yaml:"related_actions"`
}

type LedgerConfig struct {
	Type        string  `yaml:"type"` // "memory", "jsonl", "sqlite", "postgres"
	JSONLPath   string  `yaml:"jsonl_path"`
	SQLitePath  string  `yaml:"sqlite_path"`
	PostgresDSN string  `yaml:"postgres_dsn"`
	RateLimit   float64 `yaml:"rate_limit"` // Appends per second, 0 disables
	RateBurst   int     `yaml:"rate_burst"`
}

type SelectionConfig struct {
	Policy string `yaml:"policy"` // "weighted_random", "argmax"

	// ResonanceWindow is the decay window in seconds for
	// candidate age weighting.
	ResonanceWindow float64 `yaml:"resonance_window"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Evaluation: EvaluationConfig{
			ApprovalThreshold: 0.6,
		},
		Resolution: ResolutionConfig{
			ConfidenceThreshold: 0.7,
		},
		Risk: RiskConfig{
			Threshold: 0.7,
		},
		Precedent: PrecedentConfig{
			Backend:  "memory",
			BoltPath: filepath.Join(homeDir, ".arbiter", "precedents.db"),
			MaxCases: 10000,
		},
		Ledger: LedgerConfig{
			Type:       "memory",
			JSONLPath:  filepath.Join(homeDir, ".arbiter", "decisions.jsonl"),
			SQLitePath: filepath.Join(homeDir, ".arbiter", "ledger.db"),
			RateBurst:  16,
		},
		Selection: SelectionConfig{
			Policy:          "weighted_random",
			ResonanceWindow: 3600,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("logging", cfg.Logging)
	v.SetDefault("evaluation", cfg.Evaluation)
	v.SetDefault("resolution", cfg.Resolution)
	v.SetDefault("risk", cfg.Risk)
	v.SetDefault("precedent", cfg.Precedent)
	v.SetDefault("ledger", cfg.Ledger)
	v.SetDefault("selection", cfg.Selection)

	// Load from environment variables
	v.SetEnvPrefix("ARBITER")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".arbiter")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".arbiter"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".arbiter", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("ARBITER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("ARBITER_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if threshold := os.Getenv("ARBITER_RISK_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Risk.Threshold = t
		}
	}

	if backend := os.Getenv("ARBITER_PRECEDENT_BACKEND"); backend != "" {
		cfg.Precedent.Backend = backend
	}
	if path := os.Getenv("ARBITER_BOLT_PATH"); path != "" {
		cfg.Precedent.BoltPath = path
	}

	if ledger := os.Getenv("ARBITER_LEDGER_TYPE"); ledger != "" {
		cfg.Ledger.Type = ledger
	}
	if path := os.Getenv("ARBITER_JSONL_PATH"); path != "" {
		cfg.Ledger.JSONLPath = path
	}
	if path := os.Getenv("ARBITER_SQLITE_PATH"); path != "" {
		cfg.Ledger.SQLitePath = path
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Ledger.PostgresDSN = dsn
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Ledger.PostgresDSN = dsn
	}

	if policy := os.Getenv("ARBITER_SELECTION_POLICY"); policy != "" {
		cfg.Selection.Policy = policy
	}
}
