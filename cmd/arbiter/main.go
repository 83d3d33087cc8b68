package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethicore/arbiter/internal/config"
	"github.com/ethicore/arbiter/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter - multi-framework decision arbitration",
	Long: `Arbiter evaluates proposed actions against multiple ethical
frameworks, resolves conflicts between them, scores residual risk and
records every decision with a verifiable fingerprint.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fallback := logrus.New()
			fallback.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .arbiter/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`Arbiter {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(precedentCmd)
}
