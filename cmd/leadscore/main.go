package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/config"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
	log        *logger.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "leadscore",
		Short:         "encode lead data and train the lead-scoring model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("LEADSCORE_CONFIG"), "path to a YAML or JSON config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level regardless of log.level")

	root.AddCommand(
		encodeCmd(a),
		trainCmd(a),
		runCmd(a),
		scheduleCmd(a),
		importCSVCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if a.verbose {
		if err := log.SetLevel("debug"); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.log = log.WithFields(logger.String("env", cfg.Environment))
	return nil
}
