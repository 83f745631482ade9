// Package cmd provides the CLI commands for cranbench.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cranbench/internal/config"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/logging"
	"github.com/Aman-CERP/cranbench/internal/profiling"
	"github.com/Aman-CERP/cranbench/pkg/version"
)

// Global flags
var (
	configPath string
	debugMode  bool
)

// Profiling flags
var (
	profileOpts    profiling.Options
	profileSession *profiling.Session
)

var loggingCleanup func()

// NewRootCmd creates the root command for the cranbench CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cranbench",
		Short: "Sweep retrieval configurations over the Cranfield collection",
		Long: `cranbench builds one search index per configuration (tokenizer x scoring
x field boosts), runs the Cranfield queries against it, writes TREC run
files, scores them with trec_eval and ranks the results in a CSV summary.

Start with 'cranbench doctor' to check the inputs and trec_eval, then run
'cranbench sweep'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("cranbench version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./cranbench.yaml when present)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.cranbench/logs/")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startLoggingAndProfiling
	cmd.PersistentPostRunE = stopLoggingAndProfiling

	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCorpusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLoggingAndProfiling sets up file logging from the config's log
// section and starts any requested profiles.
func startLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	// A broken config is reported by the command itself.
	if cfg, err := config.Load(configPath); err == nil {
		logCfg.Level = cfg.Log.Level
		if cfg.Log.File != "" {
			logCfg.FilePath = cfg.Log.File
		}
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging_started",
		slog.String("log_file", logCfg.FilePath),
		slog.String("version", version.Version))

	if profileOpts.Enabled() {
		profileSession, err = profiling.Start(profileOpts)
		if err != nil {
			return err
		}
	}
	return nil
}

// stopLoggingAndProfiling flushes profiles and closes the log file.
func stopLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		profileSession = nil
	}

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints any error in CLI form.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, cerrors.FormatForCLI(err))
		// PersistentPostRunE does not run after a failed RunE.
		_ = stopLoggingAndProfiling(nil, nil)
	}
	return err
}

// loadConfig loads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
