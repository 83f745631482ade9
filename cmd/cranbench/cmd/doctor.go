package cmd

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cranbench/internal/config"
	"github.com/Aman-CERP/cranbench/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check inputs, tools and output directories",
		Long: `Run diagnostics to ensure a sweep can complete.

Checks:
  - Configuration is valid
  - Corpus parses and has records
  - Queries and judgments line up
  - trec_eval resolves (warning only: runs are still written without it)
  - Disk space under the index root (200MB minimum)
  - Artifact directories are writable
  - File descriptor limit for the configured workers

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  cranbench doctor

  # JSON output for scripting
  cranbench doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	var results []preflight.CheckResult
	cfg, err := loadConfig()
	if err != nil {
		// Report the config problem alongside checks against the defaults.
		results = append(results, preflight.CheckResult{
			Name:     "config",
			Status:   preflight.StatusFail,
			Message:  err.Error(),
			Required: true,
		})
		cfg = config.NewConfig()
	} else {
		results = append(results, preflight.CheckResult{
			Name:     "config",
			Status:   preflight.StatusPass,
			Message:  configSource(),
			Required: true,
		})
	}

	results = append(results, checker.RunAll(ctx, preflight.Plan{
		Corpus:       cfg.Inputs.Corpus,
		Queries:      cfg.Inputs.Queries,
		Qrels:        cfg.Inputs.Qrels,
		IndexRoot:    cfg.Artifacts.IndexRoot,
		ArtifactDirs: []string{cfg.Artifacts.ResultsDir, cfg.Artifacts.ReportsDir},
		Workers:      cfg.Sweep.Workers,
		Evaluator:    newEvaluator(cfg),
	})...)

	if jsonOutput {
		if err := outputJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return &doctorError{message: "system check failed"}
	}
	return nil
}

// configSource describes where the configuration came from.
func configSource() string {
	if configPath != "" {
		return configPath
	}
	if p := config.FindFile("."); p != "" {
		return p
	}
	return "defaults (no cranbench.yaml)"
}

// doctorError is a custom error for doctor command failures.
type doctorError struct {
	message string
}

func (e *doctorError) Error() string {
	return e.message
}

// JSONOutput is the structure for JSON output.
type JSONOutput struct {
	Status   string            `json:"status"`
	Checks   []JSONCheckResult `json:"checks"`
	Warnings []string          `json:"warnings,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
}

// JSONCheckResult is a single check result for JSON output.
type JSONCheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func outputJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	output := JSONOutput{
		Status: checker.SummaryStatus(results),
		Checks: make([]JSONCheckResult, len(results)),
	}
	output.Errors, output.Warnings = preflight.Issues(results)

	for i, r := range results {
		output.Checks[i] = JSONCheckResult{
			Name:     r.Name,
			Status:   statusToString(r.Status),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func statusToString(s preflight.CheckStatus) string {
	switch s {
	case preflight.StatusPass:
		return "pass"
	case preflight.StatusWarn:
		return "warn"
	case preflight.StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}
