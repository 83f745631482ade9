package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/cranbench/configs"
	"github.com/Aman-CERP/cranbench/internal/config"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the sweep configuration",
		Long: `Manage cranbench.yaml.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. cranbench.yaml in the working directory, or --config FILE
  3. Environment variables (CRANBENCH_*)`,
		Example: `  # Create cranbench.yaml from the template
  cranbench config init

  # Show the effective configuration
  cranbench config show

  # Show it as JSON
  cranbench config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Create cranbench.yaml from the template",
		Long: `Write the commented configuration template. The file defaults to
cranbench.yaml in the working directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileNames[0]
			if len(args) > 0 {
				path = args[0]
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after defaults, the config file and the
environment have been applied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), configSource())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Newline()
		out.Status("💡", "Use --force to overwrite it with the template")
		return nil
	}

	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "failed to write config file", err).WithDetail("path", path)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Point inputs at your copy of the Cranfield collection")
	out.Status("", "  2. Run 'cranbench doctor' to check it")
	out.Status("", "  3. Run 'cranbench sweep'")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var (
		cfg *config.Config
		err error
	)
	switch source {
	case "merged":
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
	case "defaults":
		cfg = config.NewConfig()
	default:
		return cerrors.ValidationError("unknown source "+source, nil).WithSuggestion("use merged or defaults")
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", map[string]string{
		"merged":   configSource() + " + environment",
		"defaults": "defaults",
	}[source])
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
