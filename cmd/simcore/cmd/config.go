package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stockbot/simcore/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for simulation runs.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  simcore config init -o daily.yaml
  simcore config validate -f daily.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "simcore.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Run.Symbols = []string{"AAPL", "MSFT"}
	cfg.Data.Dir = "./data"

	out, err := cfg.Snapshot()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configInitOutput, out, 0o644); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  simcore run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configValidatePath)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("✓ Configuration is valid: %s\n", configValidatePath)
	fmt.Printf("  Symbols: %v\n", cfg.Run.Symbols)
	fmt.Printf("  Mapping: %s  Fill policy: %s  Journal: %s\n",
		cfg.Mapping.Mode, cfg.Execution.FillPolicy, cfg.Journal.Type)
	return nil
}
