package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clp/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the
proxy listeners.

Examples:
  # Validate the default config path
  clp validate

  # Validate a specific file
  clp validate --config /etc/clp/clp.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  claude listen: %s\n", cfg.Services.Claude.Listen)
	fmt.Printf("  codex listen:  %s\n", cfg.Services.Codex.Listen)
	fmt.Printf("  auth enabled:  %v\n", cfg.Auth.Enabled)
	fmt.Printf("  store dir:     %s\n", cfg.StoreDir)
	if cfg.Metrics.Enabled {
		fmt.Printf("  metrics:       %s%s\n", cfg.Metrics.Listen, cfg.Metrics.Path)
	}
	return nil
}
