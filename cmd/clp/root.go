package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "clp",
	Short: "clp - a local reverse proxy for AI CLI clients",
	Long: `clp is a local reverse proxy that sits between AI CLI clients
(Claude CLI, Codex CLI) and their upstream HTTP APIs.

It provides:
  - Active-first and weight-based load balancing across upstream configs
  - Endpoint blocking, header stripping, and body rewriting
  - Model-based and forced-config routing
  - A realtime WebSocket event feed for request lifecycle observability
  - Prometheus metrics and a per-service request log`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "clp.yaml"
	}
	return home + "/.clp/clp.yaml"
}
