// Package cmd implements the agentim CLI.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configPath string

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentim.yaml"
	}
	return filepath.Join(home, ".agentim", "agentim.yaml")
}

// Execute runs the CLI.
func Execute() {
	root := &cobra.Command{
		Use:           "agentim",
		Short:         "AgentIM agent daemon: keeps a fleet of agents reachable from the coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to config file")

	root.AddCommand(runCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
