package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "noesis",
	Short: "Graph-of-thought reasoning engine",
	Long: `Noesis decomposes a question into a dependency graph of sub-problems,
executes them in priority order as their dependencies complete, and
synthesizes the results into a final answer.

Core capabilities:
- Breaks questions into a DAG of analysis and task nodes
- Schedules ready nodes by urgency with dependency buffering
- Delegates capability-tagged tasks to matched workers
- Persists finished graphs to a content-addressed store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
