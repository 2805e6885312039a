package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrel-ai/noesis/internal/config"
	"github.com/kestrel-ai/noesis/internal/workers"
	"github.com/kestrel-ai/noesis/pkg/models"
)

var workersManifestPath string

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Manage the worker manifest",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers declared in the manifest",
	RunE:  runWorkersList,
}

var workersValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the manifest for errors",
	RunE:  runWorkersValidate,
}

func init() {
	workersCmd.PersistentFlags().StringVar(&workersManifestPath, "manifest", "", "Path to the worker manifest (overrides config)")
	workersCmd.AddCommand(workersListCmd)
	workersCmd.AddCommand(workersValidateCmd)
}

func resolveManifest() (string, error) {
	if workersManifestPath != "" {
		return workersManifestPath, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	if cfg.Workers.Manifest == "" {
		return "", fmt.Errorf("no worker manifest configured; pass --manifest or set workers.manifest")
	}
	return cfg.Workers.Manifest, nil
}

func runWorkersList(cmd *cobra.Command, args []string) error {
	path, err := resolveManifest()
	if err != nil {
		return err
	}

	list, err := workers.LoadManifest(path)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No workers declared.")
		return nil
	}

	for _, w := range list {
		caps := make([]string, 0, len(w.Capabilities))
		for c := range w.Capabilities {
			caps = append(caps, c)
		}
		sort.Strings(caps)
		fmt.Printf("%-20s %s  [%s]\n", w.ID, workerStatusColor(w.Status), strings.Join(caps, ", "))
	}
	return nil
}

func runWorkersValidate(cmd *cobra.Command, args []string) error {
	path, err := resolveManifest()
	if err != nil {
		return err
	}

	list, err := workers.LoadManifest(path)
	if err != nil {
		color.Red("✗ %v", err)
		return err
	}
	color.Green("✓ %s: %d workers", path, len(list))
	return nil
}

func workerStatusColor(status models.WorkerStatus) string {
	switch status {
	case models.WorkerStatusIdle:
		return color.GreenString(string(status))
	case models.WorkerStatusBusy:
		return color.YellowString(string(status))
	default:
		return color.RedString(string(status))
	}
}
