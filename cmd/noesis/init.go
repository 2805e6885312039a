package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrel-ai/noesis/internal/contentstore"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Noesis project",
	Long: `Initialize a directory for use with Noesis.

This command sets up everything needed for project-scoped sessions:
  - Creates the .noesis directory and content store
  - Writes an example .noesis.yaml project config
  - Checks that an Anthropic API key is available

The directory argument is optional and defaults to the current directory.

Examples:
  noesis init              # Initialize current directory
  noesis init ./myproject  # Initialize specific directory
  noesis init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

const exampleProjectConfig = `# Noesis project configuration. Overrides ~/.config/noesis/config.yaml.
store:
  scope: project

workers:
  max: 4
  capabilities: []
  # manifest: workers.yaml

# anthropic:
#   model: claude-sonnet-4-20250514
#   max_tokens: 4096
`

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Noesis in %s...\n\n", absPath)

	noesisDir := filepath.Join(absPath, ".noesis")
	if _, err := os.Stat(noesisDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	if err := os.MkdirAll(noesisDir, 0755); err != nil {
		return fmt.Errorf("creating .noesis directory: %w", err)
	}
	printStatus("✓", "Created .noesis directory", color.FgGreen)

	store := contentstore.NewSQLiteStore(contentstore.ProjectStorePath(absPath))
	if err := store.Connect(cmd.Context()); err != nil {
		printStatus("✗", "Content store initialization failed", color.FgRed)
		return err
	}
	store.Close()
	printStatus("✓", fmt.Sprintf("Content store ready at %s", store.Path()), color.FgGreen)

	configPath := filepath.Join(absPath, ".noesis.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(configPath, []byte(exampleProjectConfig), 0644); err != nil {
			return fmt.Errorf("writing project config: %w", err)
		}
		printStatus("✓", "Wrote example .noesis.yaml", color.FgGreen)
	} else {
		printStatus("•", ".noesis.yaml already exists, leaving it alone", color.FgCyan)
	}

	fmt.Println("\nDone. Try: noesis ask \"your question\"")
	return nil
}

// printStatus prints a colored status symbol followed by a message.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
