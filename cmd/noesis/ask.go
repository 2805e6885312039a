package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrel-ai/noesis/internal/config"
	"github.com/kestrel-ai/noesis/internal/contentstore"
	"github.com/kestrel-ai/noesis/internal/delegate"
	"github.com/kestrel-ai/noesis/internal/engine"
	"github.com/kestrel-ai/noesis/internal/reasoner"
	"github.com/kestrel-ai/noesis/internal/workers"
)

var (
	askModel    string
	askBedrock  bool
	askPersist  bool
	askVerbose  bool
	askDebugLog string
	askManifest string
	askRetries  int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with graph-of-thought reasoning",
	Long: `Run a full reasoning session: the question is decomposed into a
dependency graph, sub-problems execute in priority order as their
dependencies complete, and the results are synthesized into one answer.

Examples:
  noesis ask "Why is the cache hit rate dropping under load?"
  noesis ask --persist "Compare the two migration strategies"
  noesis ask --verbose --debug-log /tmp/noesis.log "..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askModel, "model", "", "Claude model to use (overrides config)")
	askCmd.Flags().BoolVar(&askBedrock, "bedrock", false, "Use AWS Bedrock instead of the direct API")
	askCmd.Flags().BoolVar(&askPersist, "persist", false, "Persist the finished graph to the content store")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "Print node events as the graph executes")
	askCmd.Flags().StringVar(&askDebugLog, "debug-log", "", "Write verbose session logs to this file")
	askCmd.Flags().StringVar(&askManifest, "workers", "", "Register external workers from a YAML manifest")
	askCmd.Flags().IntVar(&askRetries, "retries", 1, "Requeue a failed node up to this many times")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	question := strings.Join(args, " ")
	ctx := cmd.Context()

	client, err := buildReasoner(cfg)
	if err != nil {
		return err
	}

	delegator := delegate.New()
	manifest := askManifest
	if manifest == "" {
		manifest = cfg.Workers.Manifest
	}
	if manifest != "" {
		n, err := workers.RegisterFromManifest(manifest, delegator)
		if err != nil {
			return err
		}
		if askVerbose {
			fmt.Printf("Registered %d workers from %s\n", n, manifest)
		}
	}

	pool := delegate.NewPool(delegate.PoolConfig{
		MaxWorkers:   cfg.Workers.Max,
		IdleTimeout:  cfg.Workers.IdleTimeout,
		TaskTimeout:  cfg.Workers.TaskTimeout,
		Capabilities: cfg.Workers.Capabilities,
		Delegator:    delegator,
	})
	defer pool.Shutdown()

	opts := []engine.Option{
		engine.WithDelegator(delegator),
		engine.WithPool(pool),
		engine.WithMaxRetries(askRetries),
	}

	debugLog := askDebugLog
	if debugLog == "" {
		debugLog = cfg.Engine.DebugLog
	}
	if debugLog != "" {
		logger, err := engine.NewDebugLogger(debugLog)
		if err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		defer logger.Close()
		opts = append(opts, engine.WithLogger(logger))
	}

	var store *contentstore.SQLiteStore
	if askPersist {
		store = contentstore.NewSQLiteStore(storePath(cfg))
		if err := store.Connect(ctx); err != nil {
			return fmt.Errorf("connecting content store: %w", err)
		}
		defer store.Close()
		opts = append(opts, engine.WithStore(store))
	}

	eng := engine.New(client, opts...)
	defer eng.Close()

	var eventsDone chan struct{}
	if askVerbose {
		eventsDone = make(chan struct{})
		go func() {
			defer close(eventsDone)
			for ev := range eng.Events() {
				printEvent(ev)
			}
		}()
	}

	res, err := eng.ProcessQuery(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println()
	color.New(color.Bold).Println("Answer")
	fmt.Println(res.Answer)
	fmt.Println()

	in, out := client.Tracker().Total()
	fmt.Printf("confidence: %.2f  nodes: %d ok", res.Confidence, res.NodesProcessed)
	if res.NodesFailed > 0 {
		fmt.Printf(", %s", color.RedString("%d failed", res.NodesFailed))
	}
	fmt.Printf("  tokens: %d in / %d out  took: %s\n", in, out, res.Duration.Round(time.Millisecond))

	if askPersist {
		cid, err := eng.PersistGraph(ctx, res.GraphID)
		if err != nil {
			return fmt.Errorf("persisting graph: %w", err)
		}
		fmt.Printf("persisted graph: %s\n", cid)
		fmt.Printf("inspect with: noesis graph show %s\n", cid)
	}

	eng.Close()
	if eventsDone != nil {
		<-eventsDone
	}
	return nil
}

// buildReasoner constructs the Anthropic client from config plus flags.
func buildReasoner(cfg *config.Config) (*reasoner.Client, error) {
	apiKey := ""
	useBedrock := askBedrock || cfg.Anthropic.UseBedrock
	if !useBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Set ANTHROPIC_API_KEY or run: noesis config anthropic.api_key <key>")
			return nil, err
		}
		apiKey = key
	}

	model := askModel
	if model == "" {
		model = cfg.Anthropic.Model
	}
	return reasoner.NewClient(reasoner.ClientConfig{
		Model:         anthropic.Model(model),
		APIKey:        apiKey,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: useBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
}

// storePath resolves where persisted graphs live.
func storePath(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	if cfg.Store.Scope == "project" {
		cwd, err := os.Getwd()
		if err == nil {
			return contentstore.ProjectStorePath(cwd)
		}
	}
	return contentstore.GlobalStorePath()
}

func printEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventNodeStarted:
		color.Cyan("→ %s %s", ev.Type, ev.NodeID)
	case engine.EventNodeCompleted:
		color.Green("✓ %s %s", ev.Type, ev.NodeID)
	case engine.EventNodeFailed:
		color.Red("✗ %s %s: %s", ev.Type, ev.NodeID, ev.Message)
	case engine.EventStalled:
		color.Yellow("⚠ %s: %s", ev.Type, ev.Message)
	default:
		fmt.Printf("  %s %s\n", ev.Type, ev.NodeID)
	}
}
