package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrel-ai/noesis/internal/config"
	"github.com/kestrel-ai/noesis/internal/contentstore"
	"github.com/kestrel-ai/noesis/internal/engine"
	"github.com/kestrel-ai/noesis/pkg/models"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect persisted reasoning graphs",
}

var graphShowCmd = &cobra.Command{
	Use:   "show <cid>",
	Short: "Show a persisted graph's nodes",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphShow,
}

var graphNodeCmd = &cobra.Command{
	Use:   "node <cid>",
	Short: "Show one persisted node in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphNode,
}

func init() {
	graphCmd.AddCommand(graphShowCmd)
	graphCmd.AddCommand(graphNodeCmd)
}

func openStore(cmd *cobra.Command) (*contentstore.SQLiteStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store := contentstore.NewSQLiteStore(storePath(cfg))
	if err := store.Connect(cmd.Context()); err != nil {
		return nil, fmt.Errorf("connecting content store: %w", err)
	}
	return store, nil
}

func runGraphShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := engine.FetchGraphRecord(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("graph %s (%d nodes)\n\n", record.GraphID, len(record.NodeCIDs))

	nodes := make([]*engine.NodeRecord, 0, len(record.NodeCIDs))
	cidsByNode := make(map[string]string, len(record.NodeCIDs))
	for _, cid := range record.NodeCIDs {
		node, err := engine.FetchNodeRecord(cmd.Context(), store, cid)
		if err != nil {
			return err
		}
		nodes = append(nodes, node)
		cidsByNode[node.ID] = cid
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Metadata.CreatedAt.Before(nodes[j].Metadata.CreatedAt)
	})

	for _, node := range nodes {
		marker := "•"
		if node.ID == record.RootNodeID {
			marker = "◆"
		}
		fmt.Printf("%s %-13s %s  %s\n", marker, node.Type, statusColor(node.Status), snippet(node.Content, 70))
		fmt.Printf("  cid: %s\n", cidsByNode[node.ID])
	}
	return nil
}

func runGraphNode(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	node, err := engine.FetchNodeRecord(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("id:      %s\n", node.ID)
	fmt.Printf("type:    %s\n", node.Type)
	fmt.Printf("status:  %s\n", statusColor(node.Status))
	fmt.Printf("created: %s\n", node.Metadata.CreatedAt.Format("2006-01-02 15:04:05"))
	if node.Metadata.Confidence != nil {
		fmt.Printf("confidence: %.2f\n", *node.Metadata.Confidence)
	}
	fmt.Printf("\ncontent:\n%s\n", node.Content)
	if node.Result != "" {
		fmt.Printf("\nresult:\n%s\n", node.Result)
	}
	if node.Error != "" {
		fmt.Printf("\nerror:\n%s\n", color.RedString(node.Error))
	}
	return nil
}

func statusColor(status models.NodeStatus) string {
	switch status {
	case models.NodeStatusCompletedSuccess:
		return color.GreenString(string(status))
	case models.NodeStatusCompletedFailure:
		return color.RedString(string(status))
	case models.NodeStatusCancelled:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}

func snippet(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
