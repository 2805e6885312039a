package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-ai/noesis/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Noesis configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/noesis/config.yaml
Project-specific overrides can be placed in .noesis.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay(cfg))
	fmt.Printf("anthropic.model: %s\n", orUnset(cfg.Anthropic.Model))
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", orUnset(cfg.Anthropic.AWSRegion))
	fmt.Printf("anthropic.aws_profile: %s\n", orUnset(cfg.Anthropic.AWSProfile))
	fmt.Printf("engine.debug_log: %s\n", orUnset(cfg.Engine.DebugLog))
	fmt.Printf("engine.event_buffer: %d\n", cfg.Engine.EventBuffer)
	fmt.Printf("workers.max: %d\n", cfg.Workers.Max)
	fmt.Printf("workers.idle_timeout: %s\n", cfg.Workers.IdleTimeout)
	fmt.Printf("workers.task_timeout: %s\n", cfg.Workers.TaskTimeout)
	fmt.Printf("workers.capabilities: %s\n", orUnset(strings.Join(cfg.Workers.Capabilities, ",")))
	fmt.Printf("workers.manifest: %s\n", orUnset(cfg.Workers.Manifest))
	fmt.Printf("store.scope: %s\n", cfg.Store.Scope)
	fmt.Printf("store.path: %s\n", orUnset(cfg.Store.Path))
}

// apiKeyDisplay shows the masked key that would actually be used, plus
// where it came from (the environment wins over the config file).
func apiKeyDisplay(cfg *config.Config) string {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		key = ""
	}
	return fmt.Sprintf("%s (source: %s)", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return apiKeyDisplay(cfg), nil
	case "anthropic.model":
		return orUnset(cfg.Anthropic.Model), nil
	case "anthropic.max_tokens":
		return strconv.Itoa(cfg.Anthropic.MaxTokens), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return orUnset(cfg.Anthropic.AWSRegion), nil
	case "anthropic.aws_profile":
		return orUnset(cfg.Anthropic.AWSProfile), nil
	case "engine.debug_log":
		return orUnset(cfg.Engine.DebugLog), nil
	case "engine.event_buffer":
		return strconv.Itoa(cfg.Engine.EventBuffer), nil
	case "workers.max":
		return strconv.Itoa(cfg.Workers.Max), nil
	case "workers.idle_timeout":
		return cfg.Workers.IdleTimeout.String(), nil
	case "workers.task_timeout":
		return cfg.Workers.TaskTimeout.String(), nil
	case "workers.capabilities":
		return orUnset(strings.Join(cfg.Workers.Capabilities, ",")), nil
	case "workers.manifest":
		return orUnset(cfg.Workers.Manifest), nil
	case "store.scope":
		return cfg.Store.Scope, nil
	case "store.path":
		return orUnset(cfg.Store.Path), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "engine.debug_log":
		cfg.Engine.DebugLog = value
	case "engine.event_buffer":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for event_buffer: %w", err)
		}
		cfg.Engine.EventBuffer = n
	case "workers.max":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for workers.max: %w", err)
		}
		cfg.Workers.Max = n
	case "workers.idle_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for idle_timeout: %w", err)
		}
		cfg.Workers.IdleTimeout = d
	case "workers.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_timeout: %w", err)
		}
		cfg.Workers.TaskTimeout = d
	case "workers.capabilities":
		cfg.Workers.Capabilities = splitNonEmpty(value)
	case "workers.manifest":
		cfg.Workers.Manifest = value
	case "store.scope":
		if value != "global" && value != "project" {
			return fmt.Errorf("store.scope must be 'global' or 'project'")
		}
		cfg.Store.Scope = value
	case "store.path":
		cfg.Store.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func splitNonEmpty(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
