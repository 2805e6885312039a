package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("expected default max_tokens 4096, got %d", cfg.Anthropic.MaxTokens)
	}
	if cfg.Workers.Max != 4 {
		t.Errorf("expected default workers.max 4, got %d", cfg.Workers.Max)
	}
	if cfg.Workers.IdleTimeout != 30*time.Second {
		t.Errorf("expected idle timeout 30s, got %v", cfg.Workers.IdleTimeout)
	}
	if cfg.Workers.TaskTimeout != 2*time.Minute {
		t.Errorf("expected task timeout 2m, got %v", cfg.Workers.TaskTimeout)
	}
	if cfg.Engine.EventBuffer != 100 {
		t.Errorf("expected event buffer 100, got %d", cfg.Engine.EventBuffer)
	}
	if cfg.Store.Scope != "global" {
		t.Errorf("expected store scope 'global', got %q", cfg.Store.Scope)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `anthropic:
  api_key: sk-ant-test-key-12345678
  model: claude-sonnet-4-20250514
  max_tokens: 2048
engine:
  debug_log: /tmp/noesis-debug.log
workers:
  max: 8
  idle_timeout: 45s
  task_timeout: 5m
  capabilities:
    - search
    - code
store:
  scope: project
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-test-key-12345678" {
		t.Errorf("api_key = %q", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if cfg.Anthropic.MaxTokens != 2048 {
		t.Errorf("max_tokens = %d, want 2048", cfg.Anthropic.MaxTokens)
	}
	if cfg.Engine.DebugLog != "/tmp/noesis-debug.log" {
		t.Errorf("debug_log = %q", cfg.Engine.DebugLog)
	}
	if cfg.Workers.Max != 8 {
		t.Errorf("workers.max = %d, want 8", cfg.Workers.Max)
	}
	if cfg.Workers.IdleTimeout != 45*time.Second {
		t.Errorf("idle_timeout = %v, want 45s", cfg.Workers.IdleTimeout)
	}
	if cfg.Workers.TaskTimeout != 5*time.Minute {
		t.Errorf("task_timeout = %v, want 5m", cfg.Workers.TaskTimeout)
	}
	if len(cfg.Workers.Capabilities) != 2 || cfg.Workers.Capabilities[0] != "search" {
		t.Errorf("capabilities = %v", cfg.Workers.Capabilities)
	}
	if cfg.Store.Scope != "project" {
		t.Errorf("store.scope = %q, want project", cfg.Store.Scope)
	}
}

func TestLoadFromPathKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `anthropic:
  api_key: sk-ant-partial
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Workers.Max != 4 {
		t.Errorf("unset workers.max = %d, want default 4", cfg.Workers.Max)
	}
	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("unset max_tokens = %d, want default 4096", cfg.Anthropic.MaxTokens)
	}
}

func TestLoadFromPathExpandsEnvReferences(t *testing.T) {
	t.Setenv("NOESIS_TEST_KEY", "sk-ant-from-env-0000")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `anthropic:
  api_key: ${NOESIS_TEST_KEY}
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env-0000" {
		t.Errorf("api_key = %q, want env expansion", cfg.Anthropic.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-saved-key-9999"
	cfg.Workers.Max = 6
	cfg.Store.Scope = "project"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath(user config): %v", err)
	}
	if loaded.Anthropic.APIKey != cfg.Anthropic.APIKey {
		t.Errorf("api_key = %q, want %q", loaded.Anthropic.APIKey, cfg.Anthropic.APIKey)
	}
	if loaded.Workers.Max != 6 {
		t.Errorf("workers.max = %d, want 6", loaded.Workers.Max)
	}
	if loaded.Store.Scope != "project" {
		t.Errorf("store.scope = %q, want project", loaded.Store.Scope)
	}
}

func TestGetUserConfigPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/xdg")

	want := filepath.Join("/custom/xdg", "noesis", "config.yaml")
	if got := GetUserConfigPath(); got != want {
		t.Errorf("GetUserConfigPath() = %q, want %q", got, want)
	}
}
