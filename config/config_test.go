package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("Unexpected default model: %s", cfg.Model)
	}
	if cfg.MaxTokens != 4096 {
		t.Fatalf("Unexpected default max tokens: %d", cfg.MaxTokens)
	}
	if cfg.UserID != "demo_user" {
		t.Fatalf("Unexpected default user ID: %s", cfg.UserID)
	}
	if cfg.RecallLimit != 3 || cfg.StoreEvery != 3 {
		t.Fatalf("Unexpected recall/store defaults: %d/%d", cfg.RecallLimit, cfg.StoreEvery)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
model: claude-3-haiku-20240307
user_id: alice
store_every: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Model != "claude-3-haiku-20240307" {
		t.Fatalf("Expected model override, got %s", cfg.Model)
	}
	if cfg.UserID != "alice" {
		t.Fatalf("Expected user override, got %s", cfg.UserID)
	}
	if cfg.StoreEvery != 5 {
		t.Fatalf("Expected store_every override, got %d", cfg.StoreEvery)
	}

	// Fields absent from the file keep their defaults.
	if cfg.MaxTokens != 4096 {
		t.Fatalf("Expected default max tokens to survive, got %d", cfg.MaxTokens)
	}
	if cfg.Workspace != "workspace" {
		t.Fatalf("Expected default workspace to survive, got %s", cfg.Workspace)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("MNEMO_TEST_WORKSPACE", "/srv/agent-ws")
	path := writeConfig(t, "workspace: ${MNEMO_TEST_WORKSPACE}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Workspace != "/srv/agent-ws" {
		t.Fatalf("Expected env expansion in workspace, got %s", cfg.Workspace)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Expected error for missing config file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "model: [this is not\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("Expected error for malformed YAML")
	}
}

func TestFindConfigExplicit(t *testing.T) {
	path := writeConfig(t, "user_id: bob\n")

	found, err := FindConfig(path)
	if err != nil {
		t.Fatalf("Failed to find explicit config: %v", err)
	}
	if found != path {
		t.Fatalf("Expected explicit path back, got %s", found)
	}

	if _, err := FindConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Expected error for missing explicit config")
	}
}
