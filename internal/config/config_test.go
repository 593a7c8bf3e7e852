package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Provider != ProviderOllama {
		t.Errorf("provider = %q, want ollama", cfg.Provider)
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Errorf("ollama_url = %q", cfg.OllamaURL)
	}
	if cfg.Model != "llama3.1" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.NumTasks != 10 || cfg.NumSubtasks != 5 {
		t.Errorf("counts = %d/%d, want 10/5", cfg.NumTasks, cfg.NumSubtasks)
	}
	if cfg.MaxTokens != 8192 {
		t.Errorf("max_tokens = %d, want 8192", cfg.MaxTokens)
	}
	if cfg.DashboardPort != 8080 {
		t.Errorf("dashboard_port = %d, want 8080", cfg.DashboardPort)
	}
	if cfg.LogFile != "daemon.log" {
		t.Errorf("log_file = %q, want daemon.log", cfg.LogFile)
	}
	if cfg.Debug {
		t.Error("debug = true, want false")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	toml := `
provider = "anthropic"
model = "claude-sonnet-4-5"
num_tasks = 12
debug = true
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("provider = %q, want anthropic", cfg.Provider)
	}
	if cfg.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.NumTasks != 12 {
		t.Errorf("num_tasks = %d, want 12", cfg.NumTasks)
	}
	if !cfg.Debug {
		t.Error("debug = false, want true")
	}
	// Unset keys keep their defaults.
	if cfg.NumSubtasks != 5 {
		t.Errorf("num_subtasks = %d, want default 5", cfg.NumSubtasks)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`model = "from-file"`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOOM_MODEL", "from-env")
	t.Setenv("LOOM_NUM_TASKS", "7")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Model != "from-env" {
		t.Errorf("model = %q, want env to beat file", cfg.Model)
	}
	if cfg.NumTasks != 7 {
		t.Errorf("num_tasks = %d, want 7", cfg.NumTasks)
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`provider = "openai"`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() = nil, want unknown provider error")
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Errorf("error = %v, want it to name the provider", err)
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`provider = [broken`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("Load() = nil, want read error")
	}
}
