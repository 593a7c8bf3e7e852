package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/config"
	"github.com/steveyegge/loom/internal/llm"
	"github.com/steveyegge/loom/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Turn a requirements document into a dependency-aware task list",
	Long: `loom turns a natural-language requirements document (PRD) into a
structured, dependency-aware task list by querying a text-generation
endpoint, and keeps that list internally consistent as tasks are
added, expanded into subtasks, or re-linked.

Task data lives in .loom/tasks.json; a sqlite query cache
(.loom/cache.db) serves fast ready-work queries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("dir", "", "path to the .loom directory (default: nearest ancestor)")
}

// loomDir resolves the .loom directory: the --dir flag, the nearest
// ancestor containing one, or ./.loom for commands that create it.
func loomDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	if dir := store.FindDir(); dir != "" {
		return dir
	}
	return filepath.Join(".", store.DirName)
}

// mustStore opens the task store, exiting with a remediation hint when
// no .loom directory exists.
func mustStore(cmd *cobra.Command) *store.Store {
	dir := loomDir(cmd)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: no %s directory found\n", store.DirName)
		fmt.Fprintf(os.Stderr, "Run 'loom parse <prd-file>' to generate a task list first\n")
		os.Exit(1)
	}
	return store.New(dir)
}

// mustConfig loads configuration for the resolved .loom directory.
func mustConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(loomDir(cmd))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newClient constructs the configured gateway client wrapped in the
// standard retry policy. The client is created once here at the
// composition root and passed down explicitly.
func newClient(cfg *config.Config) llm.Client {
	var inner llm.Client
	switch cfg.Provider {
	case config.ProviderAnthropic:
		inner = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	default:
		inner = llm.NewOllamaClient(cfg.OllamaURL)
	}
	return llm.NewRetryClient(inner)
}
