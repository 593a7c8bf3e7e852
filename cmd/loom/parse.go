package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/extract"
	"github.com/steveyegge/loom/internal/llm"
	"github.com/steveyegge/loom/internal/normalize"
	"github.com/steveyegge/loom/internal/store"
	"github.com/steveyegge/loom/internal/ui"
)

var parseCmd = &cobra.Command{
	Use:   "parse <prd-file>",
	Short: "Generate a task list from a requirements document",
	Long: `Parse a product requirements document into a dependency-aware task
list using the configured generation endpoint.

The response is repaired, extracted, and normalized; even an
unparseable model response yields a structurally valid task list
(placeholder tasks flagged for manual review). The result is written
to .loom/tasks.json.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prdPath := args[0]
		prd, err := os.ReadFile(prdPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading PRD: %v\n", err)
			os.Exit(1)
		}

		cfg := mustConfig(cmd)
		numTasks, _ := cmd.Flags().GetInt("num-tasks")
		if numTasks <= 0 {
			numTasks = cfg.NumTasks
		}
		force, _ := cmd.Flags().GetBool("force")

		st := store.New(loomDir(cmd))
		if _, err := os.Stat(st.Path()); err == nil && !force {
			fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", st.Path())
			os.Exit(1)
		}

		client := newClient(cfg)

		spinner := ui.NewSpinner(fmt.Sprintf("Generating %d tasks with %s", numTasks, cfg.Model))
		spinner.Start()
		resp, err := client.Complete(context.Background(), llm.Request{
			System:    parseSystemPrompt,
			Prompt:    parseUserPrompt(string(prd), numTasks),
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Stream:    true,
		})
		spinner.Stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		normalized := normalize.Response(resp.Content)
		if cfg.Debug {
			dumpDebug(st, resp, normalized)
		}

		doc := extract.Document(normalized, numTasks)
		normalize.Tasks(doc.Tasks)

		doc.Metadata.ProjectName = projectName(prdPath)
		doc.Metadata.TotalTasks = len(doc.Tasks)
		doc.Metadata.SourceFile = prdPath
		doc.Metadata.GeneratedAt = time.Now()

		if err := st.Save(&doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving task store: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Generated %d tasks from %s\n", ui.RenderPass("✓"), len(doc.Tasks), prdPath)
		fmt.Printf("   Store: %s\n", st.Path())
		if doc.Metadata.Note == extract.FallbackNote {
			fmt.Printf("%s Response could not be parsed; tasks are placeholders flagged for review\n", ui.RenderWarn("⚠"))
		}
	},
}

// dumpDebug persists the raw, accumulated, and normalized response
// text. Best effort; a failed dump never fails the command.
func dumpDebug(st *store.Store, resp llm.Response, normalized string) {
	for name, data := range map[string]string{
		"response-raw.txt":         resp.Raw,
		"response-accumulated.txt": resp.Content,
		"response-normalized.txt":  normalized,
	} {
		if err := st.WriteDebug(name, []byte(data)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
}

// projectName derives a project name from the PRD filename.
func projectName(prdPath string) string {
	base := filepath.Base(prdPath)
	return base[:len(base)-len(filepath.Ext(base))]
}

func init() {
	parseCmd.Flags().Int("num-tasks", 0, "number of tasks to generate (default from config)")
	parseCmd.Flags().Bool("force", false, "overwrite an existing task store")
	rootCmd.AddCommand(parseCmd)
}
