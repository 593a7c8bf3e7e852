package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/extract"
	"github.com/steveyegge/loom/internal/llm"
	"github.com/steveyegge/loom/internal/normalize"
	"github.com/steveyegge/loom/internal/ui"
)

var expandCmd = &cobra.Command{
	Use:   "expand <task-id>",
	Short: "Expand a task into generated subtasks",
	Long: `Generate subtasks for a task using the configured generation
endpoint and append them to the task.

New subtasks are numbered contiguously after any existing ones and
start in status pending. An unparseable model response yields
placeholder subtasks flagged for manual review.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		taskID, err := strconv.Atoi(args[0])
		if err != nil || taskID <= 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid task id %q\n", args[0])
			os.Exit(1)
		}

		st := mustStore(cmd)
		doc, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		task := doc.Task(taskID)
		if task == nil {
			fmt.Fprintf(os.Stderr, "Error: task %d not found\n", taskID)
			os.Exit(1)
		}

		cfg := mustConfig(cmd)
		num, _ := cmd.Flags().GetInt("num")
		if num <= 0 {
			num = cfg.NumSubtasks
		}

		client := newClient(cfg)

		spinner := ui.NewSpinner(fmt.Sprintf("Expanding task %d into %d subtasks", taskID, num))
		spinner.Start()
		resp, err := client.Complete(context.Background(), llm.Request{
			System:    expandSystemPrompt,
			Prompt:    expandUserPrompt(task.Title, task.Description, task.Details, num),
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

		offset := len(task.Subtasks) + 1
		subs := extract.Subtasks(normalized, num, offset, taskID)
		subs = normalize.Subtasks(subs, taskID, offset)
		task.Subtasks = append(task.Subtasks, subs...)

		if err := st.Save(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving task store: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Added %d subtasks to task %d (now %d total)\n",
			ui.RenderPass("✓"), len(subs), taskID, len(task.Subtasks))
	},
}

func init() {
	expandCmd.Flags().Int("num", 0, "number of subtasks to generate (default from config)")
	rootCmd.AddCommand(expandCmd)
}
