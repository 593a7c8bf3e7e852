package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/loom/internal/types"
	"github.com/steveyegge/loom/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks from the store, optionally filtered by status.

Formats: table (default), json, yaml.`,
	Run: func(cmd *cobra.Command, args []string) {
		st := mustStore(cmd)
		doc, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		statusFilter, _ := cmd.Flags().GetString("status")
		tasks := doc.Tasks
		if statusFilter != "" {
			filtered := make([]types.Task, 0, len(tasks))
			for _, t := range tasks {
				if string(t.Status) == statusFilter {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(tasks); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		case "yaml":
			data, err := yaml.Marshal(tasks)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			os.Stdout.Write(data)
		case "table", "":
			printTable(tasks)
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown format %q (expected table, json, or yaml)\n", format)
			os.Exit(1)
		}
	},
}

func printTable(tasks []types.Task) {
	if len(tasks) == 0 {
		fmt.Println("No tasks")
		return
	}

	fmt.Printf("%-5s %-12s %-8s %-14s %s\n", "ID", "STATUS", "PRI", "DEPS", "TITLE")
	for _, t := range tasks {
		deps := make([]string, 0, len(t.Dependencies))
		for _, d := range t.Dependencies {
			deps = append(deps, d.String())
		}
		depStr := strings.Join(deps, ",")
		if depStr == "" {
			depStr = "-"
		}

		fmt.Printf("%-5d %s %-8s %-14s %s\n",
			t.ID, renderStatus(t.Status), t.Priority, depStr, t.Title)

		for _, sub := range t.Subtasks {
			fmt.Printf("%-5s %s %-8s %-14s %s %s\n",
				fmt.Sprintf("%d.%d", t.ID, sub.ID), renderStatus(sub.Status), "-", "-",
				ui.RenderDim("└"), sub.Title)
		}
	}
}

// renderStatus pads before styling so ANSI escape codes don't throw
// off the column width.
func renderStatus(s types.Status) string {
	padded := fmt.Sprintf("%-12s", string(s))
	switch s {
	case types.StatusDone:
		return ui.RenderPass(padded)
	case types.StatusInProgress:
		return ui.RenderAccent(padded)
	case types.StatusCancelled, types.StatusDeferred:
		return ui.RenderDim(padded)
	default:
		return padded
	}
}

func init() {
	listCmd.Flags().String("status", "", "filter by status")
	listCmd.Flags().String("format", "table", "output format: table, json, yaml")
	rootCmd.AddCommand(listCmd)
}
