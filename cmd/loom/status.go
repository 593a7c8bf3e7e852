package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/types"
	"github.com/steveyegge/loom/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status <ref> <status>",
	Short: "Set the status of a task or subtask",
	Long: `Set the lifecycle status of a task ("5") or subtask ("5.2").

Valid statuses: pending, in-progress, done, deferred, cancelled.
Deferred tasks accept --until with a natural-language date
("next friday", "in 2 weeks").`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ref, err := types.ParseRef(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		status := types.Status(args[1])
		if !status.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: invalid status %q (expected pending, in-progress, done, deferred, or cancelled)\n", args[1])
			os.Exit(1)
		}

		st := mustStore(cmd)
		doc, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		until, _ := cmd.Flags().GetString("until")
		var deferUntil *time.Time
		if until != "" {
			if status != types.StatusDeferred {
				fmt.Fprintf(os.Stderr, "Error: --until only applies to status deferred\n")
				os.Exit(1)
			}
			t, err := parseNaturalDate(until)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			deferUntil = &t
		}

		if ref.IsSubtask() {
			sub := doc.Subtask(ref.Task, ref.Sub)
			if sub == nil {
				fmt.Fprintf(os.Stderr, "Error: task %s not found\n", ref)
				os.Exit(1)
			}
			sub.Status = status
		} else {
			task := doc.Task(ref.Task)
			if task == nil {
				fmt.Fprintf(os.Stderr, "Error: task %s not found\n", ref)
				os.Exit(1)
			}
			task.Status = status
			task.DeferUntil = deferUntil
		}

		if err := st.Save(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving task store: %v\n", err)
			os.Exit(1)
		}

		if deferUntil != nil {
			fmt.Printf("%s %s deferred until %s\n", ui.RenderPass("✓"), ref, deferUntil.Format("2006-01-02"))
		} else {
			fmt.Printf("%s %s is now %s\n", ui.RenderPass("✓"), ref, status)
		}
	},
}

// parseNaturalDate parses a natural-language date expression relative
// to now.
func parseNaturalDate(expr string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(expr, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", expr, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand date %q", expr)
	}
	return result.Time, nil
}

func init() {
	statusCmd.Flags().String("until", "", "defer until a natural-language date")
	rootCmd.AddCommand(statusCmd)
}
