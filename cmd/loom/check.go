package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/graph"
	"github.com/steveyegge/loom/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate dependency graph integrity",
	Long: `Scan the dependency graph for integrity violations: references
that don't resolve, self-references, and cycles.

With --fix, violations are repaired deterministically: dangling and
self-reference edges are dropped, duplicates de-duplicated, and each
cycle broken by removing its back-edge. Every removed edge is
reported. Repairs are confirmed interactively unless --yes is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		st := mustStore(cmd)
		doc, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		mgr := graph.New(doc)
		diags := mgr.Validate()

		if len(diags) == 0 {
			fmt.Printf("%s Dependency graph is consistent (%d tasks)\n", ui.RenderPass("✓"), len(doc.Tasks))
			return
		}

		fmt.Printf("%s Found %d integrity violation(s):\n\n", ui.RenderWarn("⚠"), len(diags))
		for _, d := range diags {
			fmt.Printf("  %s %s\n", ui.RenderWarn("•"), d.Message)
		}
		fmt.Println()

		fix, _ := cmd.Flags().GetBool("fix")
		if !fix {
			fmt.Printf("Run 'loom check --fix' to repair\n")
			os.Exit(1)
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			confirmed := false
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Repair %d violation(s)?", len(diags))).
				Description("Offending dependency edges will be removed.").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Println("Aborted")
				os.Exit(1)
			}
		}

		removed := mgr.Fix()
		if err := st.Save(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving task store: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Removed %d edge(s):\n", ui.RenderPass("✓"), len(removed))
		for _, r := range removed {
			fmt.Printf("  %s %s\n", ui.RenderDim("-"), r)
		}
	},
}

func init() {
	checkCmd.Flags().Bool("fix", false, "repair violations by removing offending edges")
	checkCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(checkCmd)
}
