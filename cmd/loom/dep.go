package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/graph"
	"github.com/steveyegge/loom/internal/types"
	"github.com/steveyegge/loom/internal/ui"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependencies between tasks",
	Long: `Add or remove dependency edges between tasks and subtasks.

References are task ids ("5") or parent.local subtask pairs ("5.2").
An edge means the referenced entity must reach status done first.
Edges that would break graph integrity (unknown target, self
reference, cycle) are rejected and leave the graph unchanged.`,
}

var depAddCmd = &cobra.Command{
	Use:   "add <ref> <depends-on>",
	Short: "Add a dependency edge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ref, dep := mustRefs(args[0], args[1])

		st := mustStore(cmd)
		doc, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		mgr := graph.New(doc)
		if err := mgr.AddDependency(ref, dep); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := st.Save(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving task store: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s %s now depends on %s\n", ui.RenderPass("✓"), ref, dep)
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <ref> <depends-on>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ref, dep := mustRefs(args[0], args[1])

		st := mustStore(cmd)
		doc, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		mgr := graph.New(doc)
		if err := mgr.RemoveDependency(ref, dep); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := st.Save(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving task store: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s %s no longer depends on %s\n", ui.RenderPass("✓"), ref, dep)
	},
}

// mustRefs parses two reference arguments or exits.
func mustRefs(a, b string) (types.Ref, types.Ref) {
	ref, err := types.ParseRef(a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	dep, err := types.ParseRef(b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return ref, dep
}

func init() {
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	rootCmd.AddCommand(depCmd)
}
