package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/cache"
	"github.com/steveyegge/loom/internal/store"
	"github.com/steveyegge/loom/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Query cache management",
	Long: `Manage the sqlite query cache (.loom/cache.db).

The cache provides fast filtered queries (ready work, status counts)
over the task store without re-walking the JSON document. It is
rebuilt from .loom/tasks.json by full sync.`,
}

var cacheSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Full sync from the task store to the query cache",
	Run: func(cmd *cobra.Command, args []string) {
		st := mustStore(cmd)

		doc, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		db := mustCache(cmd)
		defer db.Close()

		fmt.Printf("%s Syncing from %s...\n", ui.RenderAccent("🔄"), st.Path())
		start := time.Now()

		ctx := context.Background()
		if err := db.SyncDocument(ctx, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		elapsed := time.Since(start)
		entries, _ := db.EntryCount(ctx)
		deps, _ := db.DepCount(ctx)

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed.Round(time.Millisecond))
		fmt.Printf("   Entries: %d\n", entries)
		fmt.Printf("   Deps: %d\n", deps)
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show query cache status",
	Run: func(cmd *cobra.Command, args []string) {
		dir := loomDir(cmd)
		cachePath := filepath.Join(dir, cache.FileName)

		info, err := os.Stat(cachePath)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Query cache not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'loom cache sync' to create it\n\n")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking cache: %v\n", err)
			os.Exit(1)
		}

		db := mustCache(cmd)
		defer db.Close()

		ctx := context.Background()
		stats, err := db.GetStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s Query Cache Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Location: %s\n", cachePath)
		fmt.Printf("Size: %s\n", formatSize(info.Size()))
		fmt.Printf("Entries: %d\n", stats.Total)
		fmt.Printf("Blocked: %d\n", stats.Blocked)
		fmt.Printf("Ready: %d\n", stats.Ready)
		for status, count := range stats.ByStatus {
			fmt.Printf("  %s: %d\n", status, count)
		}
		fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
		fmt.Println()
	},
}

var cacheReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List entities ready to work on",
	Long: `List pending tasks and subtasks with no open blocking dependency,
highest priority first.`,
	Run: func(cmd *cobra.Command, args []string) {
		db := mustCache(cmd)
		defer db.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := db.ReadyEntries(context.Background(), limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Println("No ready work (run 'loom cache sync' if the cache is stale)")
			return
		}
		for _, e := range entries {
			pri := e.Priority
			if pri == "" {
				pri = "-"
			}
			fmt.Printf("%-6s %-8s %s\n", e.Key, pri, e.Title)
		}
	},
}

// mustCache opens (and initializes) the query cache or exits.
func mustCache(cmd *cobra.Command) *cache.DB {
	dir := loomDir(cmd)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: no %s directory found\n", store.DirName)
		os.Exit(1)
	}

	db, err := cache.Open(filepath.Join(dir, cache.FileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		os.Exit(1)
	}
	if err := db.InitSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing cache schema: %v\n", err)
		os.Exit(1)
	}
	return db
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	cacheReadyCmd.Flags().Int("limit", 0, "maximum entries to list (0 = all)")
	cacheCmd.AddCommand(cacheSyncCmd)
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheReadyCmd)
	rootCmd.AddCommand(cacheCmd)
}
