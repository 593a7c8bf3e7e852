package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/steveyegge/loom/internal/daemon"
	"github.com/steveyegge/loom/internal/dashboard"
	"github.com/steveyegge/loom/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch the task store and keep the query cache in sync",
	Long: `Run the sync daemon in the foreground.

The daemon watches .loom/tasks.json for changes and rebuilds the
query cache on every save. With --dashboard it also serves the
websocket dashboard and broadcasts sync events to connected clients.

Daemon activity is logged to a rotating file under .loom/.`,
	Run: func(cmd *cobra.Command, args []string) {
		st := mustStore(cmd)
		cfg := mustConfig(cmd)

		db := mustCache(cmd)
		defer db.Close()

		logPath := cfg.LogFile
		if !filepath.IsAbs(logPath) {
			logPath = filepath.Join(st.Dir(), logPath)
		}
		logger := log.New(&lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}, "", log.LstdFlags)

		var dash *dashboard.Server
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		if withDashboard {
			dash = dashboard.New(dashboard.Config{
				Port:   cfg.DashboardPort,
				Cache:  db,
				Logger: logger,
			})
			go func() {
				if err := dash.Start(); err != nil {
					fmt.Fprintf(os.Stderr, "Dashboard stopped with error: %v\n", err)
				}
			}()
			defer dash.Stop()
			fmt.Printf("%s Dashboard: ws://127.0.0.1:%d/ws\n", ui.RenderAccent("📊"), cfg.DashboardPort)
		}

		d, err := daemon.New(daemon.Options{
			Store:     st,
			Cache:     db,
			Dashboard: dash,
			Logger:    logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("🚀"), st.Path())
		fmt.Printf("   Log: %s\n", logPath)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the websocket dashboard",
	Long: `Serve the websocket dashboard without the sync daemon.

Clients connect to /ws for broadcasts and /api/stats for current
collection statistics. Run 'loom daemon --dashboard' to combine
serving with store watching.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd)
		db := mustCache(cmd)
		defer db.Close()

		dash := dashboard.New(dashboard.Config{
			Port:  cfg.DashboardPort,
			Cache: db,
		})

		fmt.Printf("%s Dashboard: ws://127.0.0.1:%d/ws\n", ui.RenderAccent("📊"), cfg.DashboardPort)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			_ = dash.Stop()
		}()

		if err := dash.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Dashboard stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "also serve the websocket dashboard")
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(dashboardCmd)
}
