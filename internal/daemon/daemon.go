package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/steveyegge/loom/internal/cache"
	"github.com/steveyegge/loom/internal/dashboard"
	"github.com/steveyegge/loom/internal/store"
)

// debounceWindow coalesces bursts of file events into one sync.
const debounceWindow = 200 * time.Millisecond

// Daemon keeps the query cache in sync with the task store.
type Daemon struct {
	store     *store.Store
	db        *cache.DB
	watcher   *StoreWatcher
	dashboard *dashboard.Server
	logger    *log.Logger
}

// Options configures a Daemon.
type Options struct {
	// Store is the task store to watch.
	Store *store.Store
	// Cache is the query cache to keep in sync.
	Cache *cache.DB
	// Dashboard receives sync broadcasts (optional).
	Dashboard *dashboard.Server
	// Logger for daemon activity (default stderr).
	Logger *log.Logger
}

// New creates a daemon. Run it with Start.
func New(opts Options) (*Daemon, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("daemon requires a task store")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("daemon requires a query cache")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "daemon: ", log.LstdFlags)
	}

	watcher, err := NewStoreWatcher(opts.Store.Dir(), store.FileName)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		store:     opts.Store,
		db:        opts.Cache,
		watcher:   watcher,
		dashboard: opts.Dashboard,
		logger:    logger,
	}, nil
}

// Start performs an initial sync, then blocks processing store change
// events until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.sync(ctx); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	if err := d.watcher.Start(); err != nil {
		return err
	}
	defer d.watcher.Stop()

	d.logger.Printf("watching %s", d.store.Path())

	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-d.watcher.Events():
			if !ok {
				return nil
			}
			d.logger.Printf("store %s: %s", event.Op, event.Path)
			// Debounce: atomic saves can emit several events.
			if pending == nil {
				pending = time.NewTimer(debounceWindow)
				pendingC = pending.C
			} else {
				if !pending.Stop() {
					<-pending.C
				}
				pending.Reset(debounceWindow)
			}

		case <-pendingC:
			pending = nil
			pendingC = nil
			if err := d.sync(ctx); err != nil {
				d.logger.Printf("warning: sync failed: %v", err)
			}

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return nil
			}
			d.logger.Printf("warning: watch error: %v", err)
		}
	}
}

// sync rebuilds the cache from the store and notifies the dashboard.
func (d *Daemon) sync(ctx context.Context) error {
	start := time.Now()

	doc, err := d.store.Load()
	if err != nil {
		return err
	}

	if err := d.db.SyncDocument(ctx, doc); err != nil {
		return err
	}

	entries, err := d.db.EntryCount(ctx)
	if err != nil {
		return err
	}
	deps, err := d.db.DepCount(ctx)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	d.logger.Printf("synced %d entries, %d deps in %v", entries, deps, elapsed.Round(time.Millisecond))

	if d.dashboard != nil {
		d.dashboard.Broadcast(dashboard.MessageTypeSyncComplete, dashboard.SyncCompleteData{
			Entries:  entries,
			Deps:     deps,
			Duration: elapsed,
		})
		if stats, err := d.db.GetStats(ctx); err == nil {
			d.dashboard.Broadcast(dashboard.MessageTypeStats, dashboard.StatsData{
				Total:    stats.Total,
				ByStatus: stats.ByStatus,
				Blocked:  stats.Blocked,
				Ready:    stats.Ready,
			})
		}
	}

	return nil
}
