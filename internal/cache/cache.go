// Package cache provides an embedded sqlite query cache over the task
// store document.
//
// The JSON document under .loom/ remains the source of truth; the
// cache exists for fast filtered queries (ready work, status counts)
// without re-walking the document, and is rebuilt from it by full
// sync. The database runs in embedded mode with WAL for concurrent
// readers.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/steveyegge/loom/internal/types"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// FileName is the cache database file inside the .loom directory.
const FileName = "cache.db"

// DB wraps the sqlite connection with cache-specific functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path, creating
// the file and parent directory as needed. The caller MUST call
// Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Close closes the connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the schema if it doesn't exist. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
//
// Entities are keyed by their canonical reference text: "5" for a
// top-level task, "5.2" for a subtask.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		key TEXT PRIMARY KEY,
		parent_key TEXT,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		priority TEXT,
		description TEXT,
		synced_at TEXT NOT NULL,

		-- Computed for fast ready-work queries
		is_blocked INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS deps (
		from_key TEXT NOT NULL,
		to_key TEXT NOT NULL,
		PRIMARY KEY (from_key, to_key)
	);

	-- Materialized view for ready queries
	CREATE TABLE IF NOT EXISTS blocked_cache (
		task_key TEXT PRIMARY KEY,
		blocked_by TEXT,  -- JSON array of blocking keys
		computed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_key);
	CREATE INDEX IF NOT EXISTS idx_tasks_blocked ON tasks(is_blocked);
	CREATE INDEX IF NOT EXISTS idx_tasks_ready_work
	    ON tasks(status, is_blocked, priority);
	CREATE INDEX IF NOT EXISTS idx_deps_to ON deps(to_key);
	CREATE INDEX IF NOT EXISTS idx_deps_from ON deps(from_key);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return nil
}

// SyncDocument rebuilds the cache from the task document in one
// transaction, then refreshes the blocked cache.
func (db *DB) SyncDocument(ctx context.Context, doc *types.Document) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"deps", "tasks", "blocked_cache"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	now := time.Now().Format(time.RFC3339)
	insertTask := `
	INSERT INTO tasks (key, parent_key, title, status, priority, description, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	insertDep := `INSERT OR IGNORE INTO deps (from_key, to_key) VALUES (?, ?)`

	for i := range doc.Tasks {
		t := &doc.Tasks[i]
		key := types.TaskRef(t.ID).String()

		if _, err := tx.ExecContext(ctx, insertTask,
			key, nil, t.Title, string(t.Status), string(t.Priority), t.Description, now,
		); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", key, err)
		}
		for _, dep := range t.Dependencies {
			if _, err := tx.ExecContext(ctx, insertDep, key, dep.String()); err != nil {
				return fmt.Errorf("failed to insert dep %s -> %s: %w", key, dep, err)
			}
		}

		for j := range t.Subtasks {
			st := &t.Subtasks[j]
			subKey := types.SubtaskRef(t.ID, st.ID).String()

			if _, err := tx.ExecContext(ctx, insertTask,
				subKey, key, st.Title, string(st.Status), nil, st.Description, now,
			); err != nil {
				return fmt.Errorf("failed to insert subtask %s: %w", subKey, err)
			}
			for _, dep := range st.Dependencies {
				if _, err := tx.ExecContext(ctx, insertDep, subKey, dep.String()); err != nil {
					return fmt.Errorf("failed to insert dep %s -> %s: %w", subKey, dep, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}

	return db.RefreshBlockedCacheContext(ctx)
}

// RefreshBlockedCache recomputes the blocked status for all entities.
func (db *DB) RefreshBlockedCache() error {
	return db.RefreshBlockedCacheContext(context.Background())
}

// RefreshBlockedCacheContext recomputes the blocked status with
// context support. An entity is blocked when any transitive dependency
// is not yet done or cancelled.
func (db *DB) RefreshBlockedCacheContext(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM blocked_cache"); err != nil {
		return fmt.Errorf("failed to clear blocked cache: %w", err)
	}

	query := `
	WITH RECURSIVE blocked AS (
		-- Base case: direct dependencies that are still open
		SELECT d.from_key AS task_key, d.to_key AS blocker
		FROM deps d
		JOIN tasks t ON t.key = d.to_key
		WHERE t.status NOT IN ('done', 'cancelled')

		UNION

		-- Recursive case: transitive dependencies
		SELECT b.task_key, d.to_key
		FROM blocked b
		JOIN deps d ON d.from_key = b.blocker
		JOIN tasks t ON t.key = d.to_key
		WHERE t.status NOT IN ('done', 'cancelled')
	)
	INSERT INTO blocked_cache (task_key, blocked_by, computed_at)
	SELECT
		task_key,
		json_group_array(blocker) AS blocked_by,
		datetime('now') AS computed_at
	FROM blocked
	GROUP BY task_key
	`

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to compute blocked cache: %w", err)
	}

	updateQuery := `
	UPDATE tasks SET is_blocked =
		CASE
			WHEN key IN (SELECT task_key FROM blocked_cache) THEN 1
			ELSE 0
		END
	`
	if _, err := tx.ExecContext(ctx, updateQuery); err != nil {
		return fmt.Errorf("failed to update is_blocked flags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Entry is one cached task or subtask row.
type Entry struct {
	Key         string
	ParentKey   string
	Title       string
	Status      string
	Priority    string
	Description string
	IsBlocked   bool
}

// EntryCount returns the total number of cached entities.
func (db *DB) EntryCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// DepCount returns the total number of cached dependency edges.
func (db *DB) DepCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM deps").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count deps: %w", err)
	}
	return count, nil
}

// ReadyEntries finds entities that are ready to work on: status
// pending with no open blocking dependency. Results are ordered by
// priority (high first, subtasks inherit lowest rank), then key.
func (db *DB) ReadyEntries(ctx context.Context, limit int) ([]Entry, error) {
	query := `
	SELECT key, COALESCE(parent_key, ''), title, status, COALESCE(priority, ''), COALESCE(description, ''), is_blocked
	FROM tasks
	WHERE status = 'pending' AND is_blocked = 0
	ORDER BY
		CASE priority
			WHEN 'high' THEN 0
			WHEN 'medium' THEN 1
			WHEN 'low' THEN 2
			ELSE 3
		END,
		key
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Stats summarizes the cached collection.
type Stats struct {
	Total    int
	ByStatus map[string]int
	Blocked  int
	Ready    int
}

// GetStats computes collection statistics from the cache.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[string]int)}

	rows, err := db.conn.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE is_blocked = 1").Scan(&stats.Blocked); err != nil {
		return nil, fmt.Errorf("failed to count blocked entries: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE status = 'pending' AND is_blocked = 0").Scan(&stats.Ready); err != nil {
		return nil, fmt.Errorf("failed to count ready entries: %w", err)
	}

	return stats, nil
}

// scanEntries scans multiple entries from query results.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var blocked int
		if err := rows.Scan(&e.Key, &e.ParentKey, &e.Title, &e.Status, &e.Priority, &e.Description, &blocked); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.IsBlocked = blocked != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}
