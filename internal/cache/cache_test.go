package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/steveyegge/loom/internal/types"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() = %v", err)
	}
	return db
}

// testDoc builds: 1 (done), 2 (pending, deps 1), 3 (pending, deps 2),
// plus subtasks 2.1 (pending) and 2.2 (pending, deps 2.1).
func testDoc() *types.Document {
	return &types.Document{
		Tasks: []types.Task{
			{ID: 1, Title: "done task", Status: types.StatusDone, Priority: types.PriorityHigh},
			{ID: 2, Title: "ready task", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(1)},
				Subtasks: []types.Subtask{
					{ID: 1, Title: "first step", Status: types.StatusPending, ParentTaskID: 2},
					{ID: 2, Title: "second step", Status: types.StatusPending, ParentTaskID: 2,
						Dependencies: []types.Ref{types.SubtaskRef(2, 1)}},
				}},
			{ID: 3, Title: "blocked task", Status: types.StatusPending, Priority: types.PriorityHigh,
				Dependencies: []types.Ref{types.TaskRef(2)}},
		},
	}
}

func TestSyncDocument(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SyncDocument(ctx, testDoc()); err != nil {
		t.Fatalf("SyncDocument() = %v", err)
	}

	entries, err := db.EntryCount(ctx)
	if err != nil {
		t.Fatalf("EntryCount() = %v", err)
	}
	if entries != 5 {
		t.Errorf("entries = %d, want 5 (3 tasks + 2 subtasks)", entries)
	}

	deps, err := db.DepCount(ctx)
	if err != nil {
		t.Fatalf("DepCount() = %v", err)
	}
	if deps != 3 {
		t.Errorf("deps = %d, want 3", deps)
	}
}

func TestSyncDocument_FullRebuild(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SyncDocument(ctx, testDoc()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// A smaller document replaces the old contents entirely.
	small := &types.Document{Tasks: []types.Task{
		{ID: 9, Title: "only", Status: types.StatusPending, Priority: types.PriorityLow},
	}}
	if err := db.SyncDocument(ctx, small); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	entries, _ := db.EntryCount(ctx)
	if entries != 1 {
		t.Errorf("entries after rebuild = %d, want 1", entries)
	}
	deps, _ := db.DepCount(ctx)
	if deps != 0 {
		t.Errorf("deps after rebuild = %d, want 0", deps)
	}
}

func TestReadyEntries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SyncDocument(ctx, testDoc()); err != nil {
		t.Fatalf("SyncDocument() = %v", err)
	}

	entries, err := db.ReadyEntries(ctx, 0)
	if err != nil {
		t.Fatalf("ReadyEntries() = %v", err)
	}

	// Ready: task 2 (its only dep is done) and subtask 2.1 (no deps).
	// Blocked: task 3 (dep 2 is pending) and subtask 2.2 (dep 2.1 is
	// pending). Task 1 is done, not pending.
	got := map[string]bool{}
	for _, e := range entries {
		got[e.Key] = true
	}
	if len(entries) != 2 || !got["2"] || !got["2.1"] {
		t.Errorf("ready keys = %v, want exactly {2, 2.1}", got)
	}

	// Medium-priority task sorts before the priority-less subtask.
	if entries[0].Key != "2" || entries[1].Key != "2.1" {
		t.Errorf("order = [%s, %s], want [2, 2.1]", entries[0].Key, entries[1].Key)
	}
}

func TestReadyEntries_Limit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SyncDocument(ctx, testDoc()); err != nil {
		t.Fatalf("SyncDocument() = %v", err)
	}

	entries, err := db.ReadyEntries(ctx, 1)
	if err != nil {
		t.Fatalf("ReadyEntries() = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len = %d, want 1", len(entries))
	}
}

func TestGetStats(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SyncDocument(ctx, testDoc()); err != nil {
		t.Fatalf("SyncDocument() = %v", err)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() = %v", err)
	}
	if stats.Total != 5 {
		t.Errorf("total = %d, want 5", stats.Total)
	}
	if stats.ByStatus["done"] != 1 || stats.ByStatus["pending"] != 4 {
		t.Errorf("by status = %v, want done:1 pending:4", stats.ByStatus)
	}
	if stats.Blocked != 2 {
		t.Errorf("blocked = %d, want 2 (task 3 and subtask 2.2)", stats.Blocked)
	}
	if stats.Ready != 2 {
		t.Errorf("ready = %d, want 2", stats.Ready)
	}
}

func TestRefreshBlockedCache_TransitiveChains(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// 1 (pending) <- 2 <- 3: both 2 and 3 are blocked through the chain.
	doc := &types.Document{Tasks: []types.Task{
		{ID: 1, Title: "root", Status: types.StatusPending, Priority: types.PriorityMedium},
		{ID: 2, Title: "mid", Status: types.StatusPending, Priority: types.PriorityMedium,
			Dependencies: []types.Ref{types.TaskRef(1)}},
		{ID: 3, Title: "leaf", Status: types.StatusPending, Priority: types.PriorityMedium,
			Dependencies: []types.Ref{types.TaskRef(2)}},
	}}
	if err := db.SyncDocument(ctx, doc); err != nil {
		t.Fatalf("SyncDocument() = %v", err)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() = %v", err)
	}
	if stats.Blocked != 2 {
		t.Errorf("blocked = %d, want 2", stats.Blocked)
	}
	if stats.Ready != 1 {
		t.Errorf("ready = %d, want 1 (only the root)", stats.Ready)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := db.InitSchema(); err != nil {
		t.Errorf("second InitSchema() = %v", err)
	}
}
