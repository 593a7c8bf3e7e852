package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/steveyegge/loom/internal/cache"
	"github.com/steveyegge/loom/internal/types"
)

// startTestServer starts a server on a random port and waits for the
// listener to bind.
func startTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(&bytes.Buffer{}, "", 0)
	}

	srv := New(cfg)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() { _ = srv.Stop() })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); !strings.HasSuffix(addr, ":0") {
			return srv
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not bind a listener in time")
	return nil
}

func TestServer_StartStop(t *testing.T) {
	srv := startTestServer(t, Config{})

	if srv.Addr() == "" {
		t.Fatal("Addr() is empty after Start")
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestServer_Broadcast(t *testing.T) {
	srv := startTestServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Registration happens in the handler goroutine; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if count := srv.ClientCount(); count != 1 {
		t.Fatalf("ClientCount() = %d, want 1", count)
	}

	srv.Broadcast(MessageTypeSyncComplete, SyncCompleteData{
		Entries:  7,
		Deps:     3,
		Duration: 42 * time.Millisecond,
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if msg.Type != MessageTypeSyncComplete {
		t.Errorf("type = %s, want %s", msg.Type, MessageTypeSyncComplete)
	}

	var payload SyncCompleteData
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Entries != 7 || payload.Deps != 3 {
		t.Errorf("payload = %+v, want 7 entries, 3 deps", payload)
	}
}

func TestServer_StatsEndpoint(t *testing.T) {
	db, err := cache.Open(filepath.Join(t.TempDir(), cache.FileName))
	if err != nil {
		t.Fatalf("cache open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	doc := &types.Document{Tasks: []types.Task{
		{ID: 1, Title: "a", Status: types.StatusDone, Priority: types.PriorityHigh},
		{ID: 2, Title: "b", Status: types.StatusPending, Priority: types.PriorityMedium,
			Dependencies: []types.Ref{types.TaskRef(1)}},
	}}
	if err := db.SyncDocument(context.Background(), doc); err != nil {
		t.Fatalf("sync: %v", err)
	}

	srv := startTestServer(t, Config{Cache: db})

	resp, err := http.Get("http://" + srv.Addr() + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats StatsData
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByStatus["done"] != 1 || stats.ByStatus["pending"] != 1 {
		t.Errorf("by status = %v, want done:1 pending:1", stats.ByStatus)
	}
	if stats.Ready != 1 {
		t.Errorf("ready = %d, want 1 (task 2's only dep is done)", stats.Ready)
	}
}

func TestServer_StatsWithoutCache(t *testing.T) {
	srv := startTestServer(t, Config{})

	resp, err := http.Get("http://" + srv.Addr() + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when no cache is attached", resp.StatusCode)
	}
}

func TestServer_MultipleClients(t *testing.T) {
	srv := startTestServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const numClients = 3
	conns := make([]*websocket.Conn, 0, numClients)
	for i := 0; i < numClients; i++ {
		conn, _, err := websocket.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
		if err != nil {
			t.Fatalf("client %d dial: %v", i, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		conns = append(conns, conn)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() < numClients && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if count := srv.ClientCount(); count != numClients {
		t.Fatalf("ClientCount() = %d, want %d", count, numClients)
	}

	srv.Broadcast(MessageTypeStats, StatsData{Total: 5})
	for i, conn := range conns {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("client %d unmarshal: %v", i, err)
		}
		if msg.Type != MessageTypeStats {
			t.Errorf("client %d type = %s, want %s", i, msg.Type, MessageTypeStats)
		}
	}
}
