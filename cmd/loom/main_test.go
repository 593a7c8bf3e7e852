package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/steveyegge/loom/internal/extract"
	"github.com/steveyegge/loom/internal/normalize"
	"github.com/steveyegge/loom/internal/store"
	"github.com/steveyegge/loom/internal/types"
)

func TestRun_UnknownCommandPrintsError(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"no-such-command"}, &stderr)

	if code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
	out := stderr.String()
	if !strings.Contains(out, "Error:") {
		t.Errorf("stderr = %q, want an Error: line", out)
	}
	if !strings.Contains(out, "no-such-command") {
		t.Errorf("stderr = %q, want it to name the unknown command", out)
	}
}

// TestParsePipeline_SavesDocument drives the parse command's
// extract-normalize-save sequence against the store directly.
func TestParsePipeline_SavesDocument(t *testing.T) {
	st := store.New(filepath.Join(t.TempDir(), store.DirName))

	response := `{"tasks": [
		{"id": 1, "title": "Set up project", "priority": "high"},
		{"id": 2, "title": "Build API", "priority": "medium", "dependencies": [1]}
	]}`
	doc := extract.Document(normalize.Response(response), 2)
	normalize.Tasks(doc.Tasks)
	doc.Metadata.ProjectName = projectName("specs/demo.md")
	doc.Metadata.TotalTasks = len(doc.Tasks)

	if err := st.Save(&doc); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	loaded, err := st.Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if len(loaded.Tasks) != 2 {
		t.Fatalf("len(Tasks) = %d, want 2", len(loaded.Tasks))
	}
	if loaded.Tasks[0].Status != types.StatusPending {
		t.Errorf("status = %q, want pending", loaded.Tasks[0].Status)
	}
	if loaded.Metadata.ProjectName != "demo" {
		t.Errorf("project name = %q, want demo", loaded.Metadata.ProjectName)
	}
}

func TestProjectName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"prd.md", "prd"},
		{"docs/my-project.txt", "my-project"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := projectName(tt.path); got != tt.want {
			t.Errorf("projectName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRenderStatus_ColumnWidth(t *testing.T) {
	statuses := []types.Status{
		types.StatusPending,
		types.StatusInProgress,
		types.StatusDone,
		types.StatusDeferred,
		types.StatusCancelled,
	}

	// Styling happens after padding, so every status occupies the same
	// visible width regardless of ANSI escapes.
	for _, s := range statuses {
		if got := lipgloss.Width(renderStatus(s)); got != 12 {
			t.Errorf("renderStatus(%s) visible width = %d, want 12", s, got)
		}
	}
}
