// Package store persists the task document as a single JSON file
// under the .loom directory. The document is loaded as a whole at the
// start of an operation and written back as a whole at the end; the
// write is atomic (temp file + rename).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/loom/internal/types"
)

const (
	// DirName is the per-project data directory.
	DirName = ".loom"
	// FileName is the task store document inside DirName.
	FileName = "tasks.json"
	// DebugDirName holds diagnostic dumps when debug mode is on.
	DebugDirName = "debug"
)

// Store reads and writes the task document for one project.
type Store struct {
	dir string
}

// New creates a store rooted at the given .loom directory.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the .loom directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the task document path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads the task document. A missing file yields an empty
// document, not an error.
func (s *Store) Load() (*types.Document, error) {
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return &types.Document{Tasks: []types.Task{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task store: %w", err)
	}

	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse task store %s: %w", s.Path(), err)
	}
	if doc.Tasks == nil {
		doc.Tasks = []types.Task{}
	}
	return &doc, nil
}

// Save writes the task document atomically: marshal to a temp file in
// the same directory, then rename over the target.
func (s *Store) Save(doc *types.Document) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task store: %w", err)
	}

	tmpPath := s.Path() + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write task store: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace task store: %w", err)
	}
	return nil
}

// WriteDebug dumps diagnostic text under .loom/debug. Debug dumps are
// a side effect only; failures are returned but callers may ignore
// them.
func (s *Store) WriteDebug(name string, data []byte) error {
	dir := filepath.Join(s.dir, DebugDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create debug directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write debug dump %s: %w", name, err)
	}
	return nil
}

// FindDir walks up from the working directory looking for a .loom
// directory. Returns "" when none is found.
func FindDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
