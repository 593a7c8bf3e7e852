// Package types defines the task store data model shared by the
// generation pipeline, the dependency graph manager, and the CLI.
package types

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task or subtask.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusDeferred   Status = "deferred"
	StatusCancelled  Status = "cancelled"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusDeferred, StatusCancelled:
		return true
	}
	return false
}

// Priority is the scheduling priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid reports whether the priority is one of the known levels.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task is a top-level unit of work. IDs are positive integers, unique
// among top-level tasks. Subtasks are owned exclusively by their parent.
type Task struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	Dependencies []Ref     `json:"dependencies"`
	Priority     Priority  `json:"priority"`
	Details      string    `json:"details,omitempty"`
	TestStrategy string    `json:"testStrategy,omitempty"`
	Subtasks     []Subtask `json:"subtasks,omitempty"`

	// DeferUntil is set when the task is deferred to a date.
	DeferUntil *time.Time `json:"deferUntil,omitempty"`
}

// Subtask is a unit of work scoped under a parent task. Its ID is
// unique within the parent's scope only; full identity is the pair
// (ParentTaskID, ID).
type Subtask struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Dependencies []Ref  `json:"dependencies"`
	Status       Status `json:"status"`
	Details      string `json:"details,omitempty"`
	ParentTaskID int    `json:"parentTaskId,omitempty"`
}

// Metadata describes the provenance of a generated task document.
type Metadata struct {
	ProjectName string    `json:"projectName"`
	TotalTasks  int       `json:"totalTasks"`
	SourceFile  string    `json:"sourceFile"`
	GeneratedAt time.Time `json:"generatedAt"`
	Note        string    `json:"note,omitempty"`
}

// Document is the complete task store document: all tasks plus
// generation metadata. It is loaded as a whole at the start of an
// operation and written back as a whole at the end.
type Document struct {
	Tasks    []Task   `json:"tasks"`
	Metadata Metadata `json:"metadata"`
}

// Validate checks structural validity of a task: positive ID,
// non-empty title, and known status/priority values.
func (t *Task) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("task id must be a positive integer, got %d", t.ID)
	}
	if t.Title == "" {
		return fmt.Errorf("task %d: title is required", t.ID)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("task %d: invalid status %q", t.ID, t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("task %d: invalid priority %q", t.ID, t.Priority)
	}
	for i := range t.Subtasks {
		if err := t.Subtasks[i].Validate(); err != nil {
			return fmt.Errorf("task %d: %w", t.ID, err)
		}
	}
	return nil
}

// Validate checks structural validity of a subtask.
func (st *Subtask) Validate() error {
	if st.ID <= 0 {
		return fmt.Errorf("subtask id must be a positive integer, got %d", st.ID)
	}
	if st.Title == "" {
		return fmt.Errorf("subtask %d: title is required", st.ID)
	}
	if !st.Status.IsValid() {
		return fmt.Errorf("subtask %d: invalid status %q", st.ID, st.Status)
	}
	return nil
}

// Task returns the task with the given ID, or nil if absent.
func (d *Document) Task(id int) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}

// Subtask returns the subtask identified by (parent, local), or nil.
func (d *Document) Subtask(parent, local int) *Subtask {
	t := d.Task(parent)
	if t == nil {
		return nil
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == local {
			return &t.Subtasks[i]
		}
	}
	return nil
}

// Resolve returns true if ref points at an existing task or subtask.
func (d *Document) Resolve(ref Ref) bool {
	if ref.IsSubtask() {
		return d.Subtask(ref.Task, ref.Sub) != nil
	}
	return d.Task(ref.Task) != nil
}

// NextTaskID returns the smallest positive integer greater than every
// existing top-level task ID.
func (d *Document) NextTaskID() int {
	max := 0
	for i := range d.Tasks {
		if d.Tasks[i].ID > max {
			max = d.Tasks[i].ID
		}
	}
	return max + 1
}
