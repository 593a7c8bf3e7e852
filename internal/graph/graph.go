// Package graph maintains referential and acyclic integrity over the
// task dependency graph. It is the long-lived authority over graph
// integrity for the lifetime of a CLI invocation: records produced by
// the generation pipeline (or loaded from the store) are ingested
// here, and every mutation preserves the invariants that no entity
// references itself, every reference resolves, and the dependency
// relation contains no cycle.
package graph

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/steveyegge/loom/internal/types"
)

// NotFoundError is returned when a dependency reference does not
// resolve to an existing task or subtask.
type NotFoundError struct {
	Ref types.Ref
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.Ref)
}

// SelfReferenceError is returned when an entity would depend on itself.
type SelfReferenceError struct {
	Ref types.Ref
}

func (e *SelfReferenceError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.Ref)
}

// CycleError is returned when adding an edge would close a dependency
// cycle. The graph is left unchanged.
type CycleError struct {
	From types.Ref
	To   types.Ref
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("adding dependency %s -> %s would create a cycle", e.From, e.To)
}

// Manager owns the in-memory task collection and its dependency edges.
// It mutates the document in place; persistence is the caller's
// responsibility.
type Manager struct {
	doc    *types.Document
	logger *log.Logger
}

// New creates a manager over the given document.
func New(doc *types.Document) *Manager {
	return &Manager{
		doc:    doc,
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetLogger replaces the warning logger (used by tests).
func (m *Manager) SetLogger(l *log.Logger) {
	m.logger = l
}

// deps returns a pointer to the dependency slice of the entity ref
// points at, or nil when the entity does not exist.
func (m *Manager) deps(ref types.Ref) *[]types.Ref {
	if ref.IsSubtask() {
		if st := m.doc.Subtask(ref.Task, ref.Sub); st != nil {
			return &st.Dependencies
		}
		return nil
	}
	if t := m.doc.Task(ref.Task); t != nil {
		return &t.Dependencies
	}
	return nil
}

// entities returns every task and subtask reference in ascending id
// order: tasks by id, each immediately followed by its subtasks in
// ascending local id order. This is the canonical traversal order for
// Validate and Fix.
func (m *Manager) entities() []types.Ref {
	tasks := make([]*types.Task, 0, len(m.doc.Tasks))
	for i := range m.doc.Tasks {
		tasks = append(tasks, &m.doc.Tasks[i])
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	var refs []types.Ref
	for _, t := range tasks {
		refs = append(refs, types.TaskRef(t.ID))
		subs := make([]int, 0, len(t.Subtasks))
		for i := range t.Subtasks {
			subs = append(subs, t.Subtasks[i].ID)
		}
		sort.Ints(subs)
		for _, id := range subs {
			refs = append(refs, types.SubtaskRef(t.ID, id))
		}
	}
	return refs
}

// AddDependency records that ref depends on dep.
//
// Both references must resolve (NotFoundError otherwise), an entity
// may not depend on itself (SelfReferenceError), and the edge is
// rejected with CycleError when ref is already reachable from dep
// through existing edges. An edge that already exists is a no-op
// success. On any rejection the graph is left unchanged.
func (m *Manager) AddDependency(ref, dep types.Ref) error {
	edges := m.deps(ref)
	if edges == nil {
		return &NotFoundError{Ref: ref}
	}
	if m.deps(dep) == nil {
		return &NotFoundError{Ref: dep}
	}
	if ref == dep {
		return &SelfReferenceError{Ref: ref}
	}

	for _, existing := range *edges {
		if existing == dep {
			m.logger.Printf("warning: dependency %s -> %s already exists", ref, dep)
			return nil
		}
	}

	if m.reachable(dep, ref) {
		return &CycleError{From: ref, To: dep}
	}

	*edges = append(*edges, dep)
	return nil
}

// RemoveDependency removes the edge ref -> dep. A missing edge
// succeeds as a no-op with a warning.
func (m *Manager) RemoveDependency(ref, dep types.Ref) error {
	edges := m.deps(ref)
	if edges == nil {
		return &NotFoundError{Ref: ref}
	}

	for i, existing := range *edges {
		if existing == dep {
			*edges = append((*edges)[:i], (*edges)[i+1:]...)
			return nil
		}
	}

	m.logger.Printf("warning: dependency %s -> %s does not exist, nothing to remove", ref, dep)
	return nil
}

// reachable reports whether target can be reached from start by
// following existing outgoing dependency edges. Unresolved edges are
// not traversed.
func (m *Manager) reachable(start, target types.Ref) bool {
	if start == target {
		return true
	}

	seen := map[types.Ref]bool{start: true}
	stack := []types.Ref{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		edges := m.deps(cur)
		if edges == nil {
			continue
		}
		for _, next := range *edges {
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
