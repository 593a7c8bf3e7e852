package graph

import (
	"fmt"

	"github.com/steveyegge/loom/internal/types"
)

// DiagnosticKind classifies an integrity violation found by Validate.
type DiagnosticKind string

const (
	// DiagMissingReference marks an edge whose target does not resolve.
	DiagMissingReference DiagnosticKind = "missing-reference"
	// DiagSelfReference marks an entity depending on itself.
	DiagSelfReference DiagnosticKind = "self-reference"
	// DiagCycle marks a dependency cycle.
	DiagCycle DiagnosticKind = "cycle"
)

// Diagnostic describes one integrity violation. For cycles, Cycle
// holds the members in traversal order and From/To the back-edge that
// closes it.
type Diagnostic struct {
	Kind    DiagnosticKind
	From    types.Ref
	To      types.Ref
	Cycle   []types.Ref
	Message string
}

// RemovalReason explains why Fix dropped an edge.
type RemovalReason string

const (
	// RemovalMissingTarget means the edge target did not resolve.
	RemovalMissingTarget RemovalReason = "missing-target"
	// RemovalSelfReference means the edge pointed at its own entity.
	RemovalSelfReference RemovalReason = "self-reference"
	// RemovalDuplicate means the edge repeated an earlier one.
	RemovalDuplicate RemovalReason = "duplicate"
	// RemovalCycle means the edge was the back-edge of a cycle.
	RemovalCycle RemovalReason = "cycle"
)

// Removal records one edge dropped by Fix and the reason.
type Removal struct {
	From   types.Ref
	To     types.Ref
	Reason RemovalReason
}

func (r Removal) String() string {
	return fmt.Sprintf("%s -> %s (%s)", r.From, r.To, r.Reason)
}

// Validate scans the graph read-only and reports every integrity
// violation: unresolved edge targets, self-references, and cycles
// (each distinct cycle reported once). State is not mutated.
func (m *Manager) Validate() []Diagnostic {
	var diags []Diagnostic

	for _, ref := range m.entities() {
		for _, dep := range *m.deps(ref) {
			if dep == ref {
				diags = append(diags, Diagnostic{
					Kind:    DiagSelfReference,
					From:    ref,
					To:      dep,
					Message: fmt.Sprintf("task %s depends on itself", ref),
				})
				continue
			}
			if !m.doc.Resolve(dep) {
				diags = append(diags, Diagnostic{
					Kind:    DiagMissingReference,
					From:    ref,
					To:      dep,
					Message: fmt.Sprintf("task %s depends on non-existent task %s", ref, dep),
				})
			}
		}
	}

	for _, backEdge := range m.backEdges() {
		diags = append(diags, Diagnostic{
			Kind:    DiagCycle,
			From:    backEdge.from,
			To:      backEdge.to,
			Cycle:   backEdge.cycle,
			Message: fmt.Sprintf("dependency cycle: %s", formatCycle(backEdge.cycle)),
		})
	}

	return diags
}

// Fix deterministically repairs the graph in place and returns a
// summary of every edge removed. Repairs, in order: edges with
// unresolved targets are dropped, self-reference edges are dropped,
// duplicate edges are de-duplicated preserving first-seen order, and
// each remaining cycle is broken by removing the back-edge discovered
// last during a depth-first traversal that visits entities in
// ascending id order. Running Fix twice in succession produces an
// empty second summary.
func (m *Manager) Fix() []Removal {
	var removed []Removal

	for _, ref := range m.entities() {
		edges := m.deps(ref)
		kept := (*edges)[:0]
		seen := make(map[types.Ref]bool, len(*edges))
		for _, dep := range *edges {
			switch {
			case dep == ref:
				removed = append(removed, Removal{From: ref, To: dep, Reason: RemovalSelfReference})
			case !m.doc.Resolve(dep):
				removed = append(removed, Removal{From: ref, To: dep, Reason: RemovalMissingTarget})
			case seen[dep]:
				removed = append(removed, Removal{From: ref, To: dep, Reason: RemovalDuplicate})
			default:
				seen[dep] = true
				kept = append(kept, dep)
			}
		}
		*edges = kept
	}

	// Break cycles one edge at a time: each pass removes the back-edge
	// discovered last, then re-traverses. Removing a back-edge can
	// clear several overlapping cycles at once, so re-traversal keeps
	// the repair minimal and the tie-break deterministic.
	for {
		backEdges := m.backEdges()
		if len(backEdges) == 0 {
			break
		}
		last := backEdges[len(backEdges)-1]
		if err := m.RemoveDependency(last.from, last.to); err != nil {
			break
		}
		removed = append(removed, Removal{From: last.from, To: last.to, Reason: RemovalCycle})
	}

	return removed
}

// backEdge is a dependency edge that closes a cycle, together with the
// cycle members in traversal order.
type backEdge struct {
	from  types.Ref
	to    types.Ref
	cycle []types.Ref
}

// backEdges finds every back-edge in discovery order via an iterative
// depth-first traversal rooted at each entity in ascending id order.
func (m *Manager) backEdges() []backEdge {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)

	color := make(map[types.Ref]int)
	var path []types.Ref
	var found []backEdge

	var visit func(ref types.Ref)
	visit = func(ref types.Ref) {
		color[ref] = gray
		path = append(path, ref)

		edges := m.deps(ref)
		if edges != nil {
			for _, dep := range *edges {
				if !m.doc.Resolve(dep) || dep == ref {
					continue // reported separately
				}
				switch color[dep] {
				case white:
					visit(dep)
				case gray:
					// Back-edge: cycle members are the path suffix
					// starting at dep.
					var cycle []types.Ref
					for i := len(path) - 1; i >= 0; i-- {
						cycle = append([]types.Ref{path[i]}, cycle...)
						if path[i] == dep {
							break
						}
					}
					found = append(found, backEdge{from: ref, to: dep, cycle: cycle})
				}
			}
		}

		path = path[:len(path)-1]
		color[ref] = black
	}

	for _, ref := range m.entities() {
		if color[ref] == white {
			visit(ref)
		}
	}
	return found
}

func formatCycle(cycle []types.Ref) string {
	s := ""
	for _, ref := range cycle {
		if s != "" {
			s += " -> "
		}
		s += ref.String()
	}
	if len(cycle) > 0 {
		s += " -> " + cycle[0].String()
	}
	return s
}
