package graph

import (
	"bytes"
	"log"
	"testing"

	"github.com/steveyegge/loom/internal/types"
)

func TestValidate_MissingReference(t *testing.T) {
	doc := &types.Document{
		Tasks: []types.Task{
			{ID: 5, Title: "a", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(99)}},
		},
	}
	m, _ := quietManager(doc)

	diags := m.Validate()
	if len(diags) != 1 {
		t.Fatalf("len(diags) = %d, want 1: %v", len(diags), diags)
	}
	d := diags[0]
	if d.Kind != DiagMissingReference {
		t.Errorf("kind = %s, want %s", d.Kind, DiagMissingReference)
	}
	if d.From != types.TaskRef(5) || d.To != types.TaskRef(99) {
		t.Errorf("edge = %s -> %s, want 5 -> 99", d.From, d.To)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	doc := &types.Document{
		Tasks: []types.Task{
			{ID: 1, Title: "a", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(2), types.TaskRef(1), types.TaskRef(99)}},
			{ID: 2, Title: "b", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(1)}},
		},
	}
	m, _ := quietManager(doc)

	diags := m.Validate()
	if len(diags) == 0 {
		t.Fatal("expected diagnostics")
	}

	var kinds []DiagnosticKind
	for _, d := range diags {
		kinds = append(kinds, d.Kind)
	}
	want := map[DiagnosticKind]bool{DiagSelfReference: true, DiagMissingReference: true, DiagCycle: true}
	for _, k := range kinds {
		delete(want, k)
	}
	if len(want) != 0 {
		t.Errorf("missing diagnostic kinds %v in %v", want, kinds)
	}

	if got := len(doc.Task(1).Dependencies); got != 3 {
		t.Errorf("Validate mutated the graph: task 1 has %d deps, want 3", got)
	}
}

func TestValidate_CleanGraph(t *testing.T) {
	m, _ := quietManager(threeTaskDoc())
	if diags := m.Validate(); len(diags) != 0 {
		t.Errorf("clean graph produced diagnostics: %v", diags)
	}
}

func TestFix_RemovesStructuralDefects(t *testing.T) {
	doc := &types.Document{
		Tasks: []types.Task{
			{ID: 1, Title: "a", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{
					types.TaskRef(1),  // self
					types.TaskRef(99), // missing
					types.TaskRef(2),
					types.TaskRef(2), // duplicate
				}},
			{ID: 2, Title: "b", Status: types.StatusPending, Priority: types.PriorityMedium},
		},
	}
	m, _ := quietManager(doc)

	removed := m.Fix()

	wantReasons := map[RemovalReason]int{
		RemovalSelfReference: 1,
		RemovalMissingTarget: 1,
		RemovalDuplicate:     1,
	}
	got := map[RemovalReason]int{}
	for _, r := range removed {
		got[r.Reason]++
	}
	for reason, n := range wantReasons {
		if got[reason] != n {
			t.Errorf("removals with reason %s = %d, want %d (all: %v)", reason, got[reason], n, removed)
		}
	}

	deps := doc.Task(1).Dependencies
	if len(deps) != 1 || deps[0] != types.TaskRef(2) {
		t.Errorf("task 1 dependencies after fix = %v, want [2]", deps)
	}
}

func TestFix_BreaksCycle(t *testing.T) {
	doc := &types.Document{
		Tasks: []types.Task{
			{ID: 1, Title: "a", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(2)}},
			{ID: 2, Title: "b", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(3)}},
			{ID: 3, Title: "c", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(1)}},
		},
	}
	m, _ := quietManager(doc)

	removed := m.Fix()

	cycleRemovals := 0
	for _, r := range removed {
		if r.Reason == RemovalCycle {
			cycleRemovals++
		}
	}
	if cycleRemovals != 1 {
		t.Fatalf("cycle removals = %d, want 1 (all: %v)", cycleRemovals, removed)
	}

	if diags := m.Validate(); len(diags) != 0 {
		t.Errorf("graph still broken after fix: %v", diags)
	}
}

func TestFix_Deterministic(t *testing.T) {
	build := func() *types.Document {
		return &types.Document{
			Tasks: []types.Task{
				{ID: 1, Title: "a", Status: types.StatusPending, Priority: types.PriorityMedium,
					Dependencies: []types.Ref{types.TaskRef(2)}},
				{ID: 2, Title: "b", Status: types.StatusPending, Priority: types.PriorityMedium,
					Dependencies: []types.Ref{types.TaskRef(1), types.TaskRef(3)}},
				{ID: 3, Title: "c", Status: types.StatusPending, Priority: types.PriorityMedium,
					Dependencies: []types.Ref{types.TaskRef(2)}},
			},
		}
	}

	first, _ := quietManager(build())
	second, _ := quietManager(build())

	a := first.Fix()
	b := second.Fix()

	if len(a) != len(b) {
		t.Fatalf("runs disagree: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("removal %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFix_Idempotent(t *testing.T) {
	doc := &types.Document{
		Tasks: []types.Task{
			{ID: 1, Title: "a", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(1), types.TaskRef(2), types.TaskRef(50)}},
			{ID: 2, Title: "b", Status: types.StatusPending, Priority: types.PriorityMedium,
				Dependencies: []types.Ref{types.TaskRef(1)}},
		},
	}
	m := New(doc)
	m.SetLogger(log.New(&bytes.Buffer{}, "", 0))

	first := m.Fix()
	if len(first) == 0 {
		t.Fatal("first fix removed nothing, expected repairs")
	}
	second := m.Fix()
	if len(second) != 0 {
		t.Errorf("second fix removed %v, want nothing", second)
	}
}
