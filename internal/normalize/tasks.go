package normalize

import (
	"github.com/steveyegge/loom/internal/types"
)

// Subtasks canonicalizes freshly generated subtasks in place and
// returns the slice for convenience.
//
// IDs are reassigned to a contiguous run starting at offset, in
// original order, overwriting whatever the model returned; a correction
// is logged whenever the returned id disagreed. Status is forced to
// pending regardless of what the model produced, the parent linkage is
// stamped, and a nil dependency set becomes an empty one.
func Subtasks(subs []types.Subtask, parentID, offset int) []types.Subtask {
	for i := range subs {
		want := offset + i
		if subs[i].ID != 0 && subs[i].ID != want {
			Logger.Printf("warning: subtask id corrected: model returned %d, assigned %d.%d", subs[i].ID, parentID, want)
		}
		subs[i].ID = want
		subs[i].Status = types.StatusPending
		subs[i].ParentTaskID = parentID
		if subs[i].Dependencies == nil {
			subs[i].Dependencies = []types.Ref{}
		}
	}
	return subs
}

// Tasks canonicalizes freshly generated top-level tasks in place.
//
// Every task is forced to status pending, defaulted to medium priority
// when the model returned an unknown level, and given an empty
// dependency set when none parsed. Subtasks, when the model produced
// any, are renumbered per parent starting at 1.
func Tasks(tasks []types.Task) []types.Task {
	for i := range tasks {
		t := &tasks[i]
		t.Status = types.StatusPending
		if !t.Priority.IsValid() {
			t.Priority = types.PriorityMedium
		}
		if t.Dependencies == nil {
			t.Dependencies = []types.Ref{}
		}
		t.Subtasks = Subtasks(t.Subtasks, t.ID, 1)
	}
	return tasks
}
