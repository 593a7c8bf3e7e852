package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Ref is a reference to a task or subtask in the dependency graph.
//
// A bare task reference has Sub == 0 and serializes as a JSON number.
// A subtask reference carries both halves of the identity pair and
// serializes as a "parent.local" string (e.g. "5.2").
//
// Top-level tasks may reference subtasks and vice versa; resolution
// treats both shapes uniformly.
type Ref struct {
	// Task is the top-level task ID (always > 0 for a valid ref).
	Task int
	// Sub is the subtask-local ID, or 0 for a top-level task ref.
	Sub int
}

// TaskRef returns a reference to a top-level task.
func TaskRef(id int) Ref {
	return Ref{Task: id}
}

// SubtaskRef returns a reference to a subtask identified by the
// (parent id, local id) pair.
func SubtaskRef(parent, local int) Ref {
	return Ref{Task: parent, Sub: local}
}

// IsSubtask reports whether the reference points at a subtask.
func (r Ref) IsSubtask() bool {
	return r.Sub > 0
}

// IsZero reports whether the reference is the zero value (no target).
func (r Ref) IsZero() bool {
	return r.Task == 0 && r.Sub == 0
}

// String returns the canonical textual form: "5" or "5.2".
func (r Ref) String() string {
	if r.IsSubtask() {
		return fmt.Sprintf("%d.%d", r.Task, r.Sub)
	}
	return strconv.Itoa(r.Task)
}

// ParseRef parses a reference from its textual form.
//
// Accepted shapes:
//   - "5"    top-level task reference
//   - "5.2"  subtask reference (parent.local)
//
// Both halves must be positive integers.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty reference")
	}

	if parent, local, ok := strings.Cut(s, "."); ok {
		p, err := strconv.Atoi(parent)
		if err != nil || p <= 0 {
			return Ref{}, fmt.Errorf("invalid subtask reference %q: parent must be a positive integer", s)
		}
		l, err := strconv.Atoi(local)
		if err != nil || l <= 0 {
			return Ref{}, fmt.Errorf("invalid subtask reference %q: local id must be a positive integer", s)
		}
		return Ref{Task: p, Sub: l}, nil
	}

	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return Ref{}, fmt.Errorf("invalid task reference %q: must be a positive integer", s)
	}
	return Ref{Task: id}, nil
}

// MarshalJSON serializes a task ref as a bare number and a subtask ref
// as a "parent.local" string, matching the task store document format.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.IsSubtask() {
		return json.Marshal(r.String())
	}
	return json.Marshal(r.Task)
}

// UnmarshalJSON accepts JSON numbers, numeric strings ("5"), and
// qualified strings ("5.2"). Model output frequently stringifies
// numeric IDs, so both spellings resolve to the same reference.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return fmt.Errorf("invalid task reference %d: must be positive", n)
		}
		*r = Ref{Task: n}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseRef(s)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n := int(f)
		if float64(n) != f || n <= 0 {
			return fmt.Errorf("invalid task reference %v", f)
		}
		*r = Ref{Task: n}
		return nil
	}

	return fmt.Errorf("invalid dependency reference %s", string(data))
}
