// Package extract parses normalized completion text into structured
// task records. A staged fallback ladder guarantees a structurally
// valid result even when the model output is not valid JSON: parse
// directly, then parse the bracketed substring, then synthesize
// placeholder records. The ladder never returns an error.
package extract

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/steveyegge/loom/internal/types"
)

// Logger receives non-fatal parse warnings. Tests may swap it out.
var Logger = log.New(os.Stderr, "", log.LstdFlags)

// FallbackNote is the annotation stamped on placeholder records
// synthesized when the model response could not be parsed.
const FallbackNote = "auto-generated due to parsing failure"

// looseInt tolerates JSON numbers, stringified numbers ("7"), and
// floats (7.0). Anything else decodes to zero without failing the
// enclosing record.
type looseInt int

func (li *looseInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*li = looseInt(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*li = looseInt(int(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err == nil {
			*li = looseInt(n)
		}
	}
	return nil
}

// looseRefs decodes a dependency list leniently: numeric-looking text
// is coerced to integer refs, malformed entries are skipped with a
// warning, and a malformed field as a whole defaults to an empty set.
type looseRefs []types.Ref

func (lr *looseRefs) UnmarshalJSON(data []byte) error {
	var refs []types.Ref
	if err := json.Unmarshal(data, &refs); err == nil {
		*lr = refs
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		Logger.Printf("warning: malformed dependency field %s, defaulting to empty", truncate(string(data), 60))
		*lr = looseRefs{}
		return nil
	}

	out := make(looseRefs, 0, len(raw))
	for _, m := range raw {
		var r types.Ref
		if err := json.Unmarshal(m, &r); err != nil {
			Logger.Printf("warning: skipping malformed dependency entry %s", truncate(string(m), 60))
			continue
		}
		out = append(out, r)
	}
	*lr = out
	return nil
}

// rawSubtask is the lenient decode shape for model-produced subtasks.
type rawSubtask struct {
	ID           looseInt  `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Details      string    `json:"details"`
	Status       string    `json:"status"`
	Dependencies looseRefs `json:"dependencies"`
}

func (r rawSubtask) toSubtask() types.Subtask {
	return types.Subtask{
		ID:           int(r.ID),
		Title:        r.Title,
		Description:  r.Description,
		Details:      r.Details,
		Status:       types.Status(r.Status),
		Dependencies: []types.Ref(r.Dependencies),
	}
}

// rawTask is the lenient decode shape for model-produced tasks.
type rawTask struct {
	ID           looseInt     `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Details      string       `json:"details"`
	TestStrategy string       `json:"testStrategy"`
	Status       string       `json:"status"`
	Priority     string       `json:"priority"`
	Dependencies looseRefs    `json:"dependencies"`
	Subtasks     []rawSubtask `json:"subtasks"`
}

func (r rawTask) toTask() types.Task {
	t := types.Task{
		ID:           int(r.ID),
		Title:        r.Title,
		Description:  r.Description,
		Details:      r.Details,
		TestStrategy: r.TestStrategy,
		Status:       types.Status(r.Status),
		Priority:     types.Priority(r.Priority),
		Dependencies: []types.Ref(r.Dependencies),
	}
	for _, rs := range r.Subtasks {
		t.Subtasks = append(t.Subtasks, rs.toSubtask())
	}
	return t
}

type rawDocument struct {
	Tasks    []rawTask       `json:"tasks"`
	Metadata json.RawMessage `json:"metadata"`
}

// Document parses whole-document generation output into a task
// document. count is the number of tasks the prompt requested; on a
// count mismatch a warning is logged and the result returned as-is.
// On unparseable input the result contains exactly count placeholder
// tasks annotated with FallbackNote.
func Document(text string, count int) types.Document {
	for _, candidate := range candidates(text) {
		var raw rawDocument
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			continue
		}
		if raw.Tasks == nil {
			// A bare array of tasks is also accepted.
			var bare []rawTask
			if err := json.Unmarshal([]byte(candidate), &bare); err != nil || bare == nil {
				continue
			}
			raw.Tasks = bare
		}

		doc := types.Document{Tasks: make([]types.Task, 0, len(raw.Tasks))}
		for _, rt := range raw.Tasks {
			doc.Tasks = append(doc.Tasks, rt.toTask())
		}
		if len(raw.Metadata) > 0 {
			// Best effort; the pipeline stamps authoritative metadata.
			_ = json.Unmarshal(raw.Metadata, &doc.Metadata)
		}

		if count > 0 && len(doc.Tasks) != count {
			Logger.Printf("warning: requested %d tasks but response contained %d", count, len(doc.Tasks))
		}
		return doc
	}

	Logger.Printf("warning: could not parse task document from response, generating %d fallback tasks", count)
	return fallbackDocument(count)
}

// Subtasks parses expansion output into subtask records. count is the
// requested number of subtasks and offset the first local id to use
// when synthesizing fallback records. Parsed records keep their
// model-assigned ids here; renumbering is the normalizer's job.
func Subtasks(text string, count, offset, parentID int) []types.Subtask {
	for _, candidate := range candidates(text) {
		var raw []rawSubtask
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			// Models sometimes wrap the array in an object.
			var wrapped struct {
				Subtasks []rawSubtask `json:"subtasks"`
			}
			if err := json.Unmarshal([]byte(candidate), &wrapped); err != nil || wrapped.Subtasks == nil {
				continue
			}
			raw = wrapped.Subtasks
		}
		if raw == nil {
			continue
		}

		subs := make([]types.Subtask, 0, len(raw))
		for _, rs := range raw {
			subs = append(subs, rs.toSubtask())
		}
		if count > 0 && len(subs) != count {
			Logger.Printf("warning: requested %d subtasks but response contained %d", count, len(subs))
		}
		return subs
	}

	Logger.Printf("warning: could not parse subtasks from response, generating %d fallback subtasks", count)
	return fallbackSubtasks(count, offset, parentID)
}

// candidates yields the parse attempts of the fallback ladder, in
// order: the text itself, then the substring between the first opening
// bracket/brace and the last matching closer.
func candidates(text string) []string {
	out := []string{text}
	if sliced, ok := sliceStructured(text); ok {
		out = append(out, sliced)
	}
	return out
}

// sliceStructured extracts the substring from the first opening
// bracket or brace to the last closer matching it. Returns false when
// the text contains no bracket markers at all.
func sliceStructured(text string) (string, bool) {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", false
	}

	var closer byte
	if text[start] == '[' {
		closer = ']'
	} else {
		closer = '}'
	}

	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// fallbackDocument synthesizes a document of exactly count placeholder
// tasks. Step 3 of the ladder: unconditionally successful.
func fallbackDocument(count int) types.Document {
	doc := types.Document{
		Tasks:    make([]types.Task, 0, count),
		Metadata: types.Metadata{Note: FallbackNote},
	}
	for i := 1; i <= count; i++ {
		doc.Tasks = append(doc.Tasks, types.Task{
			ID:           i,
			Title:        fmt.Sprintf("Task %d", i),
			Description:  fmt.Sprintf("Task %d (%s)", i, FallbackNote),
			Details:      "The model response could not be parsed. Review the requirements document and fill in this task manually.",
			Status:       types.StatusPending,
			Priority:     types.PriorityMedium,
			Dependencies: []types.Ref{},
		})
	}
	return doc
}

// fallbackSubtasks synthesizes exactly count placeholder subtasks with
// contiguous ids starting at offset.
func fallbackSubtasks(count, offset, parentID int) []types.Subtask {
	subs := make([]types.Subtask, 0, count)
	for i := 0; i < count; i++ {
		id := offset + i
		subs = append(subs, types.Subtask{
			ID:           id,
			Title:        fmt.Sprintf("Subtask %d", id),
			Description:  fmt.Sprintf("Subtask %d (%s)", id, FallbackNote),
			Details:      "The model response could not be parsed. Fill in this subtask manually.",
			Status:       types.StatusPending,
			Dependencies: []types.Ref{},
			ParentTaskID: parentID,
		})
	}
	return subs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
