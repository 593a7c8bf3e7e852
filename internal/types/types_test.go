package types

import (
	"strings"
	"testing"
)

func TestTask_Validate(t *testing.T) {
	valid := Task{
		ID:       1,
		Title:    "Implement feature X",
		Status:   StatusPending,
		Priority: PriorityMedium,
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr string
	}{
		{name: "valid task", mutate: func(*Task) {}},
		{
			name:    "zero id",
			mutate:  func(task *Task) { task.ID = 0 },
			wantErr: "positive integer",
		},
		{
			name:    "missing title",
			mutate:  func(task *Task) { task.Title = "" },
			wantErr: "title is required",
		},
		{
			name:    "invalid status",
			mutate:  func(task *Task) { task.Status = "open" },
			wantErr: "invalid status",
		},
		{
			name:    "invalid priority",
			mutate:  func(task *Task) { task.Priority = "urgent" },
			wantErr: "invalid priority",
		},
		{
			name: "invalid subtask",
			mutate: func(task *Task) {
				task.Subtasks = []Subtask{{ID: 1, Status: StatusPending}}
			},
			wantErr: "title is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)

			err := task.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDocument_Resolve(t *testing.T) {
	doc := &Document{
		Tasks: []Task{
			{ID: 1, Title: "a", Status: StatusPending, Priority: PriorityMedium},
			{
				ID: 2, Title: "b", Status: StatusPending, Priority: PriorityMedium,
				Subtasks: []Subtask{
					{ID: 1, Title: "b1", Status: StatusPending},
					{ID: 2, Title: "b2", Status: StatusPending},
				},
			},
		},
	}

	tests := []struct {
		ref  Ref
		want bool
	}{
		{TaskRef(1), true},
		{TaskRef(2), true},
		{TaskRef(3), false},
		{SubtaskRef(2, 1), true},
		{SubtaskRef(2, 2), true},
		{SubtaskRef(2, 3), false},
		{SubtaskRef(1, 1), false},
		{SubtaskRef(9, 1), false},
	}

	for _, tt := range tests {
		if got := doc.Resolve(tt.ref); got != tt.want {
			t.Errorf("Resolve(%s) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestDocument_NextTaskID(t *testing.T) {
	empty := &Document{}
	if got := empty.NextTaskID(); got != 1 {
		t.Errorf("NextTaskID() on empty = %d, want 1", got)
	}

	doc := &Document{Tasks: []Task{{ID: 3}, {ID: 7}, {ID: 5}}}
	if got := doc.NextTaskID(); got != 8 {
		t.Errorf("NextTaskID() = %d, want 8", got)
	}
}
