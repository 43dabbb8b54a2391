package task

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"todo", StatusTodo, false},
		{"in-progress", StatusInProgress, false},
		{"done", StatusDone, false},
		{" done ", StatusDone, false},
		{"all", "", true},
		{"finished", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusMarkable(t *testing.T) {
	if StatusTodo.Markable() {
		t.Error("todo should not be markable")
	}
	if !StatusInProgress.Markable() || !StatusDone.Markable() {
		t.Error("in-progress and done should be markable")
	}
}

func TestParsePriority(t *testing.T) {
	for _, in := range []string{"1", "2", "3"} {
		if _, err := ParsePriority(in); err != nil {
			t.Errorf("ParsePriority(%q) error: %v", in, err)
		}
	}
	for _, in := range []string{"0", "4", "-1", "high", ""} {
		if _, err := ParsePriority(in); err == nil {
			t.Errorf("ParsePriority(%q) should fail", in)
		}
	}
}

func TestNew(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tk := New(7, "Buy milk", PriorityNone, now)
	if tk.ID != 7 || tk.Description != "Buy milk" {
		t.Errorf("unexpected task: %+v", tk)
	}
	if tk.Status != StatusTodo {
		t.Errorf("status = %q, want todo", tk.Status)
	}
	if !tk.CreatedAt.Equal(now) || !tk.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", tk.CreatedAt, tk.UpdatedAt, now)
	}
}

func TestTouch_NeverBeforeCreated(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tk := New(1, "x", PriorityNone, created)

	tk.Touch(created.Add(-time.Hour))
	if tk.UpdatedAt.Before(tk.CreatedAt.Time) {
		t.Errorf("updatedAt %v before createdAt %v", tk.UpdatedAt, tk.CreatedAt)
	}

	later := created.Add(time.Minute)
	tk.Touch(later)
	if !tk.UpdatedAt.Equal(later) {
		t.Errorf("updatedAt = %v, want %v", tk.UpdatedAt, later)
	}
}

func TestSelect(t *testing.T) {
	now := time.Now()
	tasks := []Task{
		New(1, "a", PriorityNone, now),
		New(2, "b", PriorityNone, now),
		New(3, "c", PriorityNone, now),
	}
	tasks[1].Status = StatusDone
	tasks[2].Status = StatusInProgress

	all, err := Select(tasks, FilterAll)
	if err != nil {
		t.Fatalf("Select all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	done, err := Select(tasks, "done")
	if err != nil {
		t.Fatalf("Select done: %v", err)
	}
	if len(done) != 1 || done[0].ID != 2 {
		t.Errorf("done = %+v, want only id 2", done)
	}

	if _, err := Select(tasks, "bogus"); err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestOrder_StableByPriority(t *testing.T) {
	now := time.Now()
	tasks := []Task{
		New(1, "none", PriorityNone, now),
		New(2, "low", PriorityLow, now),
		New(3, "top-a", PriorityTop, now),
		New(4, "mid", PriorityMid, now),
		New(5, "top-b", PriorityTop, now),
		New(6, "none-b", PriorityNone, now),
	}
	Order(tasks)

	want := []int{3, 5, 4, 2, 1, 6}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("order[%d] = %d, want %d (full: %v)", i, tasks[i].ID, id, ids(tasks))
		}
	}
}

func TestOrder_NoPrioritiesKeepsInsertionOrder(t *testing.T) {
	now := time.Now()
	tasks := []Task{New(3, "c", 0, now), New(1, "a", 0, now), New(2, "b", 0, now)}
	Order(tasks)
	if got := ids(tasks); got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Errorf("order = %v, want [3 1 2]", got)
	}
}

func TestTaskJSON_OmitsUnsetPriority(t *testing.T) {
	tk := New(1, "x", PriorityNone, time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC))
	data, err := json.Marshal(tk)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := raw["priority"]; ok {
		t.Errorf("priority should be omitted: %s", data)
	}
	if raw["createdAt"] != "2024-01-02T03:04:05.000000006Z" {
		t.Errorf("createdAt = %v", raw["createdAt"])
	}
}

func ids(tasks []Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
