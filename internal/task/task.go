package task

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// FilterAll selects every task regardless of status.
const FilterAll = "all"

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusTodo, StatusInProgress, StatusDone:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q (want todo, in-progress or done)", s)
	}
}

// Markable reports whether st can be set by mark. todo is only reachable on creation.
func (st Status) Markable() bool {
	return st == StatusInProgress || st == StatusDone
}

// Priority ranks a task from 1 (top) to 3 (low). Zero means unprioritized.
type Priority int

const (
	PriorityNone Priority = 0
	PriorityTop  Priority = 1
	PriorityMid  Priority = 2
	PriorityLow  Priority = 3
)

func ParsePriority(s string) (Priority, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return PriorityNone, fmt.Errorf("priority %q is not a number", s)
	}
	p := Priority(n)
	if !p.Valid() {
		return PriorityNone, fmt.Errorf("priority %d out of range (want 1, 2 or 3)", n)
	}
	return p, nil
}

func (p Priority) Valid() bool {
	return p >= PriorityTop && p <= PriorityLow
}

type Task struct {
	ID          int       `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	Status      Status    `json:"status" yaml:"status"`
	Priority    Priority  `json:"priority,omitempty" yaml:"priority,omitempty"`
	CreatedAt   Timestamp `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   Timestamp `json:"updatedAt" yaml:"updatedAt"`
}

func New(id int, description string, priority Priority, now time.Time) Task {
	return Task{
		ID:          id,
		Description: description,
		Status:      StatusTodo,
		Priority:    priority,
		CreatedAt:   Timestamp{now},
		UpdatedAt:   Timestamp{now},
	}
}

// Touch refreshes UpdatedAt, never moving it before CreatedAt.
func (t *Task) Touch(now time.Time) {
	if now.Before(t.CreatedAt.Time) {
		now = t.CreatedAt.Time
	}
	t.UpdatedAt = Timestamp{now}
}

// Select returns the tasks matching filter ("all" or a status) in their original order.
func Select(tasks []Task, filter string) ([]Task, error) {
	if filter == "" || filter == FilterAll {
		return slices.Clone(tasks), nil
	}
	st, err := ParseStatus(filter)
	if err != nil {
		return nil, err
	}
	var out []Task
	for _, t := range tasks {
		if t.Status == st {
			out = append(out, t)
		}
	}
	return out, nil
}

// Order sorts tasks by ascending priority, unprioritized last. Ties keep their input order.
func Order(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return rank(a.Priority) - rank(b.Priority)
	})
}

func rank(p Priority) int {
	if !p.Valid() {
		return int(PriorityLow) + 1
	}
	return int(p)
}
