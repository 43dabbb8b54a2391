// Package store persists the task collection.
//
// The JSON backend writes one document of the form
//
//	{"lastId": 3, "tasks": [{"id": 1, ...}, {"id": 3, ...}]}
//
// where tasks keep insertion order and lastId is the id high-water mark.
// A bare JSON array of tasks, as written by earlier versions of the tracker,
// still loads, but files written here are objects and are not readable by
// tools that expect the bare array.
package store

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stellarlinkco/tasktracker/internal/config"
	"github.com/stellarlinkco/tasktracker/internal/task"
)

var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrIDsExhausted   = errors.New("task ids exhausted")
)

// Store persists the whole task collection. Callers hold Lock across a
// Load/mutate/Save sequence.
type Store interface {
	Load() (Collection, error)
	Save(c Collection) error
	Lock() (unlock func() error, err error)
	Path() string
	Close() error
}

// Collection is the persisted task set. Tasks keep insertion order.
// LastID is the highest id ever handed out, so ids of deleted tasks are never reused.
type Collection struct {
	LastID int         `json:"lastId"`
	Tasks  []task.Task `json:"tasks"`
}

// NextID returns one past the highest id in use or previously issued, or 1 when empty.
// It fails with ErrIDsExhausted once that id would no longer be a positive int.
func (c Collection) NextID() (int, error) {
	high := max(c.LastID, maxID(c.Tasks))
	if high >= math.MaxInt {
		return 0, fmt.Errorf("%w: highest id is %d", ErrIDsExhausted, high)
	}
	return high + 1, nil
}

// Add appends t and advances LastID.
func (c *Collection) Add(t task.Task) {
	c.Tasks = append(c.Tasks, t)
	c.LastID = max(c.LastID, t.ID)
}

// Find returns the index of the first task with id, or -1.
func (c Collection) Find(id int) int {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Remove drops every task with id and reports how many were removed.
func (c *Collection) Remove(id int) int {
	kept := c.Tasks[:0]
	for _, t := range c.Tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	removed := len(c.Tasks) - len(kept)
	c.Tasks = kept
	return removed
}

// Validate checks the invariants a decoded collection must hold.
func (c Collection) Validate() error {
	if c.LastID < 0 {
		return fmt.Errorf("lastId must not be negative, got %d", c.LastID)
	}
	seen := make(map[int]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.ID <= 0 {
			return fmt.Errorf("task %d: id must be positive, got %d", i, t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("task %d: duplicate id %d", i, t.ID)
		}
		seen[t.ID] = true
		if _, err := task.ParseStatus(string(t.Status)); err != nil {
			return fmt.Errorf("task %d: %w", t.ID, err)
		}
		if t.Priority != task.PriorityNone && !t.Priority.Valid() {
			return fmt.Errorf("task %d: priority %d out of range", t.ID, t.Priority)
		}
	}
	return nil
}

func maxID(tasks []task.Task) int {
	m := 0
	for _, t := range tasks {
		m = max(m, t.ID)
	}
	return m
}

// Open builds the backend named by cfg.
func Open(cfg config.StoreConfig, log logrus.FieldLogger) (Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.BackendJSON:
		return NewFileStore(cfg.Path, cfg.Lock, log), nil
	case config.BackendSQLite:
		s, err := NewSQLiteStore(cfg.Path, cfg.Lock, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
