// Package tracker implements the task commands on top of a store.Store.
//
// Every command is a single load, mutate, save pass under the store lock.
// Outcomes the user should see, including "not found" and "no tasks", are
// written to the output as one line each and are not errors. Only storage
// failures and invalid arguments are returned as errors.
package tracker

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellarlinkco/tasktracker/internal/store"
	"github.com/stellarlinkco/tasktracker/internal/task"
)

type Service struct {
	store store.Store
	out   io.Writer
	log   logrus.FieldLogger
	now   func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func New(st store.Store, out io.Writer, opts ...Option) *Service {
	s := &Service{
		store: st,
		out:   out,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of a command that targets one task.
type Result struct {
	Task  task.Task
	Found bool
}

// ParseID parses a positive task id.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// mutate runs fn on the loaded collection under the store lock and saves only
// when fn reports a change.
func (s *Service) mutate(fn func(c *store.Collection) (bool, error)) (err error) {
	unlock, err := s.store.Lock()
	if err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			err = errors.Join(err, fmt.Errorf("unlock store: %w", uerr))
		}
	}()

	c, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	changed, err := fn(&c)
	if err != nil || !changed {
		return err
	}
	if err := s.store.Save(c); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

func (s *Service) Add(description string, priority task.Priority) (task.Task, error) {
	if priority != task.PriorityNone && !priority.Valid() {
		return task.Task{}, fmt.Errorf("%w: %d", ErrInvalidPriority, priority)
	}

	var added task.Task
	err := s.mutate(func(c *store.Collection) (bool, error) {
		id, err := c.NextID()
		if err != nil {
			return false, err
		}
		added = task.New(id, description, priority, s.now())
		c.Add(added)
		return true, nil
	})
	if err != nil {
		return task.Task{}, err
	}

	s.log.WithField("id", added.ID).Debug("task added")
	fmt.Fprintf(s.out, "Task added successfully (ID: %d): %s\n", added.ID, describe(added))
	return added, nil
}

// Update replaces the description of task id. A zero priority keeps the stored one.
func (s *Service) Update(id int, description string, priority task.Priority) (Result, error) {
	if priority != task.PriorityNone && !priority.Valid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidPriority, priority)
	}

	var res Result
	err := s.mutate(func(c *store.Collection) (bool, error) {
		i := c.Find(id)
		if i < 0 {
			return false, nil
		}
		t := &c.Tasks[i]
		t.Description = description
		if priority != task.PriorityNone {
			t.Priority = priority
		}
		t.Touch(s.now())
		res = Result{Task: *t, Found: true}
		return true, nil
	})
	if err != nil {
		return Result{}, err
	}

	if !res.Found {
		s.notFound(id)
		return res, nil
	}
	fmt.Fprintf(s.out, "Task %d updated successfully: %s\n", id, describe(res.Task))
	return res, nil
}

// Delete removes task id. Deleting a missing id is not an error and still rewrites the file.
func (s *Service) Delete(id int) (int, error) {
	var removed int
	err := s.mutate(func(c *store.Collection) (bool, error) {
		removed = c.Remove(id)
		return true, nil
	})
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{"id": id, "removed": removed}).Debug("task deleted")
	fmt.Fprintf(s.out, "Task %d deleted successfully\n", id)
	return removed, nil
}

// Mark sets the status of task id. Only in-progress and done are accepted, and
// the status is set even when the task already holds it.
func (s *Service) Mark(id int, status task.Status) (Result, error) {
	if !status.Markable() {
		return Result{}, fmt.Errorf("%w: %q (want in-progress or done)", ErrInvalidStatus, status)
	}

	var res Result
	err := s.mutate(func(c *store.Collection) (bool, error) {
		i := c.Find(id)
		if i < 0 {
			return false, nil
		}
		t := &c.Tasks[i]
		t.Status = status
		t.Touch(s.now())
		res = Result{Task: *t, Found: true}
		return true, nil
	})
	if err != nil {
		return Result{}, err
	}

	if !res.Found {
		s.notFound(id)
		return res, nil
	}
	fmt.Fprintf(s.out, "Task %d marked as %s: %s\n", id, status, describe(res.Task))
	return res, nil
}

func (s *Service) notFound(id int) {
	fmt.Fprintf(s.out, "Task with ID %d not found\n", id)
}

// describe renders a task as "[id] description (Priority: p, Status: s)".
func describe(t task.Task) string {
	if t.Priority != task.PriorityNone {
		return fmt.Sprintf("[%d] %s (Priority: %d, Status: %s)", t.ID, t.Description, t.Priority, t.Status)
	}
	return fmt.Sprintf("[%d] %s (Status: %s)", t.ID, t.Description, t.Status)
}
