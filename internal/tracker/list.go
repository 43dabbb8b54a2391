package tracker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/stellarlinkco/tasktracker/internal/task"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want text, json or yaml)", ErrInvalidFormat, s)
	}
}

type ListOptions struct {
	Format Format
	// Verbose adds relative created/updated times to text output.
	Verbose bool
}

// List prints the tasks matching filter ("all" or a status), ordered by
// priority with insertion order breaking ties. It never writes to the store.
//
// When nothing matches, text output prints a "No tasks found" line, while
// json and yaml print an empty list so the output stays machine-readable.
func (s *Service) List(filter string, opts ListOptions) ([]task.Task, error) {
	if filter == "" {
		filter = task.FilterAll
	}
	if filter != task.FilterAll {
		if _, err := task.ParseStatus(filter); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
		}
	}

	c, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	tasks, err := task.Select(c.Tasks, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}
	task.Order(tasks)

	switch opts.Format {
	case FormatJSON:
		if tasks == nil {
			tasks = []task.Task{}
		}
		data, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		fmt.Fprintln(s.out, string(data))
	case FormatYAML:
		if tasks == nil {
			tasks = []task.Task{}
		}
		data, err := yaml.Marshal(tasks)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		fmt.Fprint(s.out, string(data))
	default:
		s.printText(filter, tasks, opts.Verbose)
	}
	return tasks, nil
}

func (s *Service) printText(filter string, tasks []task.Task, verbose bool) {
	if len(tasks) == 0 {
		fmt.Fprintf(s.out, "No tasks found with status '%s'\n", filter)
		return
	}
	now := s.now()
	for _, t := range tasks {
		if !verbose {
			fmt.Fprintln(s.out, describe(t))
			continue
		}
		fmt.Fprintf(s.out, "%s created %s, updated %s\n", describe(t),
			humanize.RelTime(t.CreatedAt.Time, now, "ago", "from now"),
			humanize.RelTime(t.UpdatedAt.Time, now, "ago", "from now"))
	}
}
