package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/tasktracker/internal/config"
	"github.com/stellarlinkco/tasktracker/internal/logging"
	"github.com/stellarlinkco/tasktracker/internal/store"
	"github.com/stellarlinkco/tasktracker/internal/task"
	"github.com/stellarlinkco/tasktracker/internal/tracker"
)

// Options carries injectable IO for tests.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
}

// globalFlags override the loaded config when set.
type globalFlags struct {
	file     string
	backend  string
	logLevel string
}

func main() {
	if err := newRootCmd(Options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts Options) *cobra.Command {
	gf := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "tasktracker",
		Short: "tasktracker - track your tasks from the command line",
	}
	if opts.Stdout != nil {
		rootCmd.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		rootCmd.SetErr(opts.Stderr)
	}

	rootCmd.PersistentFlags().StringVarP(&gf.file, "file", "f", "", "Task file path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&gf.backend, "backend", "", "Store backend: json or sqlite (overrides config)")
	rootCmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newAddCmd(gf),
		newUpdateCmd(gf),
		newDeleteCmd(gf),
		newMarkCmd(gf),
		newListCmd(gf),
		newInitCmd(),
		newConfigCmd(gf),
	)
	return rootCmd
}

func newAddCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <description> [priority]",
		Short: "Add a new task",
		Args:  cobra.MatchAll(cobra.RangeArgs(1, 2), priorityArg(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority := optionalPriority(args, 1)
			return withService(cmd, gf, func(svc *tracker.Service) error {
				_, err := svc.Add(args[0], priority)
				return err
			})
		},
	}
}

func newUpdateCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <description> [priority]",
		Short: "Update an existing task",
		Args:  cobra.MatchAll(cobra.RangeArgs(2, 3), idArg(0), priorityArg(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := tracker.ParseID(args[0])
			priority := optionalPriority(args, 2)
			return withService(cmd, gf, func(svc *tracker.Service) error {
				_, err := svc.Update(id, args[1], priority)
				return err
			})
		},
	}
}

func newDeleteCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.MatchAll(cobra.ExactArgs(1), idArg(0)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := tracker.ParseID(args[0])
			return withService(cmd, gf, func(svc *tracker.Service) error {
				_, err := svc.Delete(id)
				return err
			})
		},
	}
}

func newMarkCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "mark <id> <in-progress|done>",
		Short:     "Mark a task as in-progress or done",
		ValidArgs: []string{string(task.StatusInProgress), string(task.StatusDone)},
		Args: cobra.MatchAll(cobra.ExactArgs(2), idArg(0), func(cmd *cobra.Command, args []string) error {
			st, err := task.ParseStatus(args[1])
			if err != nil || !st.Markable() {
				return fmt.Errorf("%w: %q (want in-progress or done)", tracker.ErrInvalidStatus, args[1])
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := tracker.ParseID(args[0])
			st, _ := task.ParseStatus(args[1])
			return withService(cmd, gf, func(svc *tracker.Service) error {
				_, err := svc.Mark(id, st)
				return err
			})
		},
	}
}

func newListCmd(gf *globalFlags) *cobra.Command {
	var (
		output  string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:       "list [all|todo|in-progress|done]",
		Short:     "List tasks, optionally filtered by status",
		ValidArgs: []string{task.FilterAll, string(task.StatusTodo), string(task.StatusInProgress), string(task.StatusDone)},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := tracker.ParseFormat(output)
			if err != nil {
				return err
			}
			filter := task.FilterAll
			if len(args) == 1 {
				filter = args[0]
			}
			return withService(cmd, gf, func(svc *tracker.Service) error {
				_, err := svc.List(filter, tracker.ListOptions{Format: format, Verbose: verbose})
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show created and updated times")
	return cmd
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfgPath := config.ConfigPath()

			if _, err := os.Stat(cfgPath); err == nil {
				fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
				return nil
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("stat config: %w", err)
			}

			if err := config.SaveConfig(config.DefaultConfig()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(out, "Created config: %s\n", cfgPath)
			return nil
		},
	}
}

func newConfigCmd(gf *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(gf)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
			fmt.Fprintf(out, "Store: %s\n", cfg.Store.Path)
			fmt.Fprintf(out, "Backend: %s\n", cfg.Store.Backend)
			fmt.Fprintf(out, "Lock: %v\n", cfg.Store.Lock)
			fmt.Fprintf(out, "Log level: %s\n", cfg.Log.Level)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the configuration as JSON")
	return cmd
}

// resolveConfig loads the config file and env, then applies command-line flags.
func resolveConfig(gf *globalFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if gf.file != "" {
		cfg.Store.Path = gf.file
	}
	if gf.backend != "" {
		cfg.Store.Backend = gf.backend
	}
	if gf.logLevel != "" {
		cfg.Log.Level = gf.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withService opens the configured store for one command and closes it afterwards.
// Past argument validation, errors are runtime failures, so usage is not printed.
func withService(cmd *cobra.Command, gf *globalFlags, fn func(svc *tracker.Service) error) error {
	cmd.SilenceUsage = true

	cfg, err := resolveConfig(gf)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	st, err := store.Open(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.WithError(cerr).Warn("close store")
		}
	}()

	log.WithFields(logrus.Fields{
		"command": cmd.Name(),
		"path":    st.Path(),
		"backend": cfg.Store.Backend,
	}).Debug("running command")

	return fn(tracker.New(st, cmd.OutOrStdout(), tracker.WithLogger(log)))
}

func idArg(i int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if i >= len(args) {
			return nil
		}
		_, err := tracker.ParseID(args[i])
		return err
	}
}

func priorityArg(i int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if i >= len(args) {
			return nil
		}
		if _, err := task.ParsePriority(args[i]); err != nil {
			return fmt.Errorf("%w: %v", tracker.ErrInvalidPriority, err)
		}
		return nil
	}
}

func optionalPriority(args []string, i int) task.Priority {
	if i >= len(args) {
		return task.PriorityNone
	}
	p, _ := task.ParsePriority(args[i])
	return p
}
