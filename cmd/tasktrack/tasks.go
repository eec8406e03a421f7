package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/task"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a task id", errUsage, s)
	}
	return id, nil
}

func newAddCmd(opts *globalOptions) *cobra.Command {
	var desc, due, priority, category string
	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t := task.New(strings.Join(args, " "), time.Now())
			t.Description = desc
			t.Category = strings.TrimSpace(category)
			p, err := task.ParsePriority(priority)
			if err != nil {
				return &task.ValidationError{Field: "priority", Message: err.Error()}
			}
			t.Priority = p
			if t.DueDate, err = parseDue(due); err != nil {
				return err
			}
			id, err := a.tracker.Insert(ctx, t).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout(cmd), "added #%d\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium or high")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var filter, search, category string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Long: `List tasks once and exit.

A search matches title or description case-insensitively and ignores the
filter. Use "tasktrack watch" to keep the list on screen.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			s := a.tracker.Store()
			var (
				tasks []task.Task
				err   error
			)
			switch {
			case strings.TrimSpace(search) != "":
				tasks, err = s.Find(ctx, search).Wait(ctx)
			case category != "":
				tasks, err = s.ListCategory(ctx, category).Wait(ctx)
			default:
				f := a.cfg.Filter()
				if cmd.Flags().Changed("filter") {
					if f, err = task.ParseFilter(filter); err != nil {
						return fmt.Errorf("%w: %v", errUsage, err)
					}
				}
				tasks, err = s.Snapshot(ctx, f).Wait(ctx)
			}
			if err != nil {
				return err
			}
			printTasks(stdout(cmd), a.style, tasks, time.Now())
			return nil
		}),
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, active or completed")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search text")
	cmd.Flags().StringVarP(&category, "category", "c", "", "only this category")
	return cmd
}

func newShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.tracker.Get(ctx, id).Wait(ctx)
			if err != nil {
				return fmt.Errorf("task #%d: %w", id, err)
			}
			a.style.taskDetail(stdout(cmd), t, time.Now())
			return nil
		}),
	}
}

func newEditCmd(opts *globalOptions) *cobra.Command {
	var title, desc, due, priority, category string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.tracker.Get(ctx, id).Wait(ctx)
			if err != nil {
				return fmt.Errorf("task #%d: %w", id, err)
			}
			flags := cmd.Flags()
			if flags.Changed("title") {
				t.Title = title
			}
			if flags.Changed("desc") {
				t.Description = desc
			}
			if flags.Changed("category") {
				t.Category = strings.TrimSpace(category)
			}
			if flags.Changed("priority") {
				p, err := task.ParsePriority(priority)
				if err != nil {
					return &task.ValidationError{Field: "priority", Message: err.Error()}
				}
				t.Priority = p
			}
			if flags.Changed("due") {
				if t.DueDate, err = parseDue(due); err != nil {
					return err
				}
			}
			n, err := a.tracker.Update(ctx, t).Wait(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("task #%d: %w", id, task.ErrNotFound)
			}
			fmt.Fprintf(stdout(cmd), "updated #%d\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "new description")
	cmd.Flags().StringVar(&due, "due", "", `new due date (YYYY-MM-DD, or "none")`)
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high")
	cmd.Flags().StringVarP(&category, "category", "c", "", "new category")
	return cmd
}

func newDoneCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done ID...",
		Short: "Toggle completion of tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				t, err := a.tracker.Get(ctx, id).Wait(ctx)
				if err != nil {
					return fmt.Errorf("task #%d: %w", id, err)
				}
				if _, err := a.tracker.ToggleComplete(ctx, t).Wait(ctx); err != nil {
					return err
				}
				state := "completed"
				if t.Completed {
					state = "reopened"
				}
				fmt.Fprintf(stdout(cmd), "%s #%d\n", state, id)
			}
			return nil
		}),
	}
}

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"delete"},
		Short:   "Delete tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				n, err := a.tracker.DeleteByID(ctx, id).Wait(ctx)
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintf(stdout(cmd), "no task #%d\n", id)
					continue
				}
				fmt.Fprintf(stdout(cmd), "deleted #%d\n", id)
			}
			return nil
		}),
	}
}

func newClearCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every task",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if !yes {
				return fmt.Errorf("%w: clear deletes every task and cannot be undone; pass --yes", errUsage)
			}
			n, err := a.tracker.DeleteAll(ctx).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout(cmd), "deleted %d tasks\n", n)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
