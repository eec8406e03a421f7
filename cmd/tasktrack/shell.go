package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/task"
)

func newShellCmd(opts *globalOptions) *cobra.Command {
	var filter, search string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with a live task list",
		Long: `Start an interactive session. The visible list is reprinted whenever it
changes. Type "help" for the commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := task.ParseFilter(filter)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, opts, appOptions{filter: f, filterSet: cmd.Flags().Changed("filter"), search: search})
			if err != nil {
				return err
			}
			defer a.Close()
			sh := &shell{app: a, out: stdout(cmd), now: time.Now, prompt: a.style.color}
			return sh.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "initial filter")
	cmd.Flags().StringVarP(&search, "search", "s", "", "initial search")
	return cmd
}

const shellHelp = `commands:
  add TITLE [!low|!high] [@category] [due:YYYY-MM-DD]
  done ID          toggle completion
  rm ID            delete (undoable)
  undo             restore the last deleted task
  filter all|active|completed
  search [TEXT]    search title and description; no text clears
  ls               print the visible list
  stats            active, completed and overdue counts
  quit`

var errQuit = errors.New("quit")

type shell struct {
	app    *app
	out    io.Writer
	now    func() time.Time
	prompt bool

	mu sync.Mutex
}

func (sh *shell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) printList(tasks []task.Task) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st := sh.app.style
	fmt.Fprintln(sh.out, st.render(st.header, fmt.Sprintf("-- %s (%d)", sh.app.tracker.State(), len(tasks))))
	printTasks(sh.out, st, tasks, sh.now())
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	updates, cancel := sh.app.tracker.VisibleTasks().Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for tasks := range updates {
			sh.printList(tasks)
		}
	}()
	defer wg.Wait()
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if sh.prompt {
			sh.printf("> ")
		}
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}
		err := sh.exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			sh.printf("error: %v\n", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	tr := sh.app.tracker
	verb, rest := fields[0], fields[1:]
	switch verb {
	case "add", "a":
		t, err := parseAddLine(rest, sh.now())
		if err != nil {
			return err
		}
		id, err := tr.Insert(ctx, t).Wait(ctx)
		if err != nil {
			return err
		}
		sh.printf("added #%d\n", id)
	case "done", "x":
		if len(rest) != 1 {
			return fmt.Errorf("usage: done ID")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		t, err := tr.Get(ctx, id).Wait(ctx)
		if err != nil {
			return fmt.Errorf("task #%d: %w", id, err)
		}
		if _, err := tr.ToggleComplete(ctx, t).Wait(ctx); err != nil {
			return err
		}
		if t.Completed {
			sh.printf("reopened #%d\n", id)
		} else {
			sh.printf("completed #%d\n", id)
		}
	case "rm", "del":
		if len(rest) != 1 {
			return fmt.Errorf("usage: rm ID")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		n, err := tr.DeleteByID(ctx, id).Wait(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			sh.printf("no task #%d\n", id)
			return nil
		}
		sh.printf("deleted #%d (undo to restore)\n", id)
	case "undo", "u":
		t, _ := tr.LastDeleted()
		ok, err := tr.Undo(ctx).Wait(ctx)
		if err != nil {
			return err
		}
		if !ok {
			sh.printf("nothing to undo\n")
			return nil
		}
		sh.printf("restored #%d\n", t.ID)
	case "filter", "f":
		if len(rest) != 1 {
			return fmt.Errorf("usage: filter all|active|completed")
		}
		f, err := task.ParseFilter(rest[0])
		if err != nil {
			return err
		}
		return tr.SetFilter(f)
	case "search", "/":
		return tr.SetSearchQuery(strings.Join(rest, " "))
	case "ls", "list":
		tasks, _ := tr.VisibleTasks().Get()
		sh.printList(tasks)
	case "stats":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		c, err := tr.Store().CountsAt(ctx, sh.now()).Wait(ctx)
		if err != nil {
			return err
		}
		sh.printf("%d active, %d completed, %d overdue\n", c.Active, c.Completed, c.Overdue)
	case "help", "?":
		sh.printf("%s\n", shellHelp)
	case "quit", "exit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
	return nil
}

// parseAddLine reads a title with inline !priority, @category and due:DATE
// tokens.
func parseAddLine(fields []string, now time.Time) (task.Task, error) {
	var title []string
	t := task.New("", now)
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "!") && len(f) > 1:
			p, err := task.ParsePriority(f[1:])
			if err != nil {
				return t, &task.ValidationError{Field: "priority", Message: err.Error()}
			}
			t.Priority = p
		case strings.HasPrefix(f, "@") && len(f) > 1:
			t.Category = f[1:]
		case strings.HasPrefix(f, "due:"):
			due, err := parseDue(strings.TrimPrefix(f, "due:"))
			if err != nil {
				return t, err
			}
			t.DueDate = due
		default:
			title = append(title, f)
		}
	}
	t.Title = strings.Join(title, " ")
	return t, task.Validate(t)
}
