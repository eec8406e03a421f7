package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/persistence"
	"github.com/basket/tasktrack/internal/task"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.3-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process status: 2 for bad input, 3 when the
// database is held by another process, 1 otherwise.
func exitCode(err error) int {
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, errUsage):
		return 2
	case errors.Is(err, persistence.ErrLocked):
		return 3
	default:
		return 1
	}
}

var errUsage = errors.New("usage")

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "tasktrack",
		Short: "A personal task tracker",
		Long: `tasktrack keeps a prioritised task list in a local SQLite database.

Tasks have a title, an optional description, a due date, a priority
(low, medium, high) and a category. Lists are ordered by priority, then
newest first; the completed list is ordered newest first.

Run "tasktrack shell" for an interactive session with live filter, search
and undo.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&opts.home, "home", "", "data directory (default $TASKTRACK_HOME or ~/.tasktrack)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "also write logs to stderr")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newAddCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newEditCmd(opts),
		newDoneCmd(opts),
		newRemoveCmd(opts),
		newClearCmd(opts),
		newStatsCmd(opts),
		newCategoriesCmd(opts),
		newHistoryCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newBackupCmd(opts),
		newShellCmd(opts),
		newWatchCmd(opts),
		newConfigCmd(opts),
		newDoctorCmd(opts),
	)
	return root
}
