package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/taskio"
)

func newImportCmd(opts *globalOptions) *cobra.Command {
	var keepIDs bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import tasks from a JSON export (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			doc, err := taskio.Decode(r)
			if err != nil {
				return err
			}
			ids, err := taskio.Import(ctx, a.tracker, doc, keepIDs)
			if err != nil {
				return err
			}
			a.logger.Info("tasks imported", "count", len(ids), "keep_ids", keepIDs, "source", args[0])
			fmt.Fprintf(stdout(cmd), "imported %d tasks\n", len(ids))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&keepIDs, "keep-ids", false, "keep the ids in the file, replacing existing tasks with the same id")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every task as JSON",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			tasks, err := a.tracker.Store().Snapshot(ctx, task.FilterAll).Wait(ctx)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return taskio.Encode(stdout(cmd), tasks, time.Now())
			}
			tmp, err := os.CreateTemp(filepath.Dir(output), ".export-*.json")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())
			if err := taskio.Encode(tmp, tasks, time.Now()); err != nil {
				tmp.Close()
				return err
			}
			if err := tmp.Close(); err != nil {
				return err
			}
			if err := os.Rename(tmp.Name(), output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d tasks to %s\n", len(tasks), output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func newBackupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup FILE",
		Short: "Copy the database to FILE",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := a.db.Backup(ctx, args[0]); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintf(stdout(cmd), "backed up to %s\n", args[0])
			return nil
		}),
	}
}
