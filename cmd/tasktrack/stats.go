package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/audit"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show active, completed and overdue counts",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			c, err := a.tracker.Store().CountsAt(ctx, time.Now()).Wait(ctx)
			if err != nil {
				return err
			}
			out := stdout(cmd)
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]int{
					"active":    c.Active,
					"completed": c.Completed,
					"overdue":   c.Overdue,
				})
			}
			fmt.Fprintf(out, "%-10s %d\n", "active", c.Active)
			fmt.Fprintf(out, "%-10s %d\n", "completed", c.Completed)
			overdue := fmt.Sprintf("%d", c.Overdue)
			if c.Overdue > 0 {
				overdue = a.style.render(a.style.overdue, overdue)
			}
			fmt.Fprintf(out, "%-10s %s\n", "overdue", overdue)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newCategoriesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the distinct categories in use",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			cats, err := a.tracker.Categories().Await(ctx, func([]string) bool { return true })
			if err != nil {
				return fmt.Errorf("read categories: %w", err)
			}
			for _, c := range cats {
				fmt.Fprintln(stdout(cmd), c)
			}
			return nil
		}),
	}
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := audit.Tail(opts.homeDir(), limit)
			if err != nil {
				return err
			}
			out := stdout(cmd)
			for _, e := range entries {
				target := "all"
				if e.TaskID != 0 {
					target = fmt.Sprintf("#%d", e.TaskID)
				}
				fmt.Fprintf(out, "%s  %-10s %-5s rows=%d\n", e.Timestamp, e.Op, target, e.Rows)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries (0 = all)")
	return cmd
}
