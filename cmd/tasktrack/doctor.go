package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/doctor"
)

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				// Diagnose anyway; the config check reports what is wrong.
				fmt.Fprintf(cmd.ErrOrStderr(), "Error loading config: %v\n", err)
			}
			diag := doctor.Run(cmd.Context(), &cfg, Version)
			out := stdout(cmd)

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(diag); err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
			} else {
				fmt.Fprintf(out, "tasktrack doctor (%s)\n", diag.Timestamp.Format(time.RFC3339))
				fmt.Fprintf(out, "System: %s/%s (%s)\n", diag.System.OS, diag.System.Arch, diag.System.Go)
				fmt.Fprintln(out, "---")
				for _, res := range diag.Results {
					fmt.Fprintf(out, "%-4s %-16s %s\n", res.Status, res.Name+":", res.Message)
					if res.Detail != "" {
						fmt.Fprintf(out, "     %s\n", res.Detail)
					}
				}
			}
			if n := diag.Failed(); n > 0 {
				return fmt.Errorf("%d checks failed", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	return cmd
}
