package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/basket/tasktrack/internal/config"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change config.yaml",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := stdout(cmd)
			fmt.Fprintf(out, "# home: %s\n", cfg.HomeDir)
			if cfg.FileMissing {
				fmt.Fprintf(out, "# %s not found, showing defaults\n", config.ConfigPath(cfg.HomeDir))
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config.yaml holding the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home := opts.homeDir()
			if err := config.WriteDefault(home); err != nil {
				return err
			}
			fmt.Fprintf(stdout(cmd), "wrote %s\n", config.ConfigPath(home))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(opts.homeDir(), args[0], args[1]); err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			fmt.Fprintf(stdout(cmd), "%s = %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(showCmd, initCmd, setCmd)
	return cmd
}
