package main

import (
	"github.com/hupe1980/agentexec/config"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "agentexec",
		Short:         "Run prompt-driven LLM agents",
		Long:          "agentexec resolves prompt templates against user input, runs the configured agent and streams generated tokens to the caller.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			flags.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML, JSON or TOML config file")

	cmd.AddCommand(newRunCommand(flags))
	cmd.AddCommand(newServeCommand(flags))
	return cmd
}
