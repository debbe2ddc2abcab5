package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/agentexec/executor"
	"github.com/hupe1980/agentexec/internal/app"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/prompt"
	"github.com/hupe1980/agentexec/stream"
	"github.com/spf13/cobra"
)

func newRunCommand(root *rootFlags) *cobra.Command {
	var (
		vars      map[string]string
		streaming bool
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Run the configured agent once",
		Example: `  agentexec run "What is the capital of France?"
  agentexec run --var topic=go --var audience=beginners "explain it"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := root.cfg
			logger := app.NewLogger(cfg.Log, os.Stderr)

			builder, err := app.NewBuilder(cfg.Agent, app.BuiltinTools(nil), logger)
			if err != nil {
				return err
			}

			mem, closeMem, err := runMemory(ctx, root, sessionID)
			if err != nil {
				return err
			}
			defer func() { _ = closeMem() }()

			capability, err := builder.Capability(mem)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			exec, err := executor.New(capability, func(o *executor.Options) {
				o.Logger = logger
				if streaming {
					o.Channel = stream.NewWriterChannel(out)
				}
			})
			if err != nil {
				return err
			}

			req := executor.Request{Input: args[0], PromptValues: prompt.Values(vars)}
			if streaming {
				req.Target = &stream.Target{ChannelID: "stdout", SessionID: sessionID}
			}

			resp, err := exec.Run(ctx, req)
			if err != nil {
				return err
			}

			if streaming && resp.Structured == nil {
				_, err = fmt.Fprintln(out)
				return err
			}
			return printResponse(cmd, resp)
		},
	}

	cmd.Flags().StringToStringVar(&vars, "var", nil, "prompt value as key=value, repeatable")
	cmd.Flags().BoolVar(&streaming, "stream", false, "print tokens as they are generated")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id used to load and persist history in external memory")
	return cmd
}

func runMemory(ctx context.Context, root *rootFlags, sessionID string) (memory.Conversation, func() error, error) {
	if sessionID == "" {
		return memory.NewInProcess(), func() error { return nil }, nil
	}
	factory, closeFn, err := app.MemoryFactory(root.cfg.Memory)
	if err != nil {
		return nil, nil, err
	}
	mem, err := factory(ctx, sessionID)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return mem, closeFn, nil
}

func printResponse(cmd *cobra.Command, resp *executor.Response) error {
	out := cmd.OutOrStdout()
	if resp.Structured == nil {
		_, err := fmt.Fprintln(out, resp.Text)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Structured)
}
