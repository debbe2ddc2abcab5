package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/agentexec/agent"
	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/internal/app"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/server"
	"github.com/hupe1980/agentexec/session"
	"github.com/hupe1980/agentexec/stream"
	"github.com/spf13/cobra"
)

func newServeCommand(root *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the prediction API and websocket token streaming",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := root.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := app.NewLogger(cfg.Log, os.Stderr)
			gin.SetMode(gin.ReleaseMode)

			builder, err := app.NewBuilder(cfg.Agent, app.BuiltinTools(nil), logger)
			if err != nil {
				return err
			}

			factory, closeMem, err := app.MemoryFactory(cfg.Memory)
			if err != nil {
				return err
			}
			defer func() { _ = closeMem() }()

			observers, shutdownTracing, err := app.Observers(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(sctx); err != nil {
					logger.Warn("tracing.shutdown.failed", "error", err)
				}
			}()

			sessions := session.NewInMemoryStore(factory, func(o *session.Options) {
				o.TTL = cfg.Memory.SessionTTL
				o.Logger = logger
			})
			go evictLoop(ctx, sessions, cfg.Memory.SessionTTL)

			hub := stream.NewHub(func(o *stream.HubOptions) {
				o.Logger = logger
				o.WriteTimeout = cfg.Server.WriteTimeout
			})

			var metrics *callback.Metrics
			if cfg.Metrics.Enabled {
				metrics = callback.NewMetrics()
			}

			srv, err := server.New(func(mem memory.Conversation) (agent.Capability, error) {
				return builder.Capability(mem)
			}, func(o *server.Options) {
				o.Logger = logger
				o.Hub = hub
				o.Sessions = sessions
				o.Metrics = metrics
				o.Observers = observers
				o.WebsocketPath = cfg.Server.WebsocketPath
				o.MetricsPath = cfg.Metrics.Path
			})
			if err != nil {
				return err
			}

			logger.Info("agentexec.serve.config",
				"addr", cfg.Server.Addr,
				"agent.backend", cfg.Agent.Backend,
				"agent.provider", cfg.Agent.Provider,
				"memory.type", cfg.Memory.Type,
			)
			return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func evictLoop(ctx context.Context, sessions *session.InMemoryStore, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Evict()
		}
	}
}
