package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/agentexec/agent"
	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/core"
	"github.com/hupe1980/agentexec/executor"
	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/session"
	"github.com/hupe1980/agentexec/stream"
)

// CapabilityFactory builds the capability for one request around the given
// conversation memory.
type CapabilityFactory func(mem memory.Conversation) (agent.Capability, error)

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// Hub serves websocket streaming. Nil disables streaming.
	Hub *stream.Hub
	// Sessions keeps memory across requests sharing a session id. Requests
	// without a session id use a fresh in-process memory.
	Sessions      *session.InMemoryStore
	Metrics       *callback.Metrics
	Observers     []callback.Observer
	WebsocketPath string
	MetricsPath   string
}

// Server is the prediction API.
type Server struct {
	factory CapabilityFactory
	opts    Options
	logger  logging.Logger
	router  *gin.Engine
}

// New creates a Server.
func New(factory CapabilityFactory, optFns ...func(o *Options)) (*Server, error) {
	if factory == nil {
		return nil, errors.New("server: nil capability factory")
	}

	opts := Options{
		WebsocketPath: "/ws",
		MetricsPath:   "/metrics",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore(session.InProcessFactory(), func(o *session.Options) {
			o.Logger = opts.Logger
		})
	}

	s := &Server{
		factory: factory,
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger),
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(s.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.POST("/prediction", s.predict)

	if s.opts.Hub != nil {
		router.GET(s.opts.WebsocketPath, gin.WrapH(s.opts.Hub))
	}
	if s.opts.Metrics != nil {
		router.GET(s.opts.MetricsPath, gin.WrapH(s.opts.Metrics.Handler()))
	}
	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Debug("server.shutdown.start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.opts.Hub != nil {
		s.opts.Hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server.shutdown.completed")
	return nil
}

func (s *Server) predict(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	var history []core.Turn
	if req.History != nil {
		turns, err := core.TurnsFromChatHistory(req.History)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		history = turns
	}

	ctx := c.Request.Context()

	var mem memory.Conversation
	if req.SessionID != "" {
		unlock := s.opts.Sessions.Lock(req.SessionID)
		defer unlock()
		sess, err := s.opts.Sessions.Get(ctx, req.SessionID)
		if err != nil {
			s.fail(c, err)
			return
		}
		mem = sess.Memory
	} else {
		mem = memory.NewInProcess()
	}

	capability, err := s.factory(mem)
	if err != nil {
		s.fail(c, err)
		return
	}

	exec, err := executor.New(capability, func(o *executor.Options) {
		o.Logger = s.logger
		o.Observers = s.opts.Observers
		o.Metrics = s.opts.Metrics
		if s.opts.Hub != nil {
			o.Channel = s.opts.Hub
		}
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	var target *stream.Target
	if req.SocketClientID != "" && s.opts.Hub != nil {
		target = &stream.Target{ChannelID: req.SocketClientID, SessionID: req.SessionID}
	}

	resp, err := exec.Run(ctx, executor.Request{
		Input:        req.Question,
		PromptValues: req.PromptValues,
		Target:       target,
		History:      history,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, PredictionResponse{
		RunID:     resp.RunID,
		SessionID: req.SessionID,
		Mode:      resp.Mode.String(),
		Text:      resp.Text,
		JSON:      resp.Structured,
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	var missing *executor.MissingVariablesError
	if errors.As(err, &missing) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Missing: missing.Missing})
		return
	}
	s.logger.Error("server.prediction.failed", "error", err.Error())
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
