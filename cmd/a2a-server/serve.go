// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/internal/config"
	"github.com/go-a2a/a2a-runtime/internal/telemetry"
	"github.com/go-a2a/a2a-runtime/server/agent"
	"github.com/go-a2a/a2a-runtime/server/event"
	"github.com/go-a2a/a2a-runtime/server/handler"
	"github.com/go-a2a/a2a-runtime/server/task"
)

// ServeCmd starts the A2A server. Flags override the config file.
type ServeCmd struct {
	Addr      string        `help:"Address to listen on."`
	Store     string        `help:"Task store backend (memory, file, sqlite, postgres, mysql)."`
	DSN       string        `name:"dsn" help:"Data source name of the database backends."`
	Dir       string        `help:"Directory of the file backend." type:"path"`
	Watch     bool          `help:"Reload task files changed by other processes."`
	LogLevel  string        `name:"log-level" help:"Log level (debug, info, warn, error)."`
	LogFormat string        `name:"log-format" help:"Log format (text, json)."`
	Metrics   bool          `help:"Expose Prometheus metrics."`
	EchoDelay time.Duration `name:"echo-delay" help:"Delay before the echo agent answers."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cli.Config, cli.EnvFile...)
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	return serve(ctx, cfg, logger)
}

// apply overrides cfg with the flags that were set.
func (c *ServeCmd) apply(cfg *config.Config) {
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.Store != "" {
		cfg.Store.Backend = c.Store
	}
	if c.DSN != "" {
		cfg.Store.DSN = c.DSN
	}
	if c.Dir != "" {
		cfg.Store.Dir = c.Dir
	}
	if c.Watch {
		cfg.Store.Watch = true
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	if c.Metrics {
		cfg.Metrics.Enabled = true
	}
	if c.EchoDelay > 0 {
		cfg.Runtime.EchoDelay = c.EchoDelay
	}
}

// app is the assembled server.
type app struct {
	store     task.TaskStore
	requests  *handler.DefaultRequestHandler
	rpc       *handler.JSONRPCHandler
	telemetry *telemetry.Provider
	logger    *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	tp, err := telemetry.New(telemetry.Config{
		Enabled:        cfg.Metrics.Enabled,
		ServiceName:    cfg.Server.Name,
		ServiceVersion: cfg.Server.Version,
		Namespace:      cfg.Metrics.Namespace,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	opts := []handler.Option{
		handler.WithLogger(logger),
		handler.WithMeterProvider(tp.MeterProvider()),
		handler.WithQueueOptions(event.WithCapacity(cfg.Runtime.QueueCapacity)),
		handler.WithContextBuilder(agent.NewSimpleRequestContextBuilder(
			agent.WithRelatedTasks(store),
			agent.WithBuilderLogger(logger),
		)),
		handler.WithPushConfigStore(task.NewInMemoryPushConfigStore()),
	}
	if cfg.Runtime.StrictArtifactAppend {
		opts = append(opts, handler.WithStrictArtifactAppend())
	}
	executor := agent.NewEchoExecutor(agent.WithEchoDelay(cfg.Runtime.EchoDelay), agent.WithEchoLogger(logger))

	requests, err := handler.NewDefaultRequestHandler(executor, store, opts...)
	if err != nil {
		return nil, errors.Join(err, store.Close(ctx))
	}

	card := &a2a.AgentCard{
		Name:               cfg.Server.Name,
		Description:        cfg.Server.Description,
		URL:                cfg.Server.URL,
		Version:            cfg.Server.Version,
		ProtocolVersion:    a2a.ProtocolVersion,
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
	}
	card.Capabilities.Streaming = cfg.Server.Streaming
	card.Capabilities.PushNotifications = false

	rpc, err := handler.NewJSONRPCHandler(requests,
		handler.WithAgentCard(card),
		handler.WithRPCPath(cfg.Server.RPCPath),
		handler.WithJSONRPCLogger(logger),
		handler.WithJSONRPCMeterProvider(tp.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Join(err, store.Close(ctx))
	}

	return &app{
		store:     store,
		requests:  requests,
		rpc:       rpc,
		telemetry: tp,
		logger:    logger,
	}, nil
}

// close stops running executions and releases the store.
func (a *app) close(ctx context.Context) error {
	return errors.Join(
		a.requests.Shutdown(ctx),
		a.store.Close(ctx),
		a.telemetry.Shutdown(ctx),
	)
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (task.TaskStore, error) {
	var store task.TaskStore
	switch cfg.Backend {
	case config.BackendMemory:
		store = task.NewInMemoryTaskStore(task.WithInMemoryLogger(logger))
	case config.BackendFile:
		fs, err := task.NewFileTaskStore(cfg.Dir, task.WithFileStoreLogger(logger))
		if err != nil {
			return nil, err
		}
		store = fs
	case config.BackendSQLite, config.BackendPostgres, config.BackendMySQL:
		db, err := task.OpenDatabase(cfg.Backend, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		ds, err := task.NewDatabaseTaskStore(task.DatabaseTaskStoreConfig{
			DB:          db,
			TableName:   cfg.Table,
			CreateTable: true,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		store = ds
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize %s store: %w", cfg.Backend, err)
	}
	return store, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(a.rpc, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	servers := []*http.Server{srv}
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.telemetry.Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			logger.InfoContext(ctx, "listening", slog.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	if fs, ok := a.store.(*task.FileTaskStore); ok && cfg.Store.Watch {
		g.Go(func() error {
			err := fs.Watch(gctx, func(taskID string) {
				logger.DebugContext(gctx, "task file changed", slog.String("task_id", taskID))
			})
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Shutdown(shutdownCtx))
		}
		errs = append(errs, a.close(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}
