package server

import (
	"context"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vexdb/vexdb/internal/api/consumer"
	"github.com/vexdb/vexdb/internal/api/http"
	"github.com/vexdb/vexdb/internal/engine"
	"github.com/vexdb/vexdb/pkg/log"
	"github.com/vexdb/vexdb/pkg/metrics"
	"github.com/vexdb/vexdb/pkg/wal"
)

// Server represents the vexdb server
type Server struct {
	config   Config
	logger   *slog.Logger
	store    *engine.Store
	wal      *wal.WAL
	metrics  *metrics.Metrics
	consumer *consumer.Consumer
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initStore(); err != nil {
		return nil, errors.WithMessage(err, "init store failed")
	}

	if err := server.initConsumer(); err != nil {
		return nil, errors.WithMessage(err, "init consumer failed")
	}

	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	// Initialize log first
	if err := log.Init(s.config.Log); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	// Create logger for this module
	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	if s.config.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	// A WAL that cannot be opened is logged and skipped: the server still
	// comes up, without durability.
	if s.config.WAL.Enabled {
		w, err := wal.Open(s.config.WAL.Path)
		if err != nil {
			s.logger.Warn("failed to open wal, continuing without durability",
				"path", s.config.WAL.Path, "error", err)
		} else {
			s.wal = w
		}
	}

	return nil
}

// initStore initializes the database state, replaying the WAL if present
func (s *Server) initStore() error {
	s.logger.Info("initializing store", "wal", s.wal != nil)
	s.store = engine.NewStore(s.wal, s.metrics)
	return nil
}

// initConsumer initializes the kafka ingestion consumer
func (s *Server) initConsumer() error {
	s.logger.Info("initializing consumer")

	c, err := consumer.NewConsumer(s.store, consumer.Config{
		Kafka: s.config.Kafka,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create consumer")
	}

	s.consumer = c
	return nil
}

// Start runs the API server, metrics listener and consumer until a shutdown
// signal arrives.
func (s *Server) Start() error {
	s.logger.Info("starting", "host", s.config.Server.Host, "port", s.config.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		s.logger.Info("received shutdown signal")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	if s.consumer != nil {
		g.Go(func() error {
			return s.runConsumer(ctx)
		})
	}

	if s.metrics != nil {
		g.Go(func() error {
			return s.runMetricsServer(ctx)
		})
	}

	g.Go(func() error {
		return s.runHTTPServer(ctx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
		}
	}

	if s.wal != nil {
		if err := s.wal.Close(); err != nil {
			s.logger.Error("failed to close wal", "error", err)
		}
	}

	return nil
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	serverCfg := http.DefaultServerConfig()
	serverCfg.Host = s.config.Server.Host
	serverCfg.Port = s.config.Server.Port

	srv := http.NewServer(s.store, s.metrics, serverCfg)

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runMetricsServer(ctx context.Context) error {
	mux := stdhttp.NewServeMux()
	mux.Handle("GET /metrics", s.metrics.Handler())

	srv := &stdhttp.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Metrics.Port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	s.logger.Info("metrics server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return errors.WithMessage(err, "metrics server error")
	}
	return nil
}

func (s *Server) runConsumer(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return errors.WithMessage(err, "consumer start error")
	}

	// Wait for context cancellation
	<-ctx.Done()

	return s.consumer.Stop()
}
