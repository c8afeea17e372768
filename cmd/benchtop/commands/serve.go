package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hperssn/benchtop/internal/config"
	"github.com/hperssn/benchtop/internal/httpapi"
	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/metrics"
	"github.com/hperssn/benchtop/internal/notify"
	"github.com/hperssn/benchtop/internal/runner"
	"github.com/hperssn/benchtop/internal/scheduler"
	"github.com/hperssn/benchtop/internal/storage"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `help:"Listen address, overrides server.addr"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}

	logger := newLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format, root.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	src, err := openCatalog(ctx, cfg.Catalog, true, logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	repo, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	var history runner.HistorySink
	if repo != nil {
		defer repo.Close()
		history = storage.NewHistory(repo)
		logger.Info("Session history enabled", slog.String("driver", cfg.Storage.Driver))
	}

	var (
		recorder       metrics.Recorder = metrics.NoopRecorder{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		metricsHandler = metrics.HTTPHandler(reg)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notify.NATSURL != "" {
		nn, err := notify.NewNATSNotifier(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
		if err != nil {
			return err
		}
		notifier = nn
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("Failed to close notifier", logfields.Error(err))
		}
	}()

	manager := runner.NewSessionManager(runner.ManagerOptions{
		Logger:          logger,
		Recorder:        recorder,
		History:         history,
		OnTimerFinished: notifier.TimerFinished,
		IdleTimeout:     cfg.Sessions.IdleTimeout,
	})

	if cfg.Sessions.IdleTimeout > 0 {
		sched, err := scheduler.New(nil, logger)
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleIdleSweep(cfg.Sessions.SweepInterval, manager); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Warn("Failed to stop scheduler", logfields.Error(err))
			}
		}()
	}

	api := httpapi.New(httpapi.Options{
		Catalog:     src,
		Manager:     manager,
		History:     repo,
		Metrics:     metricsHandler,
		Logger:      logger,
		EventBuffer: cfg.Sessions.EventBuffer,
	})

	srv := newHTTPServer(cfg.Server, api.Handler())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	// Closing the sessions first ends their event streams, which would
	// otherwise hold Shutdown open.
	closed := manager.CloseAll(metrics.ReasonShutdown)
	logger.Info("Closed open sessions", slog.Int("count", closed))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// newHTTPServer leaves ReadTimeout and WriteTimeout unset; event streams stay
// open for the life of a session.
func newHTTPServer(cfg config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
