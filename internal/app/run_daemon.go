package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dev-tams/backupprune/internal/config"
	"github.com/dev-tams/backupprune/internal/schedule"
	"github.com/dev-tams/backupprune/internal/storage"
)

const metricsShutdownTimeout = 5 * time.Second

// RunDaemon runs retention on cfg.Schedule until ctx is canceled. Each run
// is bounded by cfg.RunTimeout when set. When cfg.MetricsAddr is set and a
// collector is configured, metrics are served on it.
func RunDaemon(ctx context.Context, cfg *config.Config, remote storage.Remote, opts Options) error {
	opts = opts.withDefaults()
	log := opts.Log.With("component", "daemon")

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Schedule == "" {
		return fmt.Errorf("daemon: schedule is required (BACKUP_PRUNE_SCHEDULE)")
	}

	var srv *http.Server
	srvErr := make(chan error, 1)
	if cfg.MetricsAddr != "" && opts.Metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", opts.Metrics.Handler())
		srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()
	}

	s := schedule.NewScheduler(cfg.Schedule, cfg.RunTimeout, func(runCtx context.Context) error {
		_, err := RunRetention(runCtx, cfg, remote, opts)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("run timed out after %s: %w", cfg.RunTimeout, err)
		}
		return err
	}, opts.Log)

	if err := s.Start(ctx); err != nil {
		shutdownMetrics(srv)
		return err
	}

	var err error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err = <-srvErr:
		err = fmt.Errorf("metrics server: %w", err)
	}

	s.Stop()
	shutdownMetrics(srv)
	return err
}

func shutdownMetrics(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
