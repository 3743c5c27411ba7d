// Package daemon runs the API server as a single-instance background
// service: lock acquisition, preflight checks, and listener lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"salience/internal/config"
	"salience/internal/logging"
	"salience/internal/server"
	"salience/internal/store"
)

// Daemon coordinates the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	listener net.Listener
	server   *http.Server
	cancel   context.CancelFunc
}

// New constructs a daemon around an open store.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "salienced.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    st,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, runs preflight checks, and begins
// serving the API. It returns once the listener is accepting.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another salience daemon instance is already running")
	}

	if failed := PreflightFailures(Preflight(d.cfg)); len(failed) > 0 {
		_ = d.lock.Unlock()
		for _, check := range failed {
			d.logger.Error("preflight check failed",
				slog.String("check", check.Name), slog.String("detail", check.Detail))
		}
		return fmt.Errorf("preflight failed: %s", failed[0].Detail)
	}
	if err := d.store.Ping(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("database unavailable: %w", err)
	}

	api, err := server.New(d.cfg, d.store, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}

	listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}
	d.listener = listener
	d.server = &http.Server{
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	srv := d.server
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	d.running.Store(true)
	d.logger.Info("salience daemon started",
		slog.String("address", listener.Addr().String()),
		slog.String("lock", d.lockPath),
		slog.String("database", d.store.Path()))
	return nil
}

// Stop shuts the API server down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.server.Shutdown(shutdownCtx)
		d.server = nil
	}
	if d.listener != nil {
		_ = d.listener.Close()
		d.listener = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("salience daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is serving.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the bound listener address, or empty when stopped.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}
