package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"artdedup/internal/api"
	"artdedup/internal/config"
	"artdedup/internal/logging"
	"artdedup/internal/scanner"
	"artdedup/internal/store"
)

// Daemon serves the dedup API and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	scanner *scanner.Scanner
	service *api.Service
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, sc *scanner.Scanner, svc *api.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || sc == nil || svc == nil {
		return nil, errors.New("daemon requires config, store, scanner and service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		scanner:  sc,
		service:  svc,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and starts serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another artdedup daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("artdedup daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.Addr()),
	)
	return nil
}

// Stop stops serving and releases the daemon lock. Running scans keep going
// until Close.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("artdedup daemon stopped")
}

// Close stops the daemon, cancels running scans and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	d.scanner.Close()
	return d.store.Close()
}

// Addr returns the address the API listens on, or "" when not serving.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Handler returns the HTTP handler serving the API and metrics.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	status, err := d.service.Status(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	status.Running = d.running.Load()
	status.PID = os.Getpid()
	status.LockFilePath = d.lockPath
	return status, nil
}
