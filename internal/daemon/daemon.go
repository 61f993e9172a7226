package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"adforge/internal/assets"
	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/logging"
	"adforge/internal/notifications"
	"adforge/internal/pipeline"
	"adforge/internal/project"
	"adforge/internal/reconcile"
	"adforge/internal/renderer/social"
	"adforge/internal/renderer/video"
	"adforge/internal/renderer/website"
	"adforge/internal/script"
	"adforge/internal/status"
)

// Daemon wires the store, dispatcher, controller, reconciler, and HTTP API
// together and enforces single-instance execution via a lock file.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *project.Store
	dispatcher *dispatch.Dispatcher
	controller *pipeline.Controller
	reconciler *reconcile.Reconciler
	statuses   *status.Service
	uploads    *assets.Store
	notifier   notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	server  *http.Server
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := project.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open project store: %w", err)
	}

	dispatcher := dispatch.New(logger)
	dispatcher.Register(video.New(cfg.Renderers.Video), cfg.Renderers.Video.PollInterval())
	dispatcher.Register(website.New(cfg.Renderers.Website), cfg.Renderers.Website.PollInterval())
	dispatcher.Register(social.New(cfg.Renderers.Publish, cfg.Publish), cfg.Renderers.Publish.PollInterval())

	notifier := notifications.NewService(cfg)
	controller := pipeline.New(cfg, store, dispatcher, script.NewFromConfig(cfg.Script), notifier, logger)
	reconciler := reconcile.New(cfg, store, dispatcher, controller, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "adforged.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		dispatcher: dispatcher,
		controller: controller,
		reconciler: reconciler,
		statuses:   status.NewService(store),
		uploads:    assets.NewStore(cfg),
		notifier:   notifier,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, reconciles state left over from the
// previous run, and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another adforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.dispatcher.Start(runCtx, d.controller.ApplyCompletion)
	if err := d.reconciler.Start(runCtx); err != nil {
		d.teardown()
		return fmt.Errorf("start reconciler: %w", err)
	}

	d.server = &http.Server{
		Addr:              d.cfg.Paths.APIBind,
		Handler:           newRouter(d.apiServer()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := d.server
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("api server failed", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("adforge daemon started",
		logging.String("bind", d.cfg.Paths.APIBind),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the HTTP API, halts background work, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("api server shutdown failed", logging.Error(err))
		}
		cancel()
		d.server = nil
	}

	d.reconciler.Stop()
	d.teardown()
	d.running.Store(false)
	d.logger.Info("adforge daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) apiServer() *apiServer {
	return &apiServer{
		controller: d.controller,
		statuses:   d.statuses,
		uploads:    d.uploads,
		logger:     d.logger,
		notifyTest: d.TestNotification,
	}
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.dispatcher.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
