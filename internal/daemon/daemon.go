// Package daemon wires the stores, scheduler, runner, and HTTP API into a
// long-running single-instance service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"voicecast/internal/config"
	"voicecast/internal/episodes"
	"voicecast/internal/jobs"
	"voicecast/internal/logging"
	"voicecast/internal/notifications"
	"voicecast/internal/preflight"
	"voicecast/internal/providers"
	"voicecast/internal/runner"
	"voicecast/internal/scheduler"
	"voicecast/internal/storage"
	"voicecast/internal/taskqueue"
)

// Daemon coordinates the generation pipeline and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	episodes  *episodes.Store
	jobs      *jobs.Store
	resolver  *providers.Resolver
	scheduler *scheduler.Scheduler
	runner    *runner.Runner
	queue     *taskqueue.Queue
	notifier  notifications.Service
	api       *apiServer
	checks    []preflight.Check

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	checks, ok := preflight.Run(cfg)
	for _, check := range checks {
		attrs := []any{
			logging.String("check", check.Name),
			logging.Bool("passed", check.Passed),
			logging.String("detail", check.Detail),
		}
		if check.Passed {
			logger.Debug("preflight check", attrs...)
		} else {
			logger.Warn("preflight check", attrs...)
		}
	}
	if !ok {
		return nil, errors.New("preflight checks failed, see log for details")
	}

	jobStore, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	episodeStore, err := episodes.Open(cfg)
	if err != nil {
		_ = jobStore.Close()
		return nil, fmt.Errorf("open episode store: %w", err)
	}
	backend, err := storage.NewLocal(cfg)
	if err != nil {
		_ = jobStore.Close()
		_ = episodeStore.Close()
		return nil, err
	}

	resolver := providers.NewResolver(cfg)
	notifier := notifications.NewService(cfg)
	run := runner.New(cfg, jobStore, episodeStore, resolver.Resolve, backend, notifier, logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		episodes: episodeStore,
		jobs:     jobStore,
		resolver: resolver,
		runner:   run,
		notifier: notifier,
		checks:   checks,
		lockPath: filepath.Join(cfg.Paths.DataDir, "voicecastd.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.queue = taskqueue.New(run.Process, 256, logger)
	d.scheduler = scheduler.New(cfg, episodeStore, jobStore, d.queue, logger)
	d.api, err = newAPIServer(cfg, d, logger)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// Start acquires the instance lock, re-enqueues jobs that were queued at
// shutdown, and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another voicecast daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.queue.Start(runCtx)

	ids, err := d.jobs.QueuedJobIDs(runCtx)
	if err != nil {
		d.logger.Warn("load queued jobs", logging.Error(err))
	}
	for _, id := range ids {
		if err := d.queue.Enqueue(id); err != nil {
			d.logger.Warn("re-enqueue job", logging.Int64(logging.FieldJobID, id), logging.Error(err))
		}
	}
	if len(ids) > 0 {
		d.logger.Info("re-enqueued pending jobs", logging.Int("count", len(ids)))
	}

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("voicecast daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.queue.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("voicecast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.jobs != nil {
		errs = append(errs, d.jobs.Close())
	}
	if d.episodes != nil {
		errs = append(errs, d.episodes.Close())
	}
	return errors.Join(errs...)
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
