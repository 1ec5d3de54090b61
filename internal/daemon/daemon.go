// Package daemon wires configuration, stores, the workflow manager, and the
// HTTP API into a single supervised process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"substream/internal/api"
	"substream/internal/catalog"
	"substream/internal/config"
	"substream/internal/identification"
	"substream/internal/identification/tmdb"
	"substream/internal/logging"
	"substream/internal/media/ffprobe"
	"substream/internal/metrics"
	"substream/internal/notifications"
	"substream/internal/pipeline"
	"substream/internal/reconcile"
	"substream/internal/services/bing"
	"substream/internal/watcher"
	"substream/internal/workflow"
)

// Daemon owns the background services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog *catalog.MongoStore
	store   *workflow.Store
	manager *workflow.Manager
	server  *api.Server
	watch   *watcher.Watcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Build connects every collaborator from configuration. The returned daemon
// is ready to Start; Close releases whatever Build acquired.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	log := logging.NewComponentLogger(logger, "daemon")

	catalogStore, err := catalog.Connect(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("connect catalog: %w", err)
	}

	instanceStore, err := workflow.Open(cfg.QueueDBPath())
	if err != nil {
		_ = catalogStore.Close(context.Background())
		return nil, fmt.Errorf("open instance store: %w", err)
	}

	orchestrator, err := buildOrchestrator(cfg, catalogStore, logger)
	if err != nil {
		_ = instanceStore.Close()
		_ = catalogStore.Close(context.Background())
		return nil, err
	}

	collector := metrics.NewCollector()
	notifier := notifications.NewService(cfg.Notifications)
	manager, err := workflow.NewManager(instanceStore, orchestrator, cfg.Workflow, collector, notifier, logger)
	if err != nil {
		_ = instanceStore.Close()
		_ = catalogStore.Close(context.Background())
		return nil, fmt.Errorf("build workflow manager: %w", err)
	}

	server, err := api.NewServer(cfg.Paths.APIBind, manager, catalogStore, collector.Handler(), logger)
	if err != nil {
		_ = instanceStore.Close()
		_ = catalogStore.Close(context.Background())
		return nil, fmt.Errorf("build api server: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   log,
		catalog:  catalogStore,
		store:    instanceStore,
		manager:  manager,
		server:   server,
		lockPath: cfg.LockFilePath(),
		lock:     flock.New(cfg.LockFilePath()),
	}

	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Paths.IngestDir, cfg.Watcher, manager.StartPipeline, logger)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("build watcher: %w", err)
		}
		d.watch = w
	}
	return d, nil
}

func buildOrchestrator(cfg *config.Config, store catalog.Store, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	probeTimeout := time.Duration(cfg.Probe.Timeout) * time.Second
	probe := func(ctx context.Context, path string) (ffprobe.Result, error) {
		if probeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, probeTimeout)
			defer cancel()
		}
		return ffprobe.Inspect(ctx, cfg.Probe.Binary, path)
	}
	extractor := identification.NewExtractor(probe, logger)

	searcher, err := bing.New(cfg.Search.APIKey, cfg.Search.EndpointURL,
		bing.WithRateLimit(cfg.Search.RequestsPerSecond),
		bing.WithTimeout(time.Duration(cfg.Search.RequestTimeout)*time.Second))
	if err != nil {
		return nil, fmt.Errorf("build search client: %w", err)
	}

	finder, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithRateLimit(cfg.TMDB.RequestsPerSecond),
		tmdb.WithTimeout(time.Duration(cfg.TMDB.RequestTimeout)*time.Second))
	if err != nil {
		return nil, fmt.Errorf("build tmdb client: %w", err)
	}

	engine, err := reconcile.NewEngine(store, logger)
	if err != nil {
		return nil, fmt.Errorf("build reconcile engine: %w", err)
	}
	return pipeline.NewOrchestrator(store, extractor, searcher, identification.NewResolver(finder, logger), engine, logger)
}

// Start acquires the lock and launches the manager, API server, and
// optional watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another substream daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.manager.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("start workflow manager: %w", err)
	}
	if err := d.server.Start(runCtx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.manager.Stop(stopCtx)
		stopCancel()
		d.releaseLock()
		cancel()
		return fmt.Errorf("start api server: %w", err)
	}
	if d.watch != nil {
		if err := d.watch.Start(runCtx); err != nil {
			d.logger.Warn("ingest watcher failed to start", logging.Error(err))
			d.watch = nil
		}
	}
	if interval := time.Duration(d.cfg.Store.HealthCheckInterval) * time.Second; interval > 0 {
		go healthLoop(runCtx, d.catalog, interval, d.logger)
	}

	d.running.Store(true)
	d.logger.Info("substream daemon started",
		logging.String("api", d.server.Addr()),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.watch != nil {
		d.watch.Stop()
	}
	d.server.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := d.manager.Stop(stopCtx); err != nil {
		d.logger.Warn("workflow manager stop timed out", logging.Error(err))
	}
	cancel()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("substream daemon stopped")
}

// Close stops the daemon and closes its stores.
func (d *Daemon) Close() error {
	d.Stop()

	var errs []error
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close instance store: %w", err))
		}
		d.store = nil
	}
	if d.catalog != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), disconnectGrace(d.cfg.Store))
		if err := d.catalog.Close(closeCtx); err != nil {
			errs = append(errs, fmt.Errorf("close catalog: %w", err))
		}
		cancel()
		d.catalog = nil
	}
	return errors.Join(errs...)
}

// disconnectGrace bounds how long Close waits for the catalog connection to
// drain before giving up.
func disconnectGrace(cfg config.Store) time.Duration {
	if cfg.DisconnectGracePeriod > 0 {
		return time.Duration(cfg.DisconnectGracePeriod) * time.Second
	}
	return 10 * time.Second
}

// healthLoop pings the catalog on a fixed interval so connection loss shows
// up in the logs before a pipeline step trips over it.
func healthLoop(ctx context.Context, pinger api.Pinger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("catalog health check failed", logging.Error(err))
		}
	}
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
