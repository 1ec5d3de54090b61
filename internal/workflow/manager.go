package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"substream/internal/config"
	"substream/internal/logging"
	"substream/internal/media"
	"substream/internal/metrics"
	"substream/internal/notifications"
	"substream/internal/pipeline"
	"substream/internal/services"
)

// InstanceStatus is the caller-facing view of one pipeline instance.
type InstanceStatus struct {
	ID          string         `json:"id"`
	FilePath    string         `json:"filePath"`
	OwnerID     string         `json:"ownerId"`
	Status      Status         `json:"status"`
	State       pipeline.State `json:"state"`
	Identified  bool           `json:"identified"`
	Entry       *media.Entry   `json:"entry,omitempty"`
	FailureKind string         `json:"failureKind,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Manager drives persisted pipeline instances to completion.
type Manager struct {
	store        *Store
	orchestrator *pipeline.Orchestrator
	cfg          config.Workflow
	collector    *metrics.Collector
	notifier     notifications.Service
	logger       *slog.Logger

	stepTimeout  time.Duration
	stepAttempts int
	retryBackoff time.Duration
	pollInterval time.Duration
	errorRetry   time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
}

// NewManager wires the scheduler around its store and orchestrator. The
// collector and notifier are optional.
func NewManager(store *Store, orchestrator *pipeline.Orchestrator, cfg config.Workflow, collector *metrics.Collector, notifier notifications.Service, logger *slog.Logger) (*Manager, error) {
	if store == nil || orchestrator == nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "new", "store and orchestrator are required", nil)
	}
	if notifier == nil {
		notifier = notifications.NewService(config.Notifications{})
	}

	m := &Manager{
		store:        store,
		orchestrator: orchestrator,
		cfg:          cfg,
		collector:    collector,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		stepTimeout:  secondsOr(cfg.StepTimeout, 600),
		retryBackoff: secondsOr(cfg.RetryBackoff, 1),
		pollInterval: secondsOr(cfg.QueuePollInterval, 2),
		errorRetry:   secondsOr(cfg.ErrorRetryInterval, 5),
		stepAttempts: cfg.StepAttempts,
	}
	if m.stepAttempts < 1 {
		m.stepAttempts = 3
	}
	return m, nil
}

func secondsOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// Start requeues orphaned instances and launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return services.Wrap(services.ErrValidation, "workflow", "start", "manager already started", nil)
	}

	requeued, err := m.store.ResetRunning(ctx)
	if err != nil {
		return err
	}
	if requeued > 0 {
		m.logger.Info("requeued orphaned instances", logging.Int64("count", requeued))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.stopped = make(chan struct{})

	workers := m.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(runCtx)
	}
	go func() {
		m.wg.Wait()
		close(m.stopped)
	}()

	m.logger.Info("workflow manager started", logging.Int("workers", workers))
	return nil
}

// Stop halts the workers and waits for in-flight instances to persist.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	stopped := m.stopped
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Healthy reports whether the instance store is reachable.
func (m *Manager) Healthy(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// StartPipeline enqueues one file and returns the instance handle.
func (m *Manager) StartPipeline(ctx context.Context, filePath, ownerID string) (string, error) {
	if filePath == "" || ownerID == "" {
		return "", services.Wrap(services.ErrValidation, "workflow", "start pipeline", "file path and owner id are required", nil)
	}

	handle := uuid.NewString()
	inst := pipeline.NewInstance(handle, ownerID, filePath)
	payload, err := json.Marshal(inst)
	if err != nil {
		return "", fmt.Errorf("encode instance: %w", err)
	}

	rec := &Record{
		ID:       handle,
		OwnerID:  ownerID,
		FilePath: filePath,
		Status:   StatusPending,
		State:    inst.State,
		Payload:  string(payload),
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return "", err
	}
	if m.collector != nil {
		m.collector.PipelineStarted()
	}
	m.logger.Info("pipeline enqueued",
		logging.String("handle", handle),
		logging.String("path", filePath))
	return handle, nil
}

// Status returns the current state and, for terminal instances, the result.
func (m *Manager) Status(ctx context.Context, handle string) (*InstanceStatus, error) {
	rec, err := m.store.Get(ctx, handle)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return recordStatus(rec), nil
}

// List returns recent instance statuses, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]InstanceStatus, error) {
	records, err := m.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	statuses := make([]InstanceStatus, 0, len(records))
	for i := range records {
		statuses = append(statuses, *recordStatus(&records[i]))
	}
	return statuses, nil
}

func recordStatus(rec *Record) *InstanceStatus {
	status := &InstanceStatus{
		ID:          rec.ID,
		FilePath:    rec.FilePath,
		OwnerID:     rec.OwnerID,
		Status:      rec.Status,
		State:       rec.State,
		FailureKind: rec.FailureKind,
		Error:       rec.ErrorMessage,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.Status == StatusCompleted && rec.Result != "" {
		var entry media.Entry
		if err := json.Unmarshal([]byte(rec.Result), &entry); err == nil {
			status.Entry = &entry
			status.Identified = true
		}
	}
	return status
}

// ProcessBatch fans the files out over pipeline instances with the
// configured batch width, awaiting each group before the next starts.
func (m *Manager) ProcessBatch(ctx context.Context, ownerID string, files []string) error {
	coordinator := pipeline.NewCoordinator(m.cfg.BatchWidth, secondsOr(m.cfg.BatchSettleSeconds, 0), m.logger)
	start := time.Now()

	var mu sync.Mutex
	processed, failed := 0, 0
	err := coordinator.Process(ctx, files, func(ctx context.Context, filePath string) error {
		launchErr := m.launchAndWait(ctx, filePath, ownerID)
		mu.Lock()
		if launchErr != nil {
			failed++
		} else {
			processed++
		}
		mu.Unlock()
		return launchErr
	})

	if notifyErr := m.notifier.NotifyBatchCompleted(ctx, processed, failed, time.Since(start)); notifyErr != nil {
		m.logger.Warn("batch notification failed", logging.Error(notifyErr))
	}
	return err
}

// launchAndWait starts one instance and blocks until it reaches a terminal
// status. Only a classified failure counts as an error; an unidentified
// outcome is a normal terminal result.
func (m *Manager) launchAndWait(ctx context.Context, filePath, ownerID string) error {
	handle, err := m.StartPipeline(ctx, filePath, ownerID)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		rec, err := m.store.Get(ctx, handle)
		if err != nil {
			return err
		}
		if rec == nil || !rec.Status.Terminal() {
			continue
		}
		if rec.Status == StatusFailed {
			return fmt.Errorf("pipeline %s failed (%s): %s", handle, rec.FailureKind, rec.ErrorMessage)
		}
		return nil
	}
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			rec, err := m.store.ClaimNext(ctx)
			if err != nil {
				// Queue errors back off longer than the normal poll so a
				// broken store does not get hammered.
				m.logger.Error("claim failed", logging.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.errorRetry):
				}
				break
			}
			if rec == nil {
				break
			}
			m.runInstance(ctx, rec)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// runInstance drives one claimed instance until it is terminal or the
// manager shuts down. Progress persists after every step so a restart
// resumes mid-pipeline instead of starting over.
func (m *Manager) runInstance(ctx context.Context, rec *Record) {
	start := time.Now()

	var inst pipeline.Instance
	if err := json.Unmarshal([]byte(rec.Payload), &inst); err != nil {
		m.finish(ctx, rec, &inst, start, services.Wrap(services.ErrData, "workflow", "decode instance", rec.ID, err))
		return
	}

	for !inst.State.Terminal() {
		if ctx.Err() != nil {
			// Shutdown mid-pipeline: leave the instance running; startup
			// recovery requeues it.
			return
		}

		state := inst.State
		err := m.runStep(ctx, &inst)
		if err != nil {
			rec.Attempts++
			if services.IsRetryable(err) && rec.Attempts < m.stepAttempts {
				if m.collector != nil {
					m.collector.StepRetried(string(state))
				}
				m.logger.Warn("step failed, retrying",
					logging.String("handle", rec.ID),
					logging.String("state", string(state)),
					logging.Int("attempt", rec.Attempts),
					logging.Error(err))
				m.backoff(ctx, rec.Attempts)
				continue
			}

			if state.RollsBackOnFailure() {
				// Step exhausted: remember the classified failure and let
				// the rollback step clean up the transient entry.
				rec.FailureKind = string(services.Classify(err))
				rec.ErrorMessage = err.Error()
				rec.Attempts = 0
				inst.State = pipeline.StateRollback
				m.persist(ctx, rec, &inst)
				continue
			}
			m.finish(ctx, rec, &inst, start, err)
			return
		}

		if inst.State != state {
			rec.Attempts = 0
		}
		m.persist(ctx, rec, &inst)
	}
	m.finish(ctx, rec, &inst, start, nil)
}

func (m *Manager) runStep(ctx context.Context, inst *pipeline.Instance) error {
	stepCtx, cancel := context.WithTimeout(ctx, m.stepTimeout)
	defer cancel()
	// The instance handle doubles as the correlation id; step logs pick it
	// up through the context.
	stepCtx = services.WithRequestID(stepCtx, inst.MediaID)
	return m.orchestrator.Advance(stepCtx, inst)
}

func (m *Manager) backoff(ctx context.Context, attempt int) {
	delay := m.retryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (m *Manager) persist(ctx context.Context, rec *Record, inst *pipeline.Instance) {
	payload, err := json.Marshal(inst)
	if err != nil {
		m.logger.Error("encode instance failed", logging.String("handle", rec.ID), logging.Error(err))
		return
	}
	rec.Payload = string(payload)
	rec.State = inst.State
	if err := m.store.Save(ctx, rec); err != nil {
		m.logger.Error("persist instance failed", logging.String("handle", rec.ID), logging.Error(err))
	}
}

func (m *Manager) finish(ctx context.Context, rec *Record, inst *pipeline.Instance, start time.Time, failure error) {
	duration := time.Since(start)
	switch {
	case failure != nil:
		rec.Status = StatusFailed
		rec.FailureKind = string(services.Classify(failure))
		rec.ErrorMessage = failure.Error()
		if m.collector != nil {
			m.collector.PipelineFailed(rec.FailureKind, duration)
		}
		m.notifyFailure(ctx, rec)
		m.logger.Error("pipeline failed",
			logging.String("handle", rec.ID),
			logging.String("kind", rec.FailureKind),
			logging.Error(failure))

	case inst.Identified && inst.Entry != nil:
		rec.Status = StatusCompleted
		if result, err := json.Marshal(inst.Entry); err == nil {
			rec.Result = string(result)
		}
		if m.collector != nil {
			m.collector.PipelineCompleted(true, duration)
		}
		if err := m.notifier.NotifyIdentified(ctx, inst.Entry.Title, string(inst.Entry.Category)); err != nil {
			m.logger.Warn("identified notification failed", logging.Error(err))
		}
		m.logger.Info("pipeline completed",
			logging.String("handle", rec.ID),
			logging.String("title", inst.Entry.Title),
			logging.Duration("duration", duration))

	case rec.FailureKind != "":
		// A step failure routed through rollback: the transient is gone,
		// but the outcome is still the recorded failure.
		rec.Status = StatusFailed
		if m.collector != nil {
			m.collector.PipelineFailed(rec.FailureKind, duration)
		}
		m.notifyFailure(ctx, rec)

	default:
		rec.Status = StatusUnidentified
		if m.collector != nil {
			m.collector.PipelineCompleted(false, duration)
		}
		if err := m.notifier.NotifyUnidentified(ctx, rec.FilePath); err != nil {
			m.logger.Warn("unidentified notification failed", logging.Error(err))
		}
		m.logger.Info("pipeline ended unidentified",
			logging.String("handle", rec.ID),
			logging.String("path", rec.FilePath))
	}

	m.persist(ctx, rec, inst)
}

func (m *Manager) notifyFailure(ctx context.Context, rec *Record) {
	if err := m.notifier.NotifyPipelineFailed(ctx, rec.FilePath, rec.FailureKind); err != nil {
		m.logger.Warn("failure notification failed", logging.Error(err))
	}
}
