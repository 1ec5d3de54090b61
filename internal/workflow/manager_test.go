package workflow

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"substream/internal/catalog"
	"substream/internal/config"
	"substream/internal/identification"
	"substream/internal/media/ffprobe"
	"substream/internal/pipeline"
	"substream/internal/reconcile"
	"substream/internal/services"
	"substream/internal/testsupport"
)

type managerFixture struct {
	manager *Manager
	store   *Store
	catalog *catalog.MemoryStore
}

func newManagerFixture(t *testing.T, searcher *testsupport.Searcher, finder *testsupport.Finder) *managerFixture {
	t.Helper()

	store := openTestStore(t)
	memory := catalog.NewMemoryStore()
	extractor := identification.NewExtractor(testsupport.StaticProbe(ffprobe.Result{}), nil)
	engine, err := reconcile.NewEngine(memory, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	orchestrator, err := pipeline.NewOrchestrator(memory, extractor, searcher, identification.NewResolver(finder, nil), engine, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	cfg := config.Workflow{Workers: 1, StepAttempts: 2}
	manager, err := NewManager(store, orchestrator, cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	manager.pollInterval = 10 * time.Millisecond
	manager.retryBackoff = 5 * time.Millisecond
	manager.stepTimeout = 5 * time.Second

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Stop(ctx)
	})
	return &managerFixture{manager: manager, store: store, catalog: memory}
}

func (fx *managerFixture) awaitTerminal(t *testing.T, handle string) *InstanceStatus {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		status, err := fx.manager.Status(context.Background(), handle)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if status != nil && status.Status.Terminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pipeline %s never reached a terminal status", handle)
	return nil
}

func TestManagerCompletesMoviePipeline(t *testing.T) {
	searcher := &testsupport.Searcher{Results: testsupport.IMDbResult("https://www.imdb.com/title/tt0133093")}
	fx := newManagerFixture(t, searcher, testsupport.MovieFinder(603, "The Matrix"))

	handle, err := fx.manager.StartPipeline(context.Background(), "/media/The.Matrix.1999.1080p.mkv", "owner")
	if err != nil {
		t.Fatalf("StartPipeline() error = %v", err)
	}

	status := fx.awaitTerminal(t, handle)
	if status.Status != StatusCompleted {
		t.Fatalf("Status = %q (%s), want %q", status.Status, status.Error, StatusCompleted)
	}
	if !status.Identified || status.Entry == nil {
		t.Fatalf("status = %+v, want identified entry", status)
	}
	if status.Entry.Title != "The Matrix" {
		t.Errorf("Title = %q, want %q", status.Entry.Title, "The Matrix")
	}
	if status.State != pipeline.StateDone {
		t.Errorf("State = %q, want %q", status.State, pipeline.StateDone)
	}
	if fx.catalog.Len() != 1 {
		t.Errorf("catalog Len() = %d, want 1", fx.catalog.Len())
	}
}

func TestManagerRecordsUnidentified(t *testing.T) {
	searcher := &testsupport.Searcher{Results: nil}
	fx := newManagerFixture(t, searcher, &testsupport.Finder{})

	handle, err := fx.manager.StartPipeline(context.Background(), "/media/home_video.mkv", "owner")
	if err != nil {
		t.Fatalf("StartPipeline() error = %v", err)
	}

	status := fx.awaitTerminal(t, handle)
	if status.Status != StatusUnidentified {
		t.Fatalf("Status = %q, want %q", status.Status, StatusUnidentified)
	}
	if status.Entry != nil || status.Identified {
		t.Errorf("status = %+v, want no entry", status)
	}
	if fx.catalog.Len() != 0 {
		t.Errorf("catalog Len() = %d, want transient rolled back", fx.catalog.Len())
	}
}

func TestManagerFailsAfterExhaustedRetries(t *testing.T) {
	searcher := &testsupport.Searcher{
		Err: services.Wrap(services.ErrConnectivity, "bing", "search", "upstream unavailable", nil),
	}
	fx := newManagerFixture(t, searcher, &testsupport.Finder{})

	handle, err := fx.manager.StartPipeline(context.Background(), "/media/file.mkv", "owner")
	if err != nil {
		t.Fatalf("StartPipeline() error = %v", err)
	}

	status := fx.awaitTerminal(t, handle)
	if status.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", status.Status, StatusFailed)
	}
	if status.FailureKind != string(services.FailureConnectivity) {
		t.Errorf("FailureKind = %q, want %q", status.FailureKind, services.FailureConnectivity)
	}
	if len(searcher.Queries) != 2 {
		t.Errorf("search attempts = %d, want retry before giving up", len(searcher.Queries))
	}
	if fx.catalog.Len() != 0 {
		t.Errorf("catalog Len() = %d, want transient rolled back", fx.catalog.Len())
	}
}

func TestManagerListOrdersNewestFirst(t *testing.T) {
	searcher := &testsupport.Searcher{Results: testsupport.IMDbResult("https://www.imdb.com/title/tt0133093")}
	fx := newManagerFixture(t, searcher, testsupport.MovieFinder(603, "The Matrix"))

	first, err := fx.manager.StartPipeline(context.Background(), "/media/a.mkv", "owner")
	if err != nil {
		t.Fatalf("StartPipeline() error = %v", err)
	}
	second, err := fx.manager.StartPipeline(context.Background(), "/media/b.mkv", "owner")
	if err != nil {
		t.Fatalf("StartPipeline() error = %v", err)
	}
	fx.awaitTerminal(t, first)
	fx.awaitTerminal(t, second)

	statuses, err := fx.manager.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("List() returned %d statuses, want 2", len(statuses))
	}
	for _, status := range statuses {
		if !status.Status.Terminal() {
			t.Errorf("status %s = %q, want terminal", status.ID, status.Status)
		}
	}
}

func TestManagerStartTwiceFails(t *testing.T) {
	fx := newManagerFixture(t, &testsupport.Searcher{}, &testsupport.Finder{})
	if err := fx.manager.Start(context.Background()); err == nil {
		t.Fatal("second Start() succeeded, want error")
	}
}

func TestStepLogsCarryCorrelationID(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, buf: &buf}, nil))

	store := openTestStore(t)
	memory := catalog.NewMemoryStore()
	extractor := identification.NewExtractor(testsupport.StaticProbe(ffprobe.Result{}), nil)
	engine, err := reconcile.NewEngine(memory, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	orchestrator, err := pipeline.NewOrchestrator(memory, extractor, &testsupport.Searcher{}, identification.NewResolver(&testsupport.Finder{}, nil), engine, logger)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	manager, err := NewManager(store, orchestrator, config.Workflow{Workers: 1, StepAttempts: 2}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	manager.pollInterval = 10 * time.Millisecond
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Stop(ctx)
	})
	fx := &managerFixture{manager: manager, store: store, catalog: memory}

	handle, err := manager.StartPipeline(context.Background(), "/media/home.video.mkv", "owner")
	if err != nil {
		t.Fatalf("StartPipeline() error = %v", err)
	}
	fx.awaitTerminal(t, handle)

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	if !strings.Contains(out, "correlation_id="+handle) {
		t.Errorf("log output missing correlation id %s:\n%s", handle, out)
	}
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestNewManagerDerivesIntervalsFromConfig(t *testing.T) {
	store := openTestStore(t)
	memory := catalog.NewMemoryStore()
	extractor := identification.NewExtractor(testsupport.StaticProbe(ffprobe.Result{}), nil)
	engine, err := reconcile.NewEngine(memory, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	orchestrator, err := pipeline.NewOrchestrator(memory, extractor, &testsupport.Searcher{}, identification.NewResolver(&testsupport.Finder{}, nil), engine, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	manager, err := NewManager(store, orchestrator, config.Workflow{Workers: 1, StepAttempts: 1, ErrorRetryInterval: 7}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if manager.errorRetry != 7*time.Second {
		t.Errorf("errorRetry = %v, want %v", manager.errorRetry, 7*time.Second)
	}

	fallback, err := NewManager(store, orchestrator, config.Workflow{Workers: 1, StepAttempts: 1}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if fallback.errorRetry != 5*time.Second {
		t.Errorf("errorRetry = %v, want default %v", fallback.errorRetry, 5*time.Second)
	}
}
