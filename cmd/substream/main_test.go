package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"substream/internal/api"
	"substream/internal/media"
	"substream/internal/pipeline"
	"substream/internal/workflow"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output = %q, want path echoed", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[store]") {
		t.Errorf("sample missing store section:\n%s", data)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Error("second init succeeded, want refusal to overwrite")
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")
	content := `
[paths]
ingest_dir = "` + dir + `"
data_dir = "` + dir + `"
log_dir = "` + dir + `"

[tmdb]
api_key = "super-secret-tmdb-key"
`
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCommand(t, "config", "show", "--config", target)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "super-secret-tmdb-key") {
		t.Errorf("output leaks api key:\n%s", out)
	}
	if !strings.Contains(out, "tmdb.api_key") {
		t.Errorf("output = %q, want tmdb.api_key row", out)
	}
}

func newDaemonStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestQueueRendersTable(t *testing.T) {
	ts := newDaemonStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/queue" {
			http.NotFound(w, r)
			return
		}
		resp := api.QueueResponse{Items: []workflow.InstanceStatus{
			{
				ID:       "abc-123",
				FilePath: "/media/The.Matrix.1999.mkv",
				Status:   workflow.StatusCompleted,
				State:    pipeline.StateDone,
				Entry:    &media.Entry{Title: "The Matrix"},
			},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})

	out, err := runCommand(t, "queue", "--server", ts.URL)
	if err != nil {
		t.Fatalf("queue error = %v", err)
	}
	for _, want := range []string{"abc-123", "The.Matrix.1999.mkv", "completed", "The Matrix"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestQueueEmpty(t *testing.T) {
	ts := newDaemonStub(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.QueueResponse{})
	})

	out, err := runCommand(t, "queue", "--server", ts.URL)
	if err != nil {
		t.Fatalf("queue error = %v", err)
	}
	if !strings.Contains(out, "Queue is empty.") {
		t.Errorf("output = %q", out)
	}
}

func TestProcessStartsPipeline(t *testing.T) {
	var received api.ProcessRequest
	ts := newDaemonStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/process" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.ProcessResponse{ID: "handle-9"})
	})

	out, err := runCommand(t, "process", "/media/movie.mkv", "--owner", "alice", "--server", ts.URL)
	if err != nil {
		t.Fatalf("process error = %v", err)
	}
	if !strings.Contains(out, "handle-9") {
		t.Errorf("output = %q, want handle echoed", out)
	}
	if received.OwnerID != "alice" || !strings.HasSuffix(received.Path, "/media/movie.mkv") {
		t.Errorf("request = %+v", received)
	}
}

func TestStatusReportsFailure(t *testing.T) {
	ts := newDaemonStub(t, func(w http.ResponseWriter, r *http.Request) {
		status := workflow.InstanceStatus{
			ID:          "h1",
			Status:      workflow.StatusFailed,
			State:       pipeline.StateRollback,
			FailureKind: "connectivity",
			Error:       "search: upstream unavailable",
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	out, err := runCommand(t, "status", "h1", "--server", ts.URL)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "connectivity") || !strings.Contains(out, "failed") {
		t.Errorf("output = %q", out)
	}
}

func TestDaemonErrorSurfaced(t *testing.T) {
	ts := newDaemonStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "instance store unavailable"})
	})

	_, err := runCommand(t, "queue", "--server", ts.URL)
	if err == nil || !strings.Contains(err.Error(), "instance store unavailable") {
		t.Fatalf("err = %v, want daemon error surfaced", err)
	}
}
