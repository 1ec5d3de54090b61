package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"substream/internal/config"
)

const userAgent = "Substream/0.1.0"

// Service defines the notification surface exposed to the workflow manager.
type Service interface {
	NotifyIdentified(ctx context.Context, title, category string) error
	NotifyUnidentified(ctx context.Context, filename string) error
	NotifyPipelineFailed(ctx context.Context, filename, reason string) error
	NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	cfg      config.Notifications
	client   *http.Client
}

func (n *ntfyService) NotifyIdentified(ctx context.Context, title, category string) error {
	if !n.cfg.Identification {
		return nil
	}
	title = strings.TrimSpace(title)
	category = strings.TrimSpace(category)
	if category == "" {
		category = "unknown"
	}
	data := payload{
		title:   "Substream - Identified",
		message: fmt.Sprintf("Identified: %s (%s)", title, category),
		tags:    []string{"substream", "identify", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUnidentified(ctx context.Context, filename string) error {
	if !n.cfg.Identification {
		return nil
	}
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "Substream - Unidentified Media",
		message: fmt.Sprintf("Could not identify: %s\nManual review required", filename),
		tags:    []string{"substream", "unidentified", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPipelineFailed(ctx context.Context, filename, reason string) error {
	if !n.cfg.Errors {
		return nil
	}
	data := payload{
		title:    "Substream - Pipeline Failed",
		message:  fmt.Sprintf("Processing failed: %s\nReason: %s", strings.TrimSpace(filename), strings.TrimSpace(reason)),
		tags:     []string{"substream", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.cfg.Batch {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Substream - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d files processed in %s", processed, duration)
	} else {
		title = "Substream - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", processed, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"substream", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Substream - Test",
		message:  "Notification system test",
		tags:     []string{"substream", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyIdentified(context.Context, string, string) error              { return nil }
func (noopService) NotifyUnidentified(context.Context, string) error                    { return nil }
func (noopService) NotifyPipelineFailed(context.Context, string, string) error          { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
