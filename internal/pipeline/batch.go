package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"substream/internal/logging"
)

// LaunchFunc starts one pipeline instance for a file and blocks until the
// instance reaches a terminal state.
type LaunchFunc func(ctx context.Context, filePath string) error

// Coordinator fans a discovered file list out over pipeline instances with
// bounded concurrency and a settling delay between groups.
type Coordinator struct {
	width  int
	settle time.Duration
	logger *slog.Logger
}

// NewCoordinator creates a batch coordinator. Width values below one fall
// back to sequential processing.
func NewCoordinator(width int, settle time.Duration, logger *slog.Logger) *Coordinator {
	if width < 1 {
		width = 1
	}
	return &Coordinator{
		width:  width,
		settle: settle,
		logger: logging.NewComponentLogger(logger, "batch"),
	}
}

// Process partitions the files into consecutive groups of the configured
// width. Instances within a group run concurrently and the group is awaited
// in full before the next group starts. The first failing instance aborts
// all later groups; groups already completed keep their results. In-flight
// instances of the failing group are not canceled, only awaited.
func (c *Coordinator) Process(ctx context.Context, files []string, launch LaunchFunc) error {
	for start := 0; start < len(files); start += c.width {
		if start > 0 && c.settle > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.settle):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + c.width
		if end > len(files) {
			end = len(files)
		}
		group := files[start:end]
		c.logger.Info("processing batch group",
			logging.Int("offset", start),
			logging.Int("size", len(group)),
			logging.Int("total", len(files)))

		if err := c.runGroup(ctx, group, launch); err != nil {
			c.logger.Error("batch group failed, aborting remaining groups",
				logging.Int("offset", start),
				logging.Error(err))
			return err
		}
	}
	return nil
}

func (c *Coordinator) runGroup(ctx context.Context, group []string, launch LaunchFunc) error {
	var wg sync.WaitGroup
	errs := make([]error, len(group))
	for i, file := range group {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			errs[i] = launch(ctx, file)
		}(i, file)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
