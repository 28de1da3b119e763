package history

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// Logger is the logging interface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes state transitions seen on the status topic.
type Recorder struct {
	repo    Repository
	tracker *status.Tracker
	logger  Logger
}

// NewRecorder creates a Recorder. logger may be nil.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:    repo,
		tracker: status.NewTracker(),
		logger:  logger,
	}
}

// HandleMessage implements watch.Handler.
func (r *Recorder) HandleMessage(ctx context.Context, msg mqtt.Message) error {
	st, err := status.Parse(msg.Payload)
	if err != nil {
		r.logger.Debug("ignoring non-status payload", "topic", msg.Topic, "error", err)
		return nil
	}

	// The tracker only advances once the transition is stored, so a failed
	// write is retried on the next status line.
	tr, changed := r.tracker.Pending(st)
	if !changed {
		r.tracker.Commit(st)
		return nil
	}

	id, err := r.repo.Record(ctx, tr)
	if err != nil {
		return fmt.Errorf("recording transition %s -> %s: %w", tr.From, tr.To, err)
	}
	r.tracker.Commit(st)

	r.logger.Info("daemon state changed",
		"from", tr.From.String(),
		"to", tr.To.String(),
		"buffer_seconds", tr.BufferSeconds,
		"id", id,
	)
	return nil
}

// RunPruner deletes entries older than retention once immediately and then
// every interval until ctx is cancelled. A zero retention disables pruning.
func RunPruner(ctx context.Context, repo Repository, retention, interval time.Duration, logger Logger) {
	if retention <= 0 {
		return
	}
	if logger == nil {
		logger = noopLogger{}
	}

	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("pruning transition history failed", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("pruned transition history", "deleted", n, "retention", retention.String())
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
