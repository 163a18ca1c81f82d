package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/repository"
)

// DigestWorker periodically logs the open incident backlog.
type DigestWorker struct {
	incidents repository.IncidentRepository
	logger    *zap.Logger
	cron      *cron.Cron
	timeout   time.Duration
}

// NewDigestWorker schedules the backlog digest on schedule (standard cron syntax
// or descriptors such as "@every 1h").
func NewDigestWorker(incidents repository.IncidentRepository, logger *zap.Logger, schedule string) (*DigestWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &DigestWorker{
		incidents: incidents,
		logger:    logger,
		cron:      cron.New(),
		timeout:   30 * time.Second,
	}
	if _, err := w.cron.AddFunc(schedule, w.tick); err != nil {
		return nil, fmt.Errorf("schedule digest %q: %w", schedule, err)
	}
	return w, nil
}

// Start launches the scheduler in its own goroutine.
func (w *DigestWorker) Start() {
	w.cron.Start()
}

// Stop halts scheduling and waits for a running digest to finish.
func (w *DigestWorker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *DigestWorker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("backlog digest failed", zap.Error(err))
	}
}

// RunOnce computes and logs the backlog, returning the total open count.
func (w *DigestWorker) RunOnce(ctx context.Context) (int, error) {
	rows, err := w.incidents.Backlog(ctx)
	if err != nil {
		return 0, fmt.Errorf("load backlog: %w", err)
	}
	total := 0
	for _, row := range rows {
		total += row.Count
		w.logger.Info("backlog",
			zap.String("state", string(row.State)),
			zap.String("priority", string(row.Priority)),
			zap.Int("count", row.Count))
	}
	w.logger.Info("backlog digest", zap.Int("open_incidents", total))
	return total, nil
}
