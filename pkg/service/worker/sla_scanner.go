package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/secmon-lab/compliflow/pkg/utils/errutil"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
)

// DefaultSLAScanInterval is the period between two SLA scans
const DefaultSLAScanInterval = 5 * time.Minute

// SLAScanner runs one SLA pass
type SLAScanner interface {
	Scan(ctx context.Context) (*usecase.ScanResult, error)
}

// SLAScanWorker triggers SLA scans periodically.
//
// Several server instances may run it at once. Each issue is flagged by a conditional
// update in the repository, so overlapping scans flag every breach once.
type SLAScanWorker struct {
	scanner  SLAScanner
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSLAScanWorker creates a worker that runs scanner every interval. A non-positive
// interval means DefaultSLAScanInterval.
func NewSLAScanWorker(scanner SLAScanner, interval time.Duration) *SLAScanWorker {
	if interval <= 0 {
		interval = DefaultSLAScanInterval
	}
	return &SLAScanWorker{
		scanner:  scanner,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the first scan and the ticker loop in the background. It does not block.
func (w *SLAScanWorker) Start(ctx context.Context) error {
	logging.From(ctx).Info("SLA scan worker starting", "interval", w.interval.String())
	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits until the running scan finished
func (w *SLAScanWorker) Stop() {
	logging.Default().Info("SLA scan worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("SLA scan worker stopped")
}

func (w *SLAScanWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.scan(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.scan(ctx)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.From(ctx).Info("SLA scan worker context cancelled")
			return
		}
	}
}

func (w *SLAScanWorker) scan(ctx context.Context) {
	result, err := w.scanner.Scan(ctx)
	if err != nil {
		// next tick retries
		errutil.Handle(ctx, err, "SLA scan failed")
		return
	}
	if result.Skipped {
		return
	}
	logging.From(ctx).Debug("SLA scan finished",
		"candidates", result.Candidates,
		"breached", result.Breached,
		"failed", result.Failed)
}
