package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetsim/internal/amqp"
	"budgetsim/internal/core"
	"budgetsim/internal/log"
	"budgetsim/internal/sheets"
)

// Lister loads the full family table.
type Lister interface {
	ListFamilies(ctx context.Context) ([]core.Family, error)
}

// Observer receives export outcomes, typically Prometheus.
type Observer interface {
	ObserveExport(err error)
}

// ExportWorker mirrors the family table into a spreadsheet. Change events
// trigger an export; a periodic export covers events lost while the worker
// was down.
type ExportWorker struct {
	lister   Lister
	exporter sheets.FamilyExporter
	observer Observer
	logger   *log.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastStarted time.Time
}

func NewExportWorker(lister Lister, exporter sheets.FamilyExporter, observer Observer, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &ExportWorker{
		lister:   lister,
		exporter: exporter,
		observer: observer,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// HandleChange processes one change event from AMQP. Events older than the
// start of the last successful export are already reflected in the sheet and
// are skipped.
func (w *ExportWorker) HandleChange(ctx context.Context, event *amqp.ChangeEvent) error {
	w.mu.Lock()
	covered := !w.lastStarted.IsZero() && event.Timestamp.Before(w.lastStarted)
	w.mu.Unlock()

	if covered {
		w.logger.DebugContext(ctx, "change already exported",
			log.FieldEventID, event.EventID,
			log.FieldOperation, event.Operation)
		return nil
	}

	w.logger.InfoContext(ctx, "processing change event",
		log.FieldEventID, event.EventID,
		log.FieldOperation, event.Operation,
		log.FieldFamilyID, event.FamilyID)

	if err := w.Export(ctx); err != nil {
		return fmt.Errorf("export after %s: %w", event.Operation, err)
	}
	return nil
}

// Export writes the current family table. Exports are serialized.
func (w *ExportWorker) Export(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := w.now()
	families, err := w.lister.ListFamilies(ctx)
	if err != nil {
		err = fmt.Errorf("list families: %w", err)
		w.observer.ObserveExport(err)
		return err
	}

	if err := w.exporter.ExportFamilies(ctx, families); err != nil {
		err = fmt.Errorf("export families: %w", err)
		w.observer.ObserveExport(err)
		w.logger.ErrorContext(ctx, "export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		return err
	}

	w.lastStarted = started
	w.observer.ObserveExport(nil)
	w.logger.InfoContext(ctx, "export completed",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(families),
		"duration_ms", w.now().Sub(started).Milliseconds())
	return nil
}

// RunPeriodic exports once immediately and then every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.Export(ctx); err != nil && ctx.Err() == nil {
		w.logger.WarnContext(ctx, "startup export failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Export(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "periodic export failed", log.FieldError, err)
			}
		}
	}
}

type nopObserver struct{}

func (nopObserver) ObserveExport(error) {}
