package printing

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/app/events"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

// Enqueue records a pending job for an existing, enabled printer using the
// caller's repositories, so the job commits or rolls back with the business
// change that produced it.
func Enqueue(ctx context.Context, repos interfaces.Repositories, printerID int64, payload string, encoding domain.PayloadEncoding) (*domain.PrintJob, error) {
	job, err := domain.NewPrintJob(printerID, payload, encoding)
	if err != nil {
		return nil, err
	}

	printer, err := repos.Printers().FindByID(ctx, printerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("printer_id", "printer %d does not exist", printerID)
		}
		return nil, fmt.Errorf("failed to load printer %d: %w", printerID, err)
	}
	if !printer.IsEnabled {
		return nil, domain.NewValidationError("printer_id", "printer %q is disabled", printer.Name)
	}

	if err := repos.PrintJobs().Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create print job: %w", err)
	}
	return job, nil
}

// EnqueuedEvent describes a freshly created job.
func EnqueuedEvent(job *domain.PrintJob, requestID string) interfaces.Event {
	return events.New(interfaces.EventPrintJobEnqueued, requestID, map[string]interface{}{
		"print_job_id": job.ID,
		"printer_id":   job.PrinterID,
		"encoding":     string(job.Encoding),
	})
}

type Queue struct {
	store  interfaces.Store
	bus    *events.Bus
	logger logger.Logger
}

func NewQueue(store interfaces.Store, bus *events.Bus, lgr logger.Logger) *Queue {
	return &Queue{store: store, bus: bus, logger: lgr}
}

func (q *Queue) EnqueuePrintJob(ctx context.Context, cmd interfaces.EnqueuePrintJobCommand) (*domain.PrintJob, error) {
	ctx, requestID := logger.EnsureRequestID(ctx)

	var job *domain.PrintJob
	err := q.store.WithinTx(ctx, func(repos interfaces.Repositories) error {
		var err error
		job, err = Enqueue(ctx, repos, cmd.PrinterID, cmd.Payload, cmd.Encoding)
		return err
	})
	if err != nil {
		return nil, err
	}

	q.logger.Info("print_job_enqueued", "Print job enqueued", requestID, map[string]interface{}{
		"print_job_id": job.ID,
		"printer_id":   job.PrinterID,
	})
	q.bus.Publish(ctx, EnqueuedEvent(job, requestID))
	return job, nil
}

// CancelPendingPrintJobs cancels every job still waiting for delivery. Jobs
// already claimed by the dispatcher finish normally.
func (q *Queue) CancelPendingPrintJobs(ctx context.Context) (int, error) {
	ctx, requestID := logger.EnsureRequestID(ctx)

	n, err := q.store.PrintJobs().CancelPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending print jobs: %w", err)
	}

	q.logger.Info("print_jobs_cancelled", "Pending print jobs cancelled", requestID, map[string]interface{}{
		"count": n,
	})
	q.bus.Publish(ctx, events.New(interfaces.EventPrintJobsCancelled, requestID, map[string]interface{}{
		"count": n,
	}))
	return n, nil
}
