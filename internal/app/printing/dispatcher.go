package printing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/app/events"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// PassResult summarises one dispatcher pass.
type PassResult struct {
	Printed int
	Failed  int
	Skipped int
	// Stopped is set when a delivery failure ended the pass early.
	Stopped bool
}

// Dispatcher is the single background worker that delivers pending jobs.
// A delivery failure returns the job to pending and ends the pass, giving
// the printer a full poll interval to come back.
type Dispatcher struct {
	store        interfaces.Store
	driver       interfaces.PrinterDriver
	bus          *events.Bus
	tracer       trace.Tracer
	logger       logger.Logger
	pollInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type DispatcherOption func(*Dispatcher)

func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

func NewDispatcher(
	store interfaces.Store,
	driver interfaces.PrinterDriver,
	bus *events.Bus,
	lgr logger.Logger,
	pollInterval time.Duration,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		store:        store,
		driver:       driver,
		bus:          bus,
		tracer:       noop.NewTracerProvider().Tracer("printing"),
		logger:       lgr,
		pollInterval: pollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start requeues jobs left mid-delivery by a previous worker and launches
// the poll loop in the background.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return fmt.Errorf("dispatcher already started")
	}

	if err := d.requeue(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		d.pollLoop(loopCtx)
	}()
	return nil
}

// Run is the blocking form of Start. It returns when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.requeue(ctx); err != nil {
		return err
	}
	d.pollLoop(ctx)
	return nil
}

func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		d.logger.Info("dispatcher_stopped", "Print dispatcher stopped", "", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) requeue(ctx context.Context) error {
	n, err := d.store.PrintJobs().RequeuePrinting(ctx)
	if err != nil {
		return fmt.Errorf("failed to requeue in-flight print jobs: %w", err)
	}
	if n > 0 {
		d.logger.Warn("print_jobs_requeued", "Requeued print jobs interrupted mid-delivery", "", map[string]interface{}{
			"count": n,
		})
	}
	return nil
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	// The wait starts when a pass ends, so a slow pass is still followed by
	// a full poll interval.
	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("dispatch_pass_failed", "Print dispatcher pass failed", "", nil, err)
		}
		timer.Reset(d.pollInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// RunOnce makes one FIFO pass over the pending jobs.
func (d *Dispatcher) RunOnce(ctx context.Context) (PassResult, error) {
	var res PassResult

	jobs, err := d.store.PrintJobs().FindPending(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to fetch pending print jobs: %w", err)
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		// Claiming also re-checks the status, so a job cancelled after the
		// batch was fetched is skipped here.
		claimed, err := d.store.PrintJobs().Claim(ctx, job.ID)
		if err != nil {
			return res, fmt.Errorf("failed to claim print job %d: %w", job.ID, err)
		}
		if !claimed {
			res.Skipped++
			d.logger.Debug("print_job_skipped", "Print job no longer pending", "", map[string]interface{}{
				"print_job_id": job.ID,
			})
			continue
		}

		stop, err := d.deliver(ctx, job)
		if err != nil {
			return res, err
		}
		if stop {
			res.Failed++
			res.Stopped = true
			return res, nil
		}
		if job.Status == domain.PrintJobPrinted {
			res.Printed++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

// deliver sends one claimed job. It reports stop when the printer itself
// could not be reached.
func (d *Dispatcher) deliver(ctx context.Context, job *domain.PrintJob) (stop bool, err error) {
	ctx, span := d.tracer.Start(ctx, "print_job.deliver", trace.WithAttributes(
		attribute.Int64("print_job.id", job.ID),
		attribute.Int64("printer.id", job.PrinterID),
	))
	defer span.End()

	printer, err := d.store.Printers().FindByID(ctx, job.PrinterID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return false, fmt.Errorf("failed to load printer %d: %w", job.PrinterID, err)
		}
		return false, d.fail(ctx, span, job, "printer not found")
	}
	if !printer.IsEnabled {
		return false, d.fail(ctx, span, job, fmt.Sprintf("printer %q is disabled", printer.Name))
	}

	payload, err := job.Bytes()
	if err != nil {
		return false, d.fail(ctx, span, job, err.Error())
	}

	if err := d.driver.Print(ctx, printer, payload); err != nil {
		span.RecordError(err)
		return true, d.fail(ctx, span, job, err.Error())
	}

	if err := d.store.PrintJobs().MarkPrinted(ctx, job.ID); err != nil {
		return false, fmt.Errorf("failed to mark print job %d printed: %w", job.ID, err)
	}
	job.Status = domain.PrintJobPrinted
	span.SetStatus(codes.Ok, "")

	d.logger.Info("print_job_printed", "Print job delivered", "", map[string]interface{}{
		"print_job_id": job.ID,
		"printer":      printer.Name,
		"bytes":        len(payload),
	})
	d.bus.Publish(ctx, events.New(interfaces.EventPrintJobPrinted, "", map[string]interface{}{
		"print_job_id": job.ID,
		"printer_id":   job.PrinterID,
	}))
	return false, nil
}

func (d *Dispatcher) fail(ctx context.Context, span trace.Span, job *domain.PrintJob, reason string) error {
	span.SetStatus(codes.Error, reason)
	if err := d.store.PrintJobs().MarkFailed(ctx, job.ID, reason); err != nil {
		return fmt.Errorf("failed to return print job %d to pending: %w", job.ID, err)
	}
	job.Status = domain.PrintJobPending
	job.ErrorMessage = &reason

	d.logger.Warn("print_job_failed", "Print job delivery failed, will retry", "", map[string]interface{}{
		"print_job_id": job.ID,
		"printer_id":   job.PrinterID,
		"reason":       reason,
	})
	d.bus.Publish(ctx, events.New(interfaces.EventPrintJobFailed, "", map[string]interface{}{
		"print_job_id": job.ID,
		"printer_id":   job.PrinterID,
		"error":        reason,
	}))
	return nil
}
