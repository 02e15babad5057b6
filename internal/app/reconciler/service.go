// Package reconciler keeps stock, usage records, order totals and derived
// availability consistent with every change to orders and their lines.
//
// Each operation runs in one storage transaction: ledger mutations, usage
// records, totals, availability flags and any print jobs commit together or
// not at all. Events collected along the way are published only after the
// commit.
package reconciler

import (
	"context"
	"sort"
	"time"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/app/availability"
	"github.com/YelzhanWeb/waiter/internal/app/events"
	"github.com/YelzhanWeb/waiter/internal/app/ledger"
	"github.com/YelzhanWeb/waiter/internal/app/recipe"
	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Service struct {
	store      interfaces.Store
	propagator *availability.Propagator
	bus        *events.Bus
	tracer     trace.Tracer
	logger     logger.Logger
	policy     config.MissingStockPolicy
	now        func() time.Time
}

type Option func(*Service)

func WithEventBus(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithMissingStockPolicy(p config.MissingStockPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store interfaces.Store, lgr logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tracer: noop.NewTracerProvider().Tracer("reconciler"),
		logger: lgr,
		policy: config.MissingStockSkip,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var popts []availability.Option
	if s.policy == config.MissingStockSkip {
		popts = append(popts, availability.IgnoreMissingUnits())
	}
	s.propagator = availability.New(lgr, popts...)
	return s
}

// unitOfWork carries the transaction-scoped collaborators of one operation.
type unitOfWork struct {
	svc       *Service
	repos     interfaces.Repositories
	ledger    *ledger.Ledger
	resolver  *recipe.Resolver
	requestID string
	touched   map[int64]bool
	events    []interfaces.Event
}

func (u *unitOfWork) emit(ev interfaces.Event) {
	u.events = append(u.events, ev)
}

func (u *unitOfWork) touch(unitID int64) {
	u.touched[unitID] = true
}

// refreshAvailability recomputes menu items depending on any stock unit the
// operation changed.
func (u *unitOfWork) refreshAvailability(ctx context.Context) error {
	if len(u.touched) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(u.touched))
	for id := range u.touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	changes, err := u.svc.propagator.RefreshMenuItems(ctx, u.repos, ids, u.requestID)
	if err != nil {
		return err
	}
	u.emitAvailability(changes)
	return nil
}

func (u *unitOfWork) refreshTable(ctx context.Context, tableID *int64) error {
	changes, err := u.svc.propagator.RefreshTable(ctx, u.repos, tableID, u.requestID)
	if err != nil {
		return err
	}
	u.emitAvailability(changes)
	return nil
}

func (u *unitOfWork) emitAvailability(changes []availability.Change) {
	for _, c := range changes {
		switch c.Entity {
		case availability.EntityMenuItem:
			u.emit(events.New(interfaces.EventMenuAvailabilityChanged, u.requestID, map[string]interface{}{
				"menu_item_id": c.ID,
				"available":    c.Available,
			}))
		case availability.EntityTable:
			u.emit(events.New(interfaces.EventTableAvailabilityChanged, u.requestID, map[string]interface{}{
				"table_id":  c.ID,
				"available": c.Available,
			}))
		}
	}
}

// run executes fn in a transaction under a span, then publishes the events
// the operation produced.
func (s *Service) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context, u *unitOfWork) error) error {
	ctx, requestID := logger.EnsureRequestID(ctx)
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		append(attrs, attribute.String("request.id", requestID))...,
	))
	defer span.End()

	var committed []interfaces.Event
	err := s.store.WithinTx(ctx, func(repos interfaces.Repositories) error {
		u := &unitOfWork{
			svc:       s,
			repos:     repos,
			ledger:    ledger.New(repos.Stock()),
			resolver:  recipe.New(repos.Recipes()),
			requestID: requestID,
			touched:   make(map[int64]bool),
		}
		if err := fn(ctx, u); err != nil {
			return err
		}
		if err := u.refreshAvailability(ctx); err != nil {
			return err
		}
		committed = u.events
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	s.bus.Publish(ctx, committed...)
	return nil
}
