package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqpAdapter "github.com/YelzhanWeb/waiter/internal/adapter/amqp"
	"github.com/YelzhanWeb/waiter/internal/adapter/escpos"
	httpAdapter "github.com/YelzhanWeb/waiter/internal/adapter/http"
	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/adapter/memory"
	"github.com/YelzhanWeb/waiter/internal/adapter/observability"
	"github.com/YelzhanWeb/waiter/internal/adapter/postgres"
	"github.com/YelzhanWeb/waiter/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/waiter/internal/app/events"
	"github.com/YelzhanWeb/waiter/internal/app/printing"
	"github.com/YelzhanWeb/waiter/internal/app/reconciler"
	"github.com/YelzhanWeb/waiter/internal/app/tracking"
	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// app holds what every mode may need. Fields are filled lazily by mode.
type app struct {
	cfg    *config.Config
	lgr    logger.Logger
	tracer trace.Tracer
	port   int

	db     postgres.DB
	mqConn rabbitmq.Connection
}

func main() {
	// Parse command-line flags
	mode := flag.String("mode", "", "Service mode: order-service, print-worker, notification-subscriber, migrate")
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	storage := flag.String("storage", "", "Storage backend override: postgres or memory")
	port := flag.Int("port", 3000, "HTTP port for status endpoints (0 disables)")
	prefetch := flag.Int("prefetch", 0, "RabbitMQ prefetch count override")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *storage != "" {
		cfg.Storage = *storage
	}
	if *prefetch > 0 {
		cfg.RabbitMQ.Prefetch = *prefetch
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lgr := logger.New(*mode, *debug)

	tracer, shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			lgr.Error("tracing_shutdown_failed", "Failed to flush traces", "shutdown", nil, err)
		}
	}()

	a := &app{cfg: cfg, lgr: lgr, tracer: tracer, port: *port}
	defer a.close()

	// Route to appropriate service
	switch *mode {
	case "order-service":
		err = a.runOrderService(ctx)
	case "print-worker":
		err = a.runPrintWorker(ctx)
	case "notification-subscriber":
		err = a.runNotificationSubscriber(ctx)
	case "migrate":
		err = a.runMigrate(ctx)
	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		lgr.Error("service_failed", "Service stopped with error", "shutdown", nil, err)
		a.close()
		os.Exit(1)
	}
	lgr.Info("service_stopped", "Service stopped", "shutdown", nil)
}

func (a *app) close() {
	if a.mqConn != nil {
		a.mqConn.Close()
		a.mqConn = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func (a *app) connectDB(ctx context.Context) (postgres.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.Connect(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.db = db

	a.lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": a.cfg.Database.Host,
		"db":   a.cfg.Database.Database,
	})
	return db, nil
}

func (a *app) connectRabbitMQ() (rabbitmq.Connection, error) {
	if a.mqConn != nil {
		return a.mqConn, nil
	}
	conn, err := rabbitmq.Connect(a.cfg.RabbitMQ)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	a.mqConn = conn

	a.lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": a.cfg.RabbitMQ.Host,
	})
	return conn, nil
}

func (a *app) openStore(ctx context.Context) (interfaces.Store, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.lgr.Warn("memory_storage", "Using in-memory storage, data is lost on exit", "startup", nil)
		return memory.NewStore(), nil
	}
	db, err := a.connectDB(ctx)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(db), nil
}

func (a *app) newDispatcher(store interfaces.Store, bus *events.Bus) *printing.Dispatcher {
	return printing.NewDispatcher(
		store,
		escpos.NewDriver(a.cfg.Printing),
		bus,
		a.lgr,
		a.cfg.Printing.PollInterval,
		printing.WithTracer(a.tracer),
	)
}

func (a *app) runOrderService(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	mqConn, err := a.connectRabbitMQ()
	if err != nil {
		return err
	}

	// Initialize messaging
	publisher := rabbitmq.NewPublisher(mqConn, a.cfg.RabbitMQ.EventExchange)
	consumer := rabbitmq.NewConsumer(mqConn, a.cfg.RabbitMQ, a.lgr)
	bus := events.NewBus(publisher, a.lgr)

	// Initialize services
	orderService := reconciler.NewService(store, a.lgr,
		reconciler.WithEventBus(bus),
		reconciler.WithTracer(a.tracer),
		reconciler.WithMissingStockPolicy(a.cfg.Reconciler.MissingStockPolicy),
	)
	printQueue := printing.NewQueue(store, bus, a.lgr)
	commandHandler := amqpAdapter.NewCommandHandler(orderService, printQueue, publisher, a.lgr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeCommands(ctx, commandHandler.HandleCommand)
	})

	// Jobs in memory are invisible to a separate print worker.
	if a.cfg.Storage == config.StorageMemory {
		dispatcher := a.newDispatcher(store, bus)
		g.Go(func() error { return dispatcher.Run(ctx) })
	}

	if a.port > 0 {
		g.Go(func() error {
			return a.serveHTTP(ctx, tracking.NewService(store, a.lgr))
		})
	}

	a.lgr.Info("service_started", "Order Service started", "startup", map[string]interface{}{
		"command_queue":        a.cfg.RabbitMQ.CommandQueue,
		"event_exchange":       a.cfg.RabbitMQ.EventExchange,
		"storage":              a.cfg.Storage,
		"missing_stock_policy": a.cfg.Reconciler.MissingStockPolicy,
		"port":                 a.port,
	})

	return g.Wait()
}

// serveHTTP runs the status endpoints until ctx is cancelled.
func (a *app) serveHTTP(ctx context.Context, svc interfaces.TrackingService) error {
	mux := http.NewServeMux()
	httpAdapter.NewTrackingHandler(svc, a.lgr).Routes(mux)

	// Apply middleware
	handler := httpAdapter.LoggingMiddleware(a.lgr)(mux)
	handler = httpAdapter.RecoveryMiddleware(a.lgr)(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.lgr.Info("shutdown_initiated", "Shutting down HTTP server", "shutdown", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return ctx.Err()
}

func (a *app) runPrintWorker(ctx context.Context) error {
	if a.cfg.Storage == config.StorageMemory {
		return errors.New("print-worker needs shared storage, use --storage postgres")
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	mqConn, err := a.connectRabbitMQ()
	if err != nil {
		return err
	}

	bus := events.NewBus(rabbitmq.NewPublisher(mqConn, a.cfg.RabbitMQ.EventExchange), a.lgr)
	dispatcher := a.newDispatcher(store, bus)

	// Start worker
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start print dispatcher: %w", err)
	}

	a.lgr.Info("service_started", "Print Worker started", "startup", map[string]interface{}{
		"poll_interval": a.cfg.Printing.PollInterval.String(),
	})

	<-ctx.Done()
	a.lgr.Info("graceful_shutdown", "Shutting down Print Worker", "shutdown", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return dispatcher.Shutdown(shutdownCtx)
}

func (a *app) runNotificationSubscriber(ctx context.Context) error {
	mqConn, err := a.connectRabbitMQ()
	if err != nil {
		return err
	}

	consumer := rabbitmq.NewConsumer(mqConn, a.cfg.RabbitMQ, a.lgr)
	notificationHandler := amqpAdapter.NewNotificationHandler(a.lgr)

	a.lgr.Info("service_started", "Notification Subscriber started", "startup", map[string]interface{}{
		"event_exchange": a.cfg.RabbitMQ.EventExchange,
	})

	return consumer.ConsumeEvents(ctx, notificationHandler.HandleNotification)
}

func (a *app) runMigrate(ctx context.Context) error {
	db, err := a.connectDB(ctx)
	if err != nil {
		return err
	}

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}

	a.lgr.Info("migrations_applied", fmt.Sprintf("Applied %d migrations", len(applied)), "startup", map[string]interface{}{
		"versions": applied,
	})
	return nil
}
