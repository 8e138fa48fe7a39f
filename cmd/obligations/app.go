package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	obligationapp "github.com/erp/obligations/internal/application/obligation"
	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/infrastructure/config"
	"github.com/erp/obligations/internal/infrastructure/event"
	"github.com/erp/obligations/internal/infrastructure/format"
	"github.com/erp/obligations/internal/infrastructure/lock"
	"github.com/erp/obligations/internal/infrastructure/logger"
	"github.com/erp/obligations/internal/infrastructure/persistence"
	"github.com/erp/obligations/internal/infrastructure/telemetry"
)

// application holds the wired obligation service and everything that must
// be shut down after a command
type application struct {
	cfg      *config.Config
	log      *zap.Logger
	service  *obligationapp.Service
	metrics  *telemetry.ObligationMetrics
	shutdown []func(ctx context.Context) error
}

// newApplication wires telemetry, storage, locking and the event bus around
// the obligation service. On error everything created so far is released.
func newApplication(ctx context.Context, cfg *config.Config, baseLog *zap.Logger) (_ *application, err error) {
	app := &application{cfg: cfg, log: baseLog}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry), baseLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.onClose(tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry), baseLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.onClose(mp.Shutdown)

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFrom(cfg.Telemetry), baseLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize log export: %w", err)
	}
	app.onClose(lp.Shutdown)
	app.log = telemetry.Bridge(baseLog, cfg.Telemetry.ServiceName, lp)

	gormLog := logger.NewGormLogger(app.log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.onClose(func(context.Context) error { return db.Close() })

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg), app.log).RegisterOtelGorm(db.DB); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	locker, closeLocker, err := lock.NewFactory(cfg.Lock, cfg.Redis, lock.WithFactoryLogger(app.log)).Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create counterparty locker: %w", err)
	}
	app.onClose(func(context.Context) error { return closeLocker() })

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	bus := event.NewInMemoryEventBus(app.log)
	bus.Subscribe(event.NewAuditLogHandler(serializer, app.log))
	if err := bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}
	app.onClose(bus.Stop)

	formatter, err := format.NewFromConfig(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create currency formatter: %w", err)
	}

	store := persistence.NewGormObligationStore(db.DB)
	opts := []obligationapp.Option{
		obligationapp.WithGenerator(obligation.NewScheduleGenerator(
			obligation.WithMaxScheduleSize(cfg.Engine.MaxScheduleSize),
		)),
		obligationapp.WithFormatter(formatter),
		obligationapp.WithLogger(app.log),
	}
	if len(cfg.Engine.Categories) > 0 {
		opts = append(opts, obligationapp.WithCategoryResolver(obligationapp.NewStaticCategoryResolver(cfg.Engine.Categories...)))
	}
	app.service = obligationapp.NewService(store, locker, bus, opts...)

	metrics, err := telemetry.NewObligationMetrics(telemetry.ObligationMetricsConfig{
		Meter:          mp.Meter("obligations"),
		Logger:         app.log,
		StatusProvider: obligationapp.NewStoreStatusCounter(store),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create obligation metrics: %w", err)
	}
	app.metrics = metrics
	app.service.SetMetrics(metrics)
	if mp.IsEnabled() {
		metrics.StartPeriodicCollection(ctx)
		app.onClose(func(context.Context) error {
			metrics.Stop()
			return nil
		})
	}

	return app, nil
}

func (a *application) onClose(fn func(ctx context.Context) error) {
	a.shutdown = append(a.shutdown, fn)
}

// Close releases resources in reverse creation order
func (a *application) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdown = nil
	return errors.Join(errs...)
}
