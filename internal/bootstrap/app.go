package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cassiomorais/paysvc/internal/application/registration"
	"github.com/cassiomorais/paysvc/internal/controller"
	"github.com/cassiomorais/paysvc/internal/infrastructure/config"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/paysvc/internal/infrastructure/redis"
	"github.com/cassiomorais/paysvc/internal/providers"
	"github.com/cassiomorais/paysvc/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	tracer *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout).
		With().Str("process", serviceName).Logger()
	log.Logger = logger
	logger.Info().Str("instance", cfg.InstanceID).Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = observability.NewMetrics(metricsNamespace, app.Registry)

	app.Pool, err = postgres.NewPool(ctx, &cfg.Database, observability.Component(logger, "postgres"))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	app.Redis, err = infraRedis.NewClient(ctx, &cfg.Redis, observability.Component(logger, "redis"))
	if err != nil {
		app.Pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return app, nil
}

// Components are the wired collaborators shared by the binaries.
type Components struct {
	Store     providers.Store
	TxManager *postgres.TxManager
	Factory   *providers.Factory
	UseCase   *registration.UseCase
}

// Wire builds the repositories, the adapter factory and the use cases.
func (a *App) Wire() *Components {
	store := providers.Store{
		Services:      postgres.NewServiceRepository(a.Pool),
		Products:      postgres.NewProductRepository(a.Pool),
		Plans:         postgres.NewPlanRepository(a.Pool),
		Registrations: postgres.NewRegistrationRepository(a.Pool),
		Subscriptions: postgres.NewSubscriptionRepository(a.Pool),
		Subscribers:   postgres.NewSubscriberRepository(a.Pool),
		Log:           postgres.NewLogRepository(a.Pool),
	}

	pc := a.Config.Provider
	factory := providers.NewFactory(providers.Deps{
		Store:          store,
		Hook:           infraRedis.NewStatusPublisher(a.Redis),
		Callbacks:      providers.CallbackURLs{BaseURL: pc.CallbackBaseURL},
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		RequestTimeout: pc.RequestTimeout,
	}, providers.BreakerSettings{
		MinRequests:      pc.BreakerRequests,
		FailureRatio:     pc.BreakerRatio,
		Interval:         pc.BreakerInterval,
		Timeout:          pc.BreakerTimeout,
		HalfOpenRequests: pc.BreakerHalfOpen,
	})

	uc := registration.NewUseCase(
		factory,
		infraRedis.NewLocker(a.Redis, pc.LockTTL, a.Logger),
		store.Plans,
		store.Subscriptions,
		store.Log,
		infraRedis.NewCheckQueue(a.Redis),
		a.Logger,
	)

	return &Components{
		Store:     store,
		TxManager: postgres.NewTxManager(a.Pool),
		Factory:   factory,
		UseCase:   uc,
	}
}

// Dependencies returns the readiness probes of the backing services.
func (a *App) Dependencies() []controller.Dependency {
	return []controller.Dependency{
		{Name: "database", Check: a.Pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }},
	}
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.Shutdown(ctx, a.tracer); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to flush traces")
	}
	a.Redis.Close()
	a.Pool.Close()
}
