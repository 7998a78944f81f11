package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/infra/config"
	"github.com/arklim/social-platform-authz/internal/infra/database"
	kafkainfra "github.com/arklim/social-platform-authz/internal/infra/kafka"
	"github.com/arklim/social-platform-authz/internal/infra/logger"
	redisinfra "github.com/arklim/social-platform-authz/internal/infra/redis"
	"github.com/arklim/social-platform-authz/internal/infra/security"
	"github.com/arklim/social-platform-authz/internal/infra/telemetry"
	postgresrepo "github.com/arklim/social-platform-authz/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-authz/internal/repository/redis"
	"github.com/arklim/social-platform-authz/internal/retry"
	"github.com/arklim/social-platform-authz/internal/transport/http/routes"
	"github.com/arklim/social-platform-authz/internal/usecase"
)

// Application owns the wired object graph and the HTTP server lifecycle.
type Application struct {
	cfg         *config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	pool        *pgxpool.Pool
	redis       *redisinfra.Client
	tracer      *telemetry.TracerProvider
	producer    *kafkainfra.Producer
	coordinator *usecase.SessionCoordinator
}

// New constructs the full application graph from configuration. Every
// dependency is built explicitly here; nothing reaches for globals.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	metrics, err := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	signer, err := security.NewTokenSigner([]byte(cfg.JWT.Secret), cfg.App.Name, cfg.JWT.AccessTokenTTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	identityService := usecase.NewIdentityService(repos.Users, repos.Tokens, signer, cfg.JWT.RefreshTokenTTL, log)
	resolver := usecase.NewPermissionResolver(repos.Roles, log)
	resolver.WithMetrics(metrics)

	broadcaster := redisrepo.NewBroadcaster(redisClient.Client(), cfg.Redis.SessionChannel, log)

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
		Classify:    usecase.AuthErrorClassifier,
	}

	coordinator := usecase.NewSessionCoordinator(identityService, resolver, broadcaster, policy, log)
	coordinator.WithEventPublisher(eventPublisher)
	coordinator.WithMetrics(metrics)
	if err := coordinator.Start(ctx); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("start session coordinator: %w", err)
	}

	authzContext := usecase.NewAuthorizationContext(coordinator)
	roleService := usecase.NewRoleService(repos.Roles, resolver, eventPublisher, log)
	userService := usecase.NewUserService(repos.Users, resolver, eventPublisher, log)

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Identity:    identityService,
			Coordinator: coordinator,
			Authz:       authzContext,
			Roles:       roleService,
			Users:       userService,
		},
	})

	return &Application{
		cfg:         cfg,
		engine:      engine,
		logger:      log,
		pool:        pool,
		redis:       redisClient,
		tracer:      tracer,
		producer:    producer,
		coordinator: coordinator,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	go a.refreshLoop(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting authorization API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// refreshLoop proactively rotates the session before expiry. A refresh
// observed from a sibling context suppresses the attempt.
func (a *Application) refreshLoop(ctx context.Context) {
	within := a.cfg.Session.RefreshWithin
	if within <= 0 {
		within = 2 * time.Minute
	}

	interval := within / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.coordinator.RefreshIfNeeded(ctx, within); err != nil {
				a.logger.Warn("proactive session refresh failed", zap.Error(err))
			}
		}
	}
}
