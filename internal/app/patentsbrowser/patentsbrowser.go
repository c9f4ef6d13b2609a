// Package patentsbrowser assembles the API service: storage, cache, billing
// gateway, queue connection and the HTTP server.
package patentsbrowser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/cache"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/config"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/gateway"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/jwt"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/rabbitmq"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/migrations"
	authservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/auth"
	billingservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/billing"
	catalogservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/catalog"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/lifecycle"
	orgservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/organization"
	sweepservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/sweep"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// App is the assembled API service.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New builds the API service from configuration: connects every backing
// system, seeds the plan catalog and assembles the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	gw, err := gateway.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure payment gateway: %w", err)
	}

	// The API publishes to the same exchange the scheduler uses, so the
	// manual sweep endpoint notifies exactly like the hourly one.
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeBroker(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	tokenMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	engine := lifecycle.New(db, db, cacheRedis, logger)
	auth := authservice.New(db, tokenMaker, cfg.TrialDays, logger)
	billing := billingservice.New(db, db, db, db, gw, engine, cfg.TrialDays, logger)
	catalog := catalogservice.New(db, cacheRedis, logger)
	orgs := orgservice.New(db, logger)
	sweeper := sweepservice.New(db, db, db, rabbitmq.NewPublisher(ch), logger)

	if err := catalog.Seed(ctx); err != nil {
		closeBroker(ch, conn, logger)
		return nil, fmt.Errorf("failed to seed plan catalog: %w", err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, &Services{
		Auth:    auth,
		Billing: billing,
		Catalog: catalog,
		Orgs:    orgs,
		Sweeper: sweeper,
		Engine:  engine,
		Tokens:  tokenMaker,
		Users:   db,
		Secret:  cfg.Payment.WebhookSecret,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

func closeBroker(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", slog.Any("err", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", slog.Any("err", err))
		}
	}
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		closeBroker(a.ch, a.conn, a.logger)
		a.db.DB.Close()
		return err
	}
}
