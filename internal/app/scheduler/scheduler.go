// Package scheduler assembles the sweep service: storage, queue connection
// and the periodic lifecycle sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/config"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/rabbitmq"
	sweepservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/sweep"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// App is the assembled scheduler service.
type App struct {
	sweeper       *sweepservice.Service
	conn          *amqp.Connection
	ch            *amqp.Channel
	db            *repository.Storage
	startupDelay  time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		if err := repository.CheckDatabaseReady(db); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New builds the scheduler from configuration.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	sweeper := sweepservice.New(db, db, db, rabbitmq.NewPublisher(ch), logger)

	return &App{
		sweeper:       sweeper,
		conn:          conn,
		ch:            ch,
		db:            db,
		startupDelay:  cfg.StartupDelay,
		sweepInterval: cfg.SweepInterval,
		logger:        logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
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

// Run sweeps on the configured cadence until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.sweeper.Run(ctx, a.startupDelay, a.sweepInterval)

	a.logger.Info("shutting down scheduler service")
	closeResources(a.ch, a.conn, a.logger)
	a.db.DB.Close()
	return nil
}
