// Package sender assembles the notification sender: queue consumers feeding
// the mail transport.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/config"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/rabbitmq"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/smtp"
	senderservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/sender"
)

// App is the assembled sender service.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *senderservice.Service
	logger *slog.Logger
}

// New builds the sender from configuration.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg, logger)
	sender := senderservice.New(transport, logger)

	return &App{
		conn:   conn,
		ch:     ch,
		sender: sender,
		logger: logger,
	}, nil
}

// Run consumes both notification queues until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.ch, "notification.trial", a.sender.HandleTrialNotice); err != nil {
		a.logger.Error("failed to start trial queue consumer", slog.Any("err", err))
		return err
	}

	if err := rabbitmq.ConsumerMessage(ctx, a.ch, "notification.expiry", a.sender.HandleExpiryNotice); err != nil {
		a.logger.Error("failed to start expiry queue consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
