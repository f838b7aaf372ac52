package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	"github.com/noah-isme/sma-timetable-api/pkg/notify"
)

// timetable-mailer consumes timetable events from RabbitMQ and emails the
// configured recipients.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.With(zap.String("component", "mailer"))

	if cfg.RabbitMQ.DSN == "" {
		logr.Fatal("RABBITMQ_DSN is required")
	}
	if len(cfg.Mail.Recipients) == 0 {
		logr.Warn("TIMETABLE_NOTIFY_RECIPIENTS is empty, events will be acknowledged without mail")
	}

	client, err := notify.NewSMTPClient(cfg.Mail)
	if err != nil {
		logr.Fatal("failed to create smtp client", zap.Error(err))
	}
	mailer := notify.NewMailer(client, cfg.Mail.From, cfg.Mail.Recipients, logr)

	conn, ch, err := events.Dial(cfg.RabbitMQ)
	if err != nil {
		logr.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer conn.Close()
	defer ch.Close()

	deliveries, err := events.Subscribe(ch, cfg.RabbitMQ.Exchange, cfg.Mail.Queue)
	if err != nil {
		logr.Fatal("failed to subscribe", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logr.Info("waiting for timetable events", zap.String("queue", cfg.Mail.Queue), zap.String("exchange", cfg.RabbitMQ.Exchange))
	if err := events.Consume(ctx, deliveries, mailer.Notify, logr); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("consumer stopped", zap.Error(err))
		return
	}
	logr.Info("mailer stopped")
}
