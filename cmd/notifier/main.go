package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cleanwash/cleanwash/internal/config"
	kafkax "github.com/cleanwash/cleanwash/internal/kafka"
	"github.com/cleanwash/cleanwash/internal/notify"
	"github.com/cleanwash/cleanwash/internal/orders"
	"github.com/cleanwash/cleanwash/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	mailer, err := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	if err != nil {
		logger.Fatal("mailer", zap.Error(err))
	}

	svc := &notify.Consumer{Mailer: mailer, Redis: rdb, Log: logger}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderEvents, cfg.NotifierWorkers, logger)
	go func() {
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			logger.Fatal("consumer", zap.Error(err))
		}
	}()
	logger.Info("notifier running",
		zap.String("group", cfg.NotifierGroup),
		zap.String("topic", orders.TopicOrderEvents),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	cancel()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}
