package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cleanwash/cleanwash/internal/auth"
	"github.com/cleanwash/cleanwash/internal/config"
	"github.com/cleanwash/cleanwash/internal/httpx"
	kafkax "github.com/cleanwash/cleanwash/internal/kafka"
	"github.com/cleanwash/cleanwash/internal/live"
	"github.com/cleanwash/cleanwash/internal/orders"
	"github.com/cleanwash/cleanwash/internal/postgres"
	"github.com/cleanwash/cleanwash/internal/profiles"
	"github.com/cleanwash/cleanwash/internal/redisx"
	"github.com/cleanwash/cleanwash/internal/store"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		logger.Fatal("postgres migrate", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	feed := store.NewFeed(rdb, logger)

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
	prod.Start(ctx)

	repo := &orders.Repo{DB: db}
	svc := orders.NewService(repo, feed, prod, logger, cfg.ServiceName)

	sync := live.New(repo, feed, logger, cfg.PollInterval)
	sync.Start(ctx)

	tokens := auth.NewToken([]byte(cfg.TokenKey), cfg.TokenTTL)
	accounts := profiles.NewService(&profiles.Repo{DB: db}, tokens)

	r := httpx.NewRouter(logger)
	authH := &httpx.AuthHandler{Svc: accounts, Log: logger, TokenTTL: cfg.TokenTTL}
	authH.Register(r)
	ordersH := &httpx.OrdersHandler{
		Store: repo,
		Svc:   svc,
		Sync:  sync,
		Feed:  feed,
		Redis: rdb,
		Log:   logger,
	}
	ordersH.Register(r, tokens)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	sync.Stop()
	cancel()
	prod.WaitClosed()
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
