package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valetmatch/valetmatch/api"
	"github.com/valetmatch/valetmatch/config"
	"github.com/valetmatch/valetmatch/internal/bootstrap"
	"github.com/valetmatch/valetmatch/internal/cache"
	"github.com/valetmatch/valetmatch/internal/kafka"
	"github.com/valetmatch/valetmatch/internal/logger"
	"github.com/valetmatch/valetmatch/internal/repository"
	"github.com/valetmatch/valetmatch/internal/service/bids"
	"github.com/valetmatch/valetmatch/internal/service/booking"
	"github.com/valetmatch/valetmatch/internal/service/dispatch"
	"github.com/valetmatch/valetmatch/internal/service/jobs"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLogger, err := logger.New()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		zapLogger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	directory := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Dispatch.DirectoryCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	bookingStore := repository.NewBookingStore(pool)
	valeterStore := repository.NewValeterStore(pool)

	bookingService := booking.NewBookingService(bookingStore, producer, zapLogger,
		booking.WithEventsTopic(cfg.Kafka.BookingEventsTopic))
	dispatchService := dispatch.NewDispatchService(bookingStore, valeterStore, directory, producer, zapLogger,
		dispatch.WithAcceptanceWindow(time.Duration(cfg.Dispatch.AcceptanceWindowMinutes)*time.Minute),
		dispatch.WithNotificationsTopic(cfg.Kafka.NotificationsTopic))
	bidService := bids.NewBidService(bookingStore, producer, zapLogger,
		bids.WithEventsTopic(cfg.Kafka.BookingEventsTopic))
	jobService := jobs.NewJobService(bookingStore, producer, zapLogger,
		jobs.WithNotificationsTopic(cfg.Kafka.NotificationsTopic))

	bookingHandler := api.NewBookingHandler(bookingService, dispatchService)
	valeterHandler := api.NewValeterHandler(bidService, jobService)
	approvalHandler := api.NewApprovalHandler(jobService)

	if err := bootstrap.Run(ctx, cfg, bookingHandler, valeterHandler, approvalHandler); err != nil {
		zapLogger.Fatal("server error", zap.Error(err))
	}
}
