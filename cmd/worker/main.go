package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/valetmatch/valetmatch/config"
	"github.com/valetmatch/valetmatch/internal/email"
	"github.com/valetmatch/valetmatch/internal/kafka"
	"github.com/valetmatch/valetmatch/internal/logger"
	"github.com/valetmatch/valetmatch/internal/repository"
	"github.com/valetmatch/valetmatch/internal/service/bids"
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	bookingStore := repository.NewBookingStore(pool)
	bidService := bids.NewBidService(bookingStore, producer, zapLogger,
		bids.WithEventsTopic(cfg.Kafka.BookingEventsTopic))

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := email.NewSender(zapLogger)

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				zapLogger.Warn("decode notification event", zap.Error(err))
				return nil
			}
			return sender.Send(ctx, event)
		}); err != nil {
			zapLogger.Warn("notifications consumer stopped", zap.Error(err))
		}
	}()

	sweep := time.Duration(cfg.Worker.FinalizeSweepSeconds) * time.Second
	if sweep <= 0 {
		sweep = 30 * time.Second
	}
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	zapLogger.Info("finalizer worker started", zap.Duration("sweep_interval", sweep))

	for {
		select {
		case <-ticker.C:
			finalized, err := bidService.FinalizeExpired(ctx)
			if err != nil {
				zapLogger.Error("finalize sweep failed", zap.Error(err))
				continue
			}
			if len(finalized) > 0 {
				zapLogger.Info("finalized bookings", zap.Int("count", len(finalized)))
			}
		case <-ctx.Done():
			zapLogger.Info("shutting down")
			return
		}
	}
}
