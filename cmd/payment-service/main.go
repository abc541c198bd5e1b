// cmd/payment-service/main.go
package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"chomp/internal/pkg/bootstrap"
	"chomp/internal/pkg/config"
	"chomp/internal/pkg/idempotency"
	"chomp/internal/pkg/mq"
	"chomp/internal/service/payment/application"
	"chomp/internal/service/payment/domain"
	"chomp/internal/service/payment/infrastructure"
	"chomp/internal/service/payment/interfaces"
)

const (
	serviceName   = "payment-service"
	consumerGroup = "payment-service"

	bankTransferDelay = 200 * time.Millisecond
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := infrastructure.OpenDB(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

	publisher := mq.NewPublisher(cfg.Kafka.Brokers)
	failureHandler := mq.NewFailureHandler(publisher, cfg.Kafka.MaxAttempts)

	wallet := infrastructure.NewRedisWallet(redisClient, cfg.Payment.WalletInitialCents)
	registry := domain.NewRegistry(
		infrastructure.NewWalletBalanceSettler(wallet),
		infrastructure.NewCashOnDeliverySettler(),
		infrastructure.NewExternalWalletSettler(cfg.Payment.ExternalWalletCapCents),
		infrastructure.NewBankTransferSettler(bankTransferDelay),
	)

	tracer := otel.Tracer(serviceName)
	paymentRepo := infrastructure.NewGormPaymentRepository(db)
	dedup := idempotency.NewRedisStore(redisClient, "payment:processed", 24*time.Hour)

	processor := application.NewPaymentProcessor(paymentRepo, registry, publisher, dedup, tracer)
	consumer := interfaces.NewOrderConfirmedConsumer(cfg.Kafka.Brokers, consumerGroup, processor, failureHandler)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:    serviceName,
		Port:           8082,
		JaegerEndpoint: cfg.Jaeger.Endpoint,
		Start: func(ctx context.Context) error {
			consumer.Start(ctx)
			return nil
		},
		Stop: func(ctx context.Context) {
			consumer.Stop(ctx)
			if err := publisher.Close(); err != nil {
				log.Printf("error closing kafka publisher: %v", err)
			}
			if err := redisClient.Close(); err != nil {
				log.Printf("error closing redis client: %v", err)
			}
		},
	})
}
