// cmd/order-service/main.go
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
	"chomp/internal/service/order/application"
	"chomp/internal/service/order/infrastructure"
	"chomp/internal/service/order/interfaces"
)

const (
	serviceName   = "order-service"
	consumerGroup = "order-service"
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

	tracer := otel.Tracer(serviceName)
	orderRepo := infrastructure.NewGormOrderRepository(db)
	productRepo := infrastructure.NewGormProductRepository(db)
	dedup := idempotency.NewRedisStore(redisClient, "order:processed", 24*time.Hour)

	lifecycle := application.NewOrderService(orderRepo, productRepo, publisher, tracer)
	settlement := application.NewSettlementService(orderRepo, publisher, dedup, tracer)
	consumers := interfaces.NewSettlementConsumers(cfg.Kafka.Brokers, consumerGroup, lifecycle, settlement, failureHandler)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:    serviceName,
		Port:           8081,
		JaegerEndpoint: cfg.Jaeger.Endpoint,
		Start: func(ctx context.Context) error {
			for _, c := range consumers {
				c.Start(ctx)
			}
			return nil
		},
		Stop: func(ctx context.Context) {
			for _, c := range consumers {
				c.Stop(ctx)
			}
			if err := publisher.Close(); err != nil {
				log.Printf("error closing kafka publisher: %v", err)
			}
			if err := redisClient.Close(); err != nil {
				log.Printf("error closing redis client: %v", err)
			}
		},
	})
}
