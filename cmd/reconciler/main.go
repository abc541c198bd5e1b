// cmd/reconciler/main.go
//
// 对账任务：定时扫描卡在 Confirmed 超过支付期限的订单并取消。
// 多副本部署时用 ZooKeeper 锁选出执行者，同一时刻只有一个副本扫描。
package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"

	"chomp/internal/pkg/bootstrap"
	"chomp/internal/pkg/config"
	"chomp/internal/pkg/idempotency"
	"chomp/internal/pkg/logger"
	"chomp/internal/pkg/mq"
	"chomp/internal/pkg/zookeeper"
	"chomp/internal/service/order/application"
	"chomp/internal/service/order/infrastructure"
)

const (
	serviceName = "reconciler"
	lockWait    = 5 * time.Second
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

	zkConn, err := zookeeper.Connect(cfg.Zookeeper.Servers, 10*time.Second)
	if err != nil {
		log.Fatalf("failed to connect to zookeeper: %v", err)
	}

	publisher := mq.NewPublisher(cfg.Kafka.Brokers)
	tracer := otel.Tracer(serviceName)
	orderRepo := infrastructure.NewGormOrderRepository(db)
	dedup := idempotency.NewRedisStore(redisClient, "order:processed", 24*time.Hour)
	settlement := application.NewSettlementService(orderRepo, publisher, dedup, tracer)
	reconciler := application.NewReconciler(orderRepo, settlement, cfg.Order.PaymentDeadline, tracer)

	scheduler := cron.New(cron.WithSeconds())

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:    serviceName,
		Port:           8083,
		JaegerEndpoint: cfg.Jaeger.Endpoint,
		Start: func(ctx context.Context) error {
			_, err := scheduler.AddFunc(cfg.Order.SweepSpec, func() {
				sweepOnce(ctx, zkConn, reconciler)
			})
			if err != nil {
				return err
			}
			scheduler.Start()
			return nil
		},
		Stop: func(ctx context.Context) {
			stopCtx := scheduler.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			if err := publisher.Close(); err != nil {
				log.Printf("error closing kafka publisher: %v", err)
			}
			zkConn.Close()
		},
	})
}

// sweepOnce 抢一次领导权并执行一轮扫描。没抢到说明别的副本在干活。
func sweepOnce(ctx context.Context, zkConn *zookeeper.Conn, reconciler *application.Reconciler) {
	lock, err := zookeeper.NewDistributedLock(zkConn, "reconciler")
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to create sweep lock")
		return
	}
	if err := lock.Lock(lockWait); err != nil {
		logger.Ctx(ctx).Info().Err(err).Msg("sweep lock held elsewhere, skipping this round")
		return
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to release sweep lock")
		}
	}()

	if _, err := reconciler.Sweep(ctx); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("sweep failed")
	}
}
