// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"chomp/internal/pkg/logger"
	"chomp/internal/pkg/metrics"
)

// Handler 处理一条已解出 trace 上下文的消息。
// 返回 error 表示处理失败，消息会交给 FailureHandler。
type Handler func(ctx context.Context, msg kafka.Message) error

// Consumer 是一个消费组端点：单 topic + groupID 的消费循环。
// 使用 FetchMessage 而不是 ReadMessage，以便控制提交与退出时机。
type Consumer struct {
	reader         *kafka.Reader
	handler        Handler
	failureHandler *FailureHandler

	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewConsumer(brokers []string, topic, groupID string, handler Handler, failureHandler *FailureHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		handler:        handler,
		failureHandler: failureHandler,
	}
}

// Start 启动消费循环。这是一个长期运行的方法。
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		topic := c.reader.Config().Topic
		logger.Ctx(ctx).Info().Str("topic", topic).Msg("✅ consumer started")
		for {
			if c.stopped.Load() {
				return
			}
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				// 上下文取消导致的错误代表正常退出
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Str("topic", topic).Msg("🛑 consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("could not fetch message, retrying")
				time.Sleep(1 * time.Second) // 避免快速失败循环
				continue
			}

			// 重建 trace 上下文，并把带 topic 字段的 logger 下发给业务处理
			headerCarrier := KafkaHeaderCarrier(msg.Headers)
			msgCtx := otel.GetTextMapPropagator().Extract(ctx, &headerCarrier)
			msgCtx = logger.WithContext(msgCtx, logger.Ctx(msgCtx).With().Str("topic", topic).Logger())

			start := time.Now()
			processingErr := c.handler(msgCtx, msg)
			metrics.HandleDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

			if processingErr != nil {
				metrics.EventsConsumed.WithLabelValues(topic, "error").Inc()
				if err := c.failureHandler.Handle(msgCtx, topic, msg, processingErr); err != nil {
					// 回写/死信都没成功：不提交 Offset，让 broker 重投
					logger.Ctx(msgCtx).Error().Err(err).Str("topic", topic).Msg("failure hand-off did not land, leaving offset uncommitted")
					continue
				}
			} else {
				metrics.EventsConsumed.WithLabelValues(topic, "ok").Inc()
			}

			// 成功或已安全移交 FailureHandler 后才提交 Offset
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("failed to commit messages")
			}
		}
	}()
}

// Topic 返回该消费者订阅的 topic。
func (c *Consumer) Topic() string {
	return c.reader.Config().Topic
}

// Stop 优雅地停止消费者。
func (c *Consumer) Stop(ctx context.Context) {
	c.stopped.Store(true)
	c.reader.Close()
	c.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("✅ consumer stopped")
}
