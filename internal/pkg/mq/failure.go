// internal/pkg/mq/failure.go
package mq

import (
	"context"
	"errors"
	"strconv"

	"github.com/segmentio/kafka-go"

	"chomp/internal/pkg/logger"
	"chomp/internal/pkg/metrics"
)

const attemptsHeader = "x-attempts"

// unretryable 由域层的致命错误实现：这类消息重试毫无意义，直接进死信。
type unretryable interface {
	Unretryable() bool
}

// forwarder 是失败处理需要的最小发布面：原样转写一条消息。
// 由 Publisher 满足。
type forwarder interface {
	Forward(ctx context.Context, topic string, msg kafka.Message) error
}

// FailureHandler 决定一条处理失败的消息的去向：
// 未耗尽重试次数时回写原 topic（attempts+1），否则转入死信 topic。
// 回写成功后原消息才能被 commit，队列不会被单条坏消息卡死。
type FailureHandler struct {
	publisher   forwarder
	maxAttempts int
}

func NewFailureHandler(publisher forwarder, maxAttempts int) *FailureHandler {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FailureHandler{publisher: publisher, maxAttempts: maxAttempts}
}

// Handle 处理失败消息。返回 error 表示回写/死信都没有成功落盘，
// 调用方必须跳过 commit，靠 broker 重投兜底。
func (f *FailureHandler) Handle(ctx context.Context, topic string, msg kafka.Message, cause error) error {
	attempts := readAttempts(msg.Headers) + 1

	var fatal unretryable
	if errors.As(cause, &fatal) && fatal.Unretryable() {
		attempts = f.maxAttempts
	}
	if attempts >= f.maxAttempts {
		dlt := topic + ".dlt"
		logger.Ctx(ctx).Error().Err(cause).
			Str("topic", topic).
			Int("attempts", attempts).
			Msg("🛑 retries exhausted, moving message to dead-letter topic")
		metrics.DeadLetters.WithLabelValues(topic).Inc()
		if err := f.requeue(ctx, dlt, msg, attempts); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("topic", dlt).Msg("failed to write dead letter")
			return err
		}
		return nil
	}

	logger.Ctx(ctx).Warn().Err(cause).
		Str("topic", topic).
		Int("attempts", attempts).
		Msg("message handling failed, requeueing")
	if err := f.requeue(ctx, topic, msg, attempts); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("failed to requeue message")
		return err
	}
	return nil
}

func (f *FailureHandler) requeue(ctx context.Context, topic string, msg kafka.Message, attempts int) error {
	headers := KafkaHeaderCarrier(msg.Headers)
	headers.Set(attemptsHeader, strconv.Itoa(attempts))
	return f.publisher.Forward(ctx, topic, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

func readAttempts(headers []kafka.Header) int {
	for _, h := range headers {
		if h.Key == attemptsHeader {
			n, err := strconv.Atoi(string(h.Value))
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}
