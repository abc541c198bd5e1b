// internal/pkg/mq/publisher.go
package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"chomp/internal/pkg/metrics"
)

// Publisher 按 topic 懒加载 kafka.Writer 并缓存复用。
// 可靠性参数：Hash balancer 保证相同 key 落在同一分区（同一订单的
// 事件对单个消费组有序），RequireAll 等待 ISR 确认。
type Publisher struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *Publisher) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		WriteTimeout: 5 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	p.writers[topic] = w
	return w
}

// Publish 将 payload 序列化为 JSON 写入 topic，并把当前 trace 上下文
// 注入消息头。key 用于分区路由（通常是 OrderID）。
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal event for topic %s", topic)
	}

	headers := KafkaHeaderCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish to topic %s", topic)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

// Forward 把一条已经组装好的消息原样写入 topic，不做序列化。
// 失败处理的回写和死信走这里，保留原始消息头（含 trace 和重试计数）。
func (p *Publisher) Forward(ctx context.Context, topic string, msg kafka.Message) error {
	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "forward to topic %s", topic)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

// Close 并发关闭全部 writer，每个 writer 都要排空自己的发送缓冲。
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var g errgroup.Group
	for _, w := range p.writers {
		g.Go(w.Close)
	}
	return g.Wait()
}
