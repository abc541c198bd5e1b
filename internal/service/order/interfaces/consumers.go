// internal/service/order/interfaces/consumers.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"chomp/internal/contracts"
	"chomp/internal/pkg/mq"
	"chomp/internal/service/order/application"
)

// NewSettlementConsumers 把结算结果 topic 接到 SettlementService 上，
// 把用户删除 topic 接到生命周期服务的批量取消上。
// 反序列化失败返回错误交给 FailureHandler，重试耗尽后进 DLT。
func NewSettlementConsumers(brokers []string, groupID string, lifecycle *application.OrderService, settle *application.SettlementService, fh *mq.FailureHandler) []*mq.Consumer {
	return []*mq.Consumer{
		mq.NewConsumer(brokers, contracts.TopicPaymentSucceeded, groupID, func(ctx context.Context, msg kafka.Message) error {
			var ev contracts.PaymentSucceededEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				return errors.Wrap(err, "decode PaymentSucceededEvent")
			}
			return settle.HandlePaymentSucceeded(ctx, ev)
		}, fh),
		mq.NewConsumer(brokers, contracts.TopicPaymentFailed, groupID, func(ctx context.Context, msg kafka.Message) error {
			var ev contracts.PaymentFailedEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				return errors.Wrap(err, "decode PaymentFailedEvent")
			}
			return settle.HandlePaymentFailed(ctx, ev)
		}, fh),
		mq.NewConsumer(brokers, contracts.TopicUserDeleted, groupID, func(ctx context.Context, msg kafka.Message) error {
			var ev contracts.UserDeletedEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				return errors.Wrap(err, "decode UserDeletedEvent")
			}
			_, err := lifecycle.CancelOrdersForUser(ctx, ev.UserID)
			return err
		}, fh),
	}
}
