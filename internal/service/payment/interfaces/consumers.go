// internal/service/payment/interfaces/consumers.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"chomp/internal/contracts"
	"chomp/internal/pkg/mq"
	"chomp/internal/service/payment/application"
)

// NewOrderConfirmedConsumer 把 order.confirmed 接到 PaymentProcessor。
func NewOrderConfirmedConsumer(brokers []string, groupID string, proc *application.PaymentProcessor, fh *mq.FailureHandler) *mq.Consumer {
	return mq.NewConsumer(brokers, contracts.TopicOrderConfirmed, groupID, func(ctx context.Context, msg kafka.Message) error {
		var ev contracts.OrderConfirmedEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return errors.Wrap(err, "decode OrderConfirmedEvent")
		}
		return proc.HandleOrderConfirmed(ctx, ev)
	}, fh)
}
